// Package extract reduces an uploaded resume file to plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported resume format")
	ErrEmpty             = errors.New("resume contains no text")
)

var pdfMagic = []byte("%PDF-")

// Text returns the textual content of an uploaded resume. PDFs are detected
// by their header or a .pdf extension; anything else must be UTF-8 text.
func Text(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	if bytes.HasPrefix(data, pdfMagic) || strings.EqualFold(filepath.Ext(filename), ".pdf") {
		text, err = PDFText(data)
		if err != nil {
			return "", err
		}
	} else {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is neither PDF nor UTF-8 text", ErrUnsupportedFormat, filename)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// PDFText extracts the plain text of every page in order.
func PDFText(data []byte) (text string, err error) {
	// The PDF reader reports some malformed input by panicking.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", ErrUnsupportedFormat, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract PDF text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read PDF text: %w", err)
	}
	return string(out), nil
}
