package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/resumatch/internal/api/response"
	"github.com/kiranshivaraju/resumatch/internal/extract"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"github.com/kiranshivaraju/resumatch/pkg/models"
)

// ResumeStore is the part of store.Store the resume handlers use.
type ResumeStore interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, id uuid.UUID) (*models.Resume, error)
	ListResumes(ctx context.Context) ([]*models.Resume, error)
}

const uploadField = "file"

// NewUploadResumeHandler returns an http.HandlerFunc for POST /api/v1/resumes.
// The multipart field "file" is reduced to text and stored.
func NewUploadResumeHandler(st ResumeStore, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Resume file is too large", nil)
				return
			}
			response.InvalidRequest(w, "Expected a multipart form with a file field")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			response.InvalidRequest(w, "file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.InvalidRequest(w, "Could not read uploaded file")
			return
		}

		text, err := extract.Text(header.Filename, data)
		switch {
		case errors.Is(err, extract.ErrEmpty):
			response.Error(w, http.StatusUnprocessableEntity, "EMPTY_RESUME", "No text could be extracted from the file", nil)
			return
		case errors.Is(err, extract.ErrUnsupportedFormat):
			response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Upload a PDF or a plain text file", nil)
			return
		case err != nil:
			response.Internal(w, r, err)
			return
		}

		resume := &models.Resume{
			ID:         uuid.New(),
			Filename:   filepath.Base(header.Filename),
			Content:    text,
			UploadedAt: time.Now().UTC(),
		}
		if err := st.CreateResume(r.Context(), resume); err != nil {
			response.Internal(w, r, err)
			return
		}
		response.Created(w, resume)
	}
}

// NewListResumesHandler returns an http.HandlerFunc for GET /api/v1/resumes.
func NewListResumesHandler(st ResumeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListResumes(r.Context())
		if err != nil {
			response.Internal(w, r, err)
			return
		}
		response.Collection(w, list, len(list))
	}
}

// NewGetResumeHandler returns an http.HandlerFunc for GET /api/v1/resumes/{resumeID}.
func NewGetResumeHandler(st ResumeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "resumeID")
		if !ok {
			return
		}
		resume, err := st.GetResume(r.Context(), id)
		switch {
		case err == nil:
			response.JSON(w, resume)
		case errors.Is(err, store.ErrNotFound):
			response.NotFound(w, "Resume not found")
		default:
			response.Internal(w, r, err)
		}
	}
}
