package models

import (
	"time"

	"github.com/google/uuid"
)

// Resume is an uploaded CV reduced to plain text. Resumes are immutable once stored.
type Resume struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	Filename   string    `db:"filename"    json:"filename"`
	Content    string    `db:"content"     json:"content"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
