package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusComplete   = "COMPLETE"
	JobStatusError      = "ERROR"
)

// AnalysisJob tracks one resume-vs-job-description comparison. The API returns it
// on POST /api/v1/analyses; the client polls GET /api/v1/analyses/{job_id} until
// status is COMPLETE or ERROR.
type AnalysisJob struct {
	ID               uuid.UUID  `db:"id"                json:"id"`
	ResumeID         uuid.UUID  `db:"resume_id"         json:"resume_id"`
	RawInput         string     `db:"raw_input"         json:"job_description"`
	Provider         string     `db:"provider"          json:"provider"`
	Model            string     `db:"model"             json:"model"`
	SealedCredential []byte     `db:"credential_sealed" json:"-"`
	Status           string     `db:"status"            json:"status"`
	ResultPayload    *string    `db:"result_payload"    json:"result,omitempty"`
	ErrorDetail      *string    `db:"error_detail"      json:"error,omitempty"`
	StartedAt        *time.Time `db:"started_at"        json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at"      json:"completed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}

// IsTerminal reports whether the job can no longer change status.
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusError
}
