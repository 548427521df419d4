package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/resumatch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a job is not in a status that may move
// to the requested one. A concurrent claim by another worker surfaces this way.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, id uuid.UUID) (*models.Resume, error)
	ListResumes(ctx context.Context) ([]*models.Resume, error)

	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	ListJobsByResume(ctx context.Context, resumeID uuid.UUID) ([]*models.AnalysisJob, error)
	ListPendingJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.AnalysisJob, error)
	FailStaleJobs(ctx context.Context, olderThan time.Time, detail string) ([]uuid.UUID, error)
}

// JobUpdate carries the optional fields written alongside a status change.
type JobUpdate struct {
	Result      *string
	ErrorDetail *string
}

type JobUpdateOption func(*JobUpdate)

// ApplyJobUpdateOptions folds opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithResult stores the AI output. Only meaningful for COMPLETE.
func WithResult(payload string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Result = &payload
	}
}

// WithErrorDetail stores the failure message. Only meaningful for ERROR.
func WithErrorDetail(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorDetail = &msg
	}
}

// allowedFrom lists, per target status, the statuses a job may move out of.
var allowedFrom = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusPending},
	models.JobStatusComplete:   {models.JobStatusProcessing},
	models.JobStatusError:      {models.JobStatusProcessing},
}
