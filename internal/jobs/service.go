// Package jobs owns the analysis job lifecycle: intake of new requests and
// the scheduler that drives PENDING jobs to a terminal status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/resumatch/internal/ai"
	"github.com/kiranshivaraju/resumatch/internal/cache"
	"github.com/kiranshivaraju/resumatch/internal/secret"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"github.com/kiranshivaraju/resumatch/pkg/models"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrResumeNotFound = fmt.Errorf("resume %w", store.ErrNotFound)
	ErrJobNotFound    = fmt.Errorf("analysis job %w", store.ErrNotFound)
)

// statusTTL bounds how long a cached job status may be served.
const statusTTL = 30 * time.Minute

// ContentResolver turns a job description input into the text sent to the model.
type ContentResolver interface {
	Resolve(ctx context.Context, input string) (string, error)
}

// Generator runs one prompt against an AI provider.
type Generator interface {
	Generate(ctx context.Context, p ai.GenerateParams) (string, error)
}

// SubmitParams is one analysis request as received from a client.
type SubmitParams struct {
	ResumeID       uuid.UUID
	JobDescription string
	IsURL          bool
	Provider       string
	Credential     string
	Model          string
}

// Service accepts analysis requests and serves their records.
type Service struct {
	store           store.Store
	cache           cache.Cache
	resolver        ContentResolver
	sealer          *secret.Sealer
	prefetchTimeout time.Duration
	logger          *slog.Logger
}

// NewService creates a Service. The cache may be nil.
func NewService(st store.Store, c cache.Cache, resolver ContentResolver, sealer *secret.Sealer, prefetchTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:           st,
		cache:           c,
		resolver:        resolver,
		sealer:          sealer,
		prefetchTimeout: prefetchTimeout,
		logger:          logger,
	}
}

// Submit validates the request and records a PENDING job. Processing happens
// later in the Scheduler; Submit never calls an AI provider.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.AnalysisJob, error) {
	if strings.TrimSpace(p.JobDescription) == "" {
		return nil, fmt.Errorf("%w: job description is required", ErrInvalidInput)
	}
	if p.ResumeID == uuid.Nil {
		return nil, fmt.Errorf("%w: resume id is required", ErrInvalidInput)
	}

	if _, err := s.store.GetResume(ctx, p.ResumeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResumeNotFound, p.ResumeID)
		}
		return nil, fmt.Errorf("load resume: %w", err)
	}

	if p.IsURL {
		s.prefetch(ctx, p.JobDescription)
	}

	provider := ai.NormalizeProvider(p.Provider)
	model := strings.TrimSpace(p.Model)
	if model == "" {
		if def, ok := ai.DefaultModel(provider); ok {
			model = def
		}
	}

	now := time.Now().UTC()
	job := &models.AnalysisJob{
		ID:        uuid.New(),
		ResumeID:  p.ResumeID,
		RawInput:  p.JobDescription,
		Provider:  provider,
		Model:     model,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sealed, err := s.sealer.Seal(job.ID, p.Credential)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}
	job.SealedCredential = sealed

	if err := s.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResumeNotFound, p.ResumeID)
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("analysis job submitted",
		"job_id", job.ID, "resume_id", job.ResumeID,
		"provider", job.Provider, "model", job.Model, "is_url", p.IsURL)
	return job, nil
}

// prefetch resolves a URL input once so the scrape cache is warm by the time
// the scheduler picks the job up. Failures are left for the scheduler.
func (s *Service) prefetch(ctx context.Context, input string) {
	if s.resolver == nil {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.prefetchTimeout)
	defer cancel()

	text, err := s.resolver.Resolve(fetchCtx, input)
	if err != nil {
		s.logger.Warn("job description prefetch failed", "error", err)
		return
	}
	s.logger.Info("job description prefetched", "length", len(text))
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListByResume returns the resume's jobs, newest first.
func (s *Service) ListByResume(ctx context.Context, resumeID uuid.UUID) ([]*models.AnalysisJob, error) {
	if _, err := s.store.GetResume(ctx, resumeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResumeNotFound, resumeID)
		}
		return nil, fmt.Errorf("load resume: %w", err)
	}
	jobs, err := s.store.ListJobsByResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Status returns a job's status, from the cache when it has one. Only the
// scheduler caches in-flight statuses; a store answer is cached here only once
// it is terminal, so a stale read can never replace a newer status.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (string, error) {
	if s.cache != nil {
		status, ok, err := s.cache.GetJobStatus(ctx, id)
		if err != nil {
			s.logger.Debug("status cache read failed", "job_id", id, "error", err)
		} else if ok {
			return status, nil
		}
	}

	job, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if job.IsTerminal() {
		writeStatus(ctx, s.cache, s.logger, job.ID, job.Status)
	}
	return job.Status, nil
}

// writeStatus records a status in the cache, best effort.
func writeStatus(ctx context.Context, c cache.Cache, logger *slog.Logger, id uuid.UUID, status string) {
	if c == nil {
		return
	}
	if err := c.SetJobStatus(ctx, id, status, statusTTL); err != nil {
		logger.Debug("status cache write failed", "job_id", id, "error", err)
	}
}
