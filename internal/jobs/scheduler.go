package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/kiranshivaraju/resumatch/internal/ai"
	"github.com/kiranshivaraju/resumatch/internal/analysis"
	"github.com/kiranshivaraju/resumatch/internal/cache"
	"github.com/kiranshivaraju/resumatch/internal/secret"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"github.com/kiranshivaraju/resumatch/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// StaleDetail is the error detail recorded on jobs abandoned mid-processing.
const StaleDetail = "processing abandoned"

// SchedulerOptions tunes the polling loop.
type SchedulerOptions struct {
	// Interval is the delay between the end of one tick and the start of the next.
	Interval time.Duration
	// StaleAfter fails PROCESSING jobs not updated for this long. Zero disables the sweep.
	StaleAfter time.Duration
	// BatchSize caps the jobs handled per tick. Zero means all pending jobs.
	BatchSize int
}

// SchedulerDeps holds the collaborators a Scheduler drives.
type SchedulerDeps struct {
	Store     store.Store
	Cache     cache.Cache
	Resolver  ContentResolver
	Gateway   Generator
	Sealer    *secret.Sealer
	Telemetry *Telemetry
	Logger    *slog.Logger
}

// Scheduler moves PENDING jobs through PROCESSING to COMPLETE or ERROR, one
// job at a time, oldest first.
type Scheduler struct {
	SchedulerDeps
	opts SchedulerOptions
}

// NewScheduler creates a Scheduler. A nil Telemetry records nothing.
func NewScheduler(deps SchedulerDeps, opts SchedulerOptions) *Scheduler {
	if deps.Telemetry == nil {
		deps.Telemetry = NewTelemetry(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	return &Scheduler{SchedulerDeps: deps, opts: opts}
}

// Run ticks immediately and then again Interval after each tick finishes, so
// ticks never overlap. It returns nil once ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Logger.Info("scheduler started",
		"interval", s.opts.Interval, "stale_after", s.opts.StaleAfter, "batch_size", s.opts.BatchSize)

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.Logger.Error("scheduler tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler stopped")
			return nil
		case <-time.After(s.opts.Interval):
		}
	}
}

// Tick handles every job that is PENDING when it starts.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	ctx, span := s.Telemetry.tracer.Start(ctx, "scheduler.tick")
	defer func() {
		span.End()
		s.Telemetry.recordTick(ctx, time.Since(start))
	}()

	s.failStale(ctx)

	pending, err := s.Store.ListPendingJobs(ctx, s.opts.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pending jobs")
		return fmt.Errorf("list pending jobs: %w", err)
	}
	span.SetAttributes(attribute.Int("jobs.pending", len(pending)))

	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.process(ctx, job)
	}
	return nil
}

func (s *Scheduler) failStale(ctx context.Context) {
	if s.opts.StaleAfter <= 0 {
		return
	}
	ids, err := s.Store.FailStaleJobs(ctx, time.Now().UTC().Add(-s.opts.StaleAfter), StaleDetail)
	if err != nil {
		s.Logger.Error("fail stale jobs", "error", err)
		return
	}
	for _, id := range ids {
		s.Logger.Warn("stale job failed", "job_id", id, "stale_after", s.opts.StaleAfter)
		writeStatus(ctx, s.Cache, s.Logger, id, models.JobStatusError)
	}
	if len(ids) > 0 {
		s.Telemetry.recordJob(ctx, OutcomeStale, int64(len(ids)))
	}
}

// process claims one job and records its outcome. Errors never escape: they
// end up on the job or in the log.
func (s *Scheduler) process(ctx context.Context, job *models.AnalysisJob) {
	ctx, span := s.Telemetry.tracer.Start(ctx, "scheduler.process",
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.provider", job.Provider),
		))
	defer span.End()

	logger := s.Logger.With("job_id", job.ID, "resume_id", job.ResumeID)

	claimed, err := s.Store.UpdateJobStatus(ctx, job.ID, models.JobStatusProcessing)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			logger.Debug("job no longer pending, skipping", "error", err)
			s.Telemetry.recordJob(ctx, OutcomeSkipped, 1)
			return
		}
		logger.Error("claim job", "error", err)
		span.RecordError(err)
		return
	}
	writeStatus(ctx, s.Cache, logger, claimed.ID, models.JobStatusProcessing)

	// Results must land even if shutdown starts mid-call.
	persistCtx := context.WithoutCancel(ctx)

	result, err := s.analyze(ctx, claimed, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		s.finish(persistCtx, claimed, models.JobStatusError, OutcomeError, logger,
			store.WithErrorDetail(err.Error()))
		return
	}
	s.finish(persistCtx, claimed, models.JobStatusComplete, OutcomeComplete, logger,
		store.WithResult(result))
}

func (s *Scheduler) analyze(ctx context.Context, job *models.AnalysisJob, logger *slog.Logger) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing job", "error", r, "stack", string(debug.Stack()))
			result = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	resume, err := s.Store.GetResume(ctx, job.ResumeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", errors.New("resume not found")
		}
		return "", fmt.Errorf("load resume: %w", err)
	}

	jobDescription, err := s.Resolver.Resolve(ctx, job.RawInput)
	if err != nil {
		logger.Warn("content resolution failed, using raw input", "error", err)
		jobDescription = job.RawInput
	}

	credential, err := s.Sealer.Open(job.ID, job.SealedCredential)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}

	prompt := analysis.BuildPrompt(resume.Content, jobDescription)

	start := time.Now()
	out, err := s.Gateway.Generate(ctx, ai.GenerateParams{
		Provider:   job.Provider,
		Model:      job.Model,
		Credential: credential,
		Prompt:     prompt,
	})
	s.Telemetry.recordAI(ctx, ai.NormalizeProvider(job.Provider), time.Since(start), err != nil)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *Scheduler) finish(ctx context.Context, job *models.AnalysisJob, status, outcome string, logger *slog.Logger, opt store.JobUpdateOption) {
	if _, err := s.Store.UpdateJobStatus(ctx, job.ID, status, opt); err != nil {
		// The row stays PROCESSING; the stale sweep fails it forward later.
		logger.Error("persist job outcome", "status", status, "error", err)
		return
	}
	writeStatus(ctx, s.Cache, logger, job.ID, status)
	s.Telemetry.recordJob(ctx, outcome, 1)
	logger.Info("analysis job finished", "status", status)
}
