package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/resumatch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Resumes ---

func (s *PostgresStore) CreateResume(ctx context.Context, resume *models.Resume) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resumes (id, filename, content, uploaded_at) VALUES ($1, $2, $3, $4)`,
		resume.ID, resume.Filename, resume.Content, resume.UploadedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create resume: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResume(ctx context.Context, id uuid.UUID) (*models.Resume, error) {
	var r models.Resume
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, content, uploaded_at FROM resumes WHERE id = $1`, id,
	).Scan(&r.ID, &r.Filename, &r.Content, &r.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListResumes(ctx context.Context) ([]*models.Resume, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, content, uploaded_at FROM resumes ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	resumes := []*models.Resume{}
	for rows.Next() {
		var r models.Resume
		if err := rows.Scan(&r.ID, &r.Filename, &r.Content, &r.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan resume: %w", err)
		}
		resumes = append(resumes, &r)
	}
	return resumes, rows.Err()
}

// --- Analysis Jobs ---

const jobColumns = `id, resume_id, raw_input, provider, model, credential_sealed, status,
	result_payload, error_detail, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := row.Scan(&j.ID, &j.ResumeID, &j.RawInput, &j.Provider, &j.Model, &j.SealedCredential,
		&j.Status, &j.ResultPayload, &j.ErrorDetail, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, resume_id, raw_input, provider, model, credential_sealed, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.ResumeID, job.RawInput, job.Provider, job.Model, job.SealedCredential,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create job: resume %s: %w", job.ResumeID, ErrNotFound)
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobsByResume(ctx context.Context, resumeID uuid.UUID) ([]*models.AnalysisJob, error) {
	return s.listJobs(ctx, "list jobs by resume",
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE resume_id = $1 ORDER BY created_at DESC, id`, resumeID)
}

// ListPendingJobs returns PENDING jobs oldest first. A limit of zero or less
// returns all of them.
func (s *PostgresStore) ListPendingJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE status = $1 ORDER BY created_at ASC, id`
	args := []any{models.JobStatusPending}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.listJobs(ctx, "list pending jobs", query, args...)
}

func (s *PostgresStore) listJobs(ctx context.Context, op, query string, args ...any) ([]*models.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	jobs := []*models.AnalysisJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus moves a job to status in a single conditional UPDATE. The
// row only changes if its current status is an allowed predecessor, so two
// workers racing for the same PENDING job cannot both claim it.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.AnalysisJob, error) {
	params := ApplyJobUpdateOptions(opts...)

	from, ok := allowedFrom[status]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrInvalidTransition, status)
	}

	now := time.Now().UTC()
	var startedAt, completedAt *time.Time
	switch status {
	case models.JobStatusProcessing:
		startedAt = &now
	case models.JobStatusComplete, models.JobStatusError:
		completedAt = &now
	}

	var result, detail *string
	if status == models.JobStatusComplete {
		result = params.Result
		if result == nil {
			empty := ""
			result = &empty
		}
	}
	if status == models.JobStatusError {
		detail = params.ErrorDetail
	}

	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE analysis_jobs SET
		   status = $2,
		   updated_at = $3,
		   started_at = COALESCE($4, started_at),
		   completed_at = COALESCE($5, completed_at),
		   result_payload = $6,
		   error_detail = $7
		 WHERE id = $1 AND status = ANY($8)
		 RETURNING `+jobColumns,
		id, status, now, startedAt, completedAt, result, detail, from))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	// Nothing matched: either the job is gone or it is no longer in a predecessor status.
	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM analysis_jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
}

// FailStaleJobs moves PROCESSING jobs untouched since olderThan to ERROR and
// returns their ids.
func (s *PostgresStore) FailStaleJobs(ctx context.Context, olderThan time.Time, detail string) ([]uuid.UUID, error) {
	now := time.Now().UTC()
	rows, err := s.pool.Query(ctx,
		`UPDATE analysis_jobs SET status = $1, error_detail = $2, completed_at = $3, updated_at = $3
		 WHERE status = $4 AND updated_at < $5
		 RETURNING id`,
		models.JobStatusError, detail, now, models.JobStatusProcessing, olderThan)
	if err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}
