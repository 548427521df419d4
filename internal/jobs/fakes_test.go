package jobs_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/resumatch/internal/secret"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"github.com/kiranshivaraju/resumatch/pkg/models"
	"github.com/stretchr/testify/require"
)

// ─── in-memory store ─────────────────────────────────────────────────────────

var allowedFrom = map[string]string{
	models.JobStatusProcessing: models.JobStatusPending,
	models.JobStatusComplete:   models.JobStatusProcessing,
	models.JobStatusError:      models.JobStatusProcessing,
}

type memStore struct {
	mu      sync.Mutex
	resumes map[uuid.UUID]*models.Resume
	jobs    map[uuid.UUID]*models.AnalysisJob

	getResumeErr error
	createJobErr error
	listErr      error
	// updateErr, when set, runs before every status update.
	updateErr func(id uuid.UUID, status string) error
	// afterGetJob, when set, runs once GetJob has taken its snapshot.
	afterGetJob func()
}

func newMemStore() *memStore {
	return &memStore{
		resumes: map[uuid.UUID]*models.Resume{},
		jobs:    map[uuid.UUID]*models.AnalysisJob{},
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateResume(_ context.Context, r *models.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resumes[r.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *r
	m.resumes[r.ID] = &cp
	return nil
}

func (m *memStore) GetResume(_ context.Context, id uuid.UUID) (*models.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getResumeErr != nil {
		return nil, m.getResumeErr
	}
	r, ok := m.resumes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListResumes(context.Context) ([]*models.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Resume{}
	for _, r := range m.resumes {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) deleteResume(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resumes, id)
}

func (m *memStore) CreateJob(_ context.Context, j *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createJobErr != nil {
		return m.createJobErr
	}
	if _, ok := m.resumes[j.ResumeID]; !ok {
		return fmt.Errorf("create job: %w", store.ErrNotFound)
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	var cp models.AnalysisJob
	if ok {
		cp = *j
	}
	hook := m.afterGetJob
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cp, nil
}

func (m *memStore) ListJobsByResume(_ context.Context, resumeID uuid.UUID) ([]*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.AnalysisJob{}
	for _, j := range m.jobs {
		if j.ResumeID == resumeID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memStore) ListPendingJobs(_ context.Context, limit int) ([]*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.AnalysisJob{}
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) (*models.AnalysisJob, error) {
	if m.updateErr != nil {
		if err := m.updateErr(id, status); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if allowedFrom[status] != j.Status {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}

	upd := store.ApplyJobUpdateOptions(opts...)

	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	switch status {
	case models.JobStatusProcessing:
		j.StartedAt = &now
	case models.JobStatusComplete:
		j.CompletedAt = &now
		res := ""
		if upd.Result != nil {
			res = *upd.Result
		}
		j.ResultPayload = &res
		j.ErrorDetail = nil
	case models.JobStatusError:
		j.CompletedAt = &now
		j.ResultPayload = nil
		j.ErrorDetail = upd.ErrorDetail
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) FailStaleJobs(_ context.Context, olderThan time.Time, detail string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	now := time.Now().UTC()
	for _, j := range m.jobs {
		if j.Status == models.JobStatusProcessing && j.UpdatedAt.Before(olderThan) {
			d := detail
			j.Status = models.JobStatusError
			j.ErrorDetail = &d
			j.CompletedAt = &now
			j.UpdatedAt = now
			ids = append(ids, j.ID)
		}
	}
	return ids, nil
}

// putJob stores a job as-is, bypassing transition checks.
func (m *memStore) putJob(j *models.AnalysisJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
}

func (m *memStore) job(t *testing.T, id uuid.UUID) *models.AnalysisJob {
	t.Helper()
	j, err := m.GetJob(context.Background(), id)
	require.NoError(t, err)
	return j
}

var _ store.Store = (*memStore)(nil)

// ─── in-memory cache ─────────────────────────────────────────────────────────

type memCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	statuses map[uuid.UUID]string
	failAll  error
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, statuses: map[uuid.UUID]string{}}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return nil, false, c.failAll
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) SetJobStatus(_ context.Context, id uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	c.statuses[id] = status
	return nil
}

func (c *memCache) GetJobStatus(_ context.Context, id uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return "", false, c.failAll
	}
	s, ok := c.statuses[id]
	return s, ok, nil
}

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (c *memCache) status(id uuid.UUID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[id]
}

// ─── resolver ────────────────────────────────────────────────────────────────

type stubResolver struct {
	mu      sync.Mutex
	resolve func(input string) (string, error)
	inputs  []string
}

func (r *stubResolver) Resolve(_ context.Context, input string) (string, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, input)
	r.mu.Unlock()
	if r.resolve != nil {
		return r.resolve(input)
	}
	return input, nil
}

func (r *stubResolver) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.inputs...)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSealer(t *testing.T) *secret.Sealer {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	s, err := secret.NewSealer(key)
	require.NoError(t, err)
	return s
}

func addResume(t *testing.T, m *memStore, content string) *models.Resume {
	t.Helper()
	r := &models.Resume{
		ID:         uuid.New(),
		Filename:   "cv.txt",
		Content:    content,
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, m.CreateResume(context.Background(), r))
	return r
}
