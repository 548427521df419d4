package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/resumatch/pkg/models"
)

// SampleResult is a well-formed analysis payload returned by NewMockProvider.
const SampleResult = `{"atsScore":82,"recruiterScore":75,"matchRatio":"78%","missingKeywords":["Kubernetes"],` +
	`"matchingKeywords":["Go","PostgreSQL"],"successProbability":"High","summary":"Strong backend match.",` +
	`"improvements":["Quantify impact"],"preparationMaterials":[{"title":"Go Tour","link":"https://go.dev/tour"}],` +
	`"coverLetter":"Dear hiring manager"}`

// MockProvider satisfies models.AIProvider for testing. It records every request.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (string, error)

	mu    sync.Mutex
	calls []models.GenerateRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

// Calls returns a copy of the requests received so far.
func (m *MockProvider) Calls() []models.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// NewMockProvider returns a MockProvider registered as name that answers with SampleResult.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		Name_: name,
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return SampleResult, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(name string, err error) *MockProvider {
	return &MockProvider{
		Name_: name,
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider(name string) *MockProvider {
	return &MockProvider{
		Name_: name,
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
