// Package models contains shared data models used across the resumatch codebase.
package models

import (
	"context"
	"fmt"
	"time"
)

// AIProvider is the interface every text-generation backend implements.
// Never call specific AI providers directly. Always go through the ai.Gateway.
type AIProvider interface {
	// Generate sends a single prompt and returns the raw model output.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string
}

// GenerateRequest is the input to a single generation call. The credential is
// supplied per call because every analysis job carries its own key.
type GenerateRequest struct {
	Credential  string
	Model       string
	Prompt      string
	Temperature float64
}

// HTTPError wraps a non-2xx provider response so error classification can
// inspect the status code and body.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // from Retry-After header, zero if absent
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}
