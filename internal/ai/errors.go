package ai

import "errors"

// Failure kinds surfaced by the Gateway. Every error returned by Generate wraps
// exactly one of these; the provider's own message follows after a colon.
var (
	ErrInvalidConfig        = errors.New("invalid AI configuration")
	ErrUnsupportedProvider  = errors.New("unsupported AI provider")
	ErrAuthenticationFailed = errors.New("authentication failed (401): check the API key")
	ErrRateLimited          = errors.New("rate limit exceeded (429): try again later")
	ErrQuotaExceeded        = errors.New("quota exceeded: check the provider plan and billing")
	ErrGenerationFailed     = errors.New("AI generation failed")
)
