package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/resumatch/pkg/models"
)

var quotaMarkers = []string{"insufficient_quota", "quota"}

// classifyError maps a provider failure to one of the Gateway's error kinds,
// keeping the original message for diagnostics.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out: %v", ErrGenerationFailed, err)
	}

	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		case httpErr.StatusCode == http.StatusTooManyRequests && mentionsQuota(httpErr.Body):
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case mentionsQuota(httpErr.Body):
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		default:
			return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
	}

	// Client libraries and proxies sometimes only surface the status in the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	case strings.Contains(msg, "429") && mentionsQuota(msg):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	case strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case mentionsQuota(msg):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
}

func mentionsQuota(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
