package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// JobStatusKey holds the last known status of an analysis job.
func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("analysis:status:%s", jobID)
}

// ScrapeKey holds the resolved text of a job posting URL. The URL is hashed so
// arbitrary query strings never end up in key names.
func ScrapeKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "scrape:" + hex.EncodeToString(sum[:])
}

// RateLimitKey counts requests for one caller within the current window.
func RateLimitKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s", identity)
}
