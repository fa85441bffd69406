package exchange

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestCounter tracks client-side request usage against a venue's
// per-window limit. Bitget publishes fixed per-endpoint budgets but no
// usage headers, so we count locally and warn before a ban threshold.
type RequestCounter struct {
	used          int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	mu            sync.Mutex
}

// NewRequestCounter creates a counter for limit requests per window.
func NewRequestCounter(limit int, window time.Duration) *RequestCounter {
	return &RequestCounter{
		limit:         limit,
		resetInterval: window,
		lastReset:     time.Now(),
	}
}

// Record counts one outbound request and logs when usage nears the limit.
func (rc *RequestCounter) Record() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if time.Since(rc.lastReset) >= rc.resetInterval {
		rc.used = 0
		rc.lastReset = time.Now()
	}
	rc.used++

	pct := float64(rc.used) / float64(rc.limit) * 100
	if pct >= 90 {
		log.Warn().Int("used", rc.used).Int("limit", rc.limit).
			Msg("exchange rate budget nearly exhausted")
	}
}

// Usage returns used count, limit, and percentage for the current window.
func (rc *RequestCounter) Usage() (used int, limit int, percentage float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if time.Since(rc.lastReset) >= rc.resetInterval {
		return 0, rc.limit, 0
	}
	return rc.used, rc.limit, float64(rc.used) / float64(rc.limit) * 100
}
