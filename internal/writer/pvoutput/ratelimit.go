// internal/writer/pvoutput/ratelimit.go
package pvoutput

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rate limit headers. Sending HeaderRateLimit: 1 asks the service to
// include the other three on every response.
const (
	HeaderRateLimit          = "X-Rate-Limit"
	HeaderRateLimitRemaining = "X-Rate-Limit-Remaining"
	HeaderRateLimitLimit     = "X-Rate-Limit-Limit"
	HeaderRateLimitReset     = "X-Rate-Limit-Reset"
)

// RateLimitState is the quota the service last reported for a target.
type RateLimitState struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// parseRateLimit reads the quota headers. ok is false unless the
// remaining count is present and well formed; Limit and Reset stay zero
// when their headers are missing.
func parseRateLimit(h http.Header) (RateLimitState, bool) {
	remaining, ok := headerInt(h, HeaderRateLimitRemaining)
	if !ok {
		return RateLimitState{}, false
	}
	q := RateLimitState{Remaining: remaining}
	if limit, ok := headerInt(h, HeaderRateLimitLimit); ok {
		q.Limit = limit
	}
	if reset, ok := parseReset(h); ok {
		q.Reset = reset
	}
	return q, true
}

// parseReset reads the reset header (unix epoch seconds).
func parseReset(h http.Header) (time.Time, bool) {
	v, ok := headerInt(h, HeaderRateLimitReset)
	if !ok || v <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0), true
}

// cooldown is how long to wait after a 403 before the next attempt.
func cooldown(h http.Header, now time.Time, fallback time.Duration) time.Duration {
	reset, ok := parseReset(h)
	if !ok {
		return fallback
	}
	d := reset.Sub(now) + time.Second
	if d < time.Second {
		return time.Second
	}
	return d
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
