package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "leitstand/pkg/domain-errors"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Limit is a request budget per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Requests, l.Window)
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseLimit reads "N/unit" or "N per unit" where unit is second, minute,
// hour or day (plural forms accepted), e.g. "60/minute".
func ParseLimit(s string) (Limit, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	count, unit, ok := strings.Cut(raw, "/")
	if !ok {
		count, unit, ok = strings.Cut(raw, " per ")
	}
	if !ok {
		return Limit{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("rate limit %q: expected N/unit", s))
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Limit{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("rate limit %q: count must be a positive integer", s))
	}
	unit = strings.TrimSuffix(strings.TrimSpace(unit), "s")
	window, ok := units[unit]
	if !ok {
		return Limit{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("rate limit %q: unknown unit %q", s, unit))
	}
	return Limit{Requests: n, Window: window}, nil
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, min 1.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
