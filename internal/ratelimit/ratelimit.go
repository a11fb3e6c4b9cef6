// Package ratelimit caps verification attempts per identity using the audit
// log as its sliding-window counter.
package ratelimit

import (
	"context"
	"time"

	"presence/internal/audit"
)

// Limiter admits at most limit submit attempts per identity within window.
// Identity is (IP, device fingerprint); either component matching counts
// toward the total.
type Limiter struct {
	counts audit.Store
	limit  int
	window time.Duration
}

// New creates a limiter. Non-positive arguments fall back to 20 per 60s.
func New(counts audit.Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Limiter{counts: counts, limit: limit, window: window}
}

// Admit reports whether another attempt is allowed at now. A counting
// failure propagates so the caller fails closed rather than admitting.
func (l *Limiter) Admit(ctx context.Context, ip, deviceFingerprint string, now time.Time) (bool, error) {
	n, err := l.counts.CountAttempts(ctx, ip, deviceFingerprint, now.Add(-l.window))
	if err != nil {
		return false, err
	}
	return n < l.limit, nil
}
