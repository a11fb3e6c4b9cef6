// Package audit is the append-only record of every attendance attempt and
// its outcome. Entries are read back only to count recent attempts for
// rate limiting; everything else is for external review tooling.
package audit

import (
	"context"
	"time"
)

// Severity levels for audit entries.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Action tags written by the attendance pipeline.
const (
	ActionSubmitAttempt = "attendance_submit_attempt"
	ActionRateLimitHit  = "attendance_rate_limit_hit"
	ActionGeoRejected   = "attendance_geo_rejected"
	ActionRejected      = "attendance_rejected"
	ActionAccepted      = "attendance_accepted"
)

// Entry is one audit log line. ActorID may be empty when the caller was
// never identified.
type Entry struct {
	ID                int64          `json:"id,omitempty"`
	ActorID           string         `json:"actor_id,omitempty"`
	Action            string         `json:"action"`
	Severity          string         `json:"severity"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	IP                string         `json:"ip_address,omitempty"`
	DeviceFingerprint string         `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Store is the persistence contract the validator and rate limiter depend on.
type Store interface {
	// Append writes one entry. Failures must propagate; the pipeline
	// fails closed on audit errors.
	Append(ctx context.Context, e Entry) error
	// CountAttempts returns how many submit-attempt entries match the IP
	// or the device fingerprint since the given instant. Empty identity
	// components are not matched.
	CountAttempts(ctx context.Context, ip, deviceFingerprint string, since time.Time) (int, error)
}
