package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"presence/internal/audit"
	"presence/internal/geo"
	"presence/internal/ratelimit"
	"presence/internal/session"
	"presence/internal/token"
)

// SessionStore resolves sessions; Get returns (nil, nil) for unknown ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// RecordStore atomically reserves and persists accepted claims. Insert must
// return ErrDuplicateNonce or ErrDuplicateAttendance when the reservation
// loses; two racing inserts for the same nonce or (session, student) must
// never both succeed.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
}

// Policy holds the tunable acceptance constants.
type Policy struct {
	// SkewWindows is how many rotation windows of clock skew are tolerated
	// on either side of the server's current window.
	SkewWindows int
	// LateGrace is how long after session start a submission still counts
	// as present rather than late.
	LateGrace time.Duration
}

// Validator decides whether a submitted claim is genuine. Checks run in a
// fixed order and the first failure is terminal; the only side effects are
// the audit entries and, on acceptance, the single record insert.
type Validator struct {
	tokens   *token.Engine
	sessions SessionStore
	records  RecordStore
	auditLog audit.Store
	limiter  *ratelimit.Limiter
	policy   Policy
	now      func() time.Time
}

// NewValidator wires the pipeline. now defaults to time.Now.
func NewValidator(tokens *token.Engine, sessions SessionStore, records RecordStore, auditLog audit.Store, limiter *ratelimit.Limiter, policy Policy) *Validator {
	if policy.SkewWindows < 0 {
		policy.SkewWindows = 0
	}
	return &Validator{
		tokens:   tokens,
		sessions: sessions,
		records:  records,
		auditLog: auditLog,
		limiter:  limiter,
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock overrides the validator's clock; intended for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Submit runs the full verification pipeline for one claim and returns the
// persisted record on acceptance. Rejections come back as *Rejection; any
// other error is an internal failure and the claim was not accepted.
func (v *Validator) Submit(ctx context.Context, claim Claim, id Identity) (Record, error) {
	now := v.now().UTC()

	if id.StudentID == "" {
		return Record{}, reject(CodeUnauthorized, "caller identity is required")
	}
	if err := validateClaim(claim); err != nil {
		return Record{}, err
	}

	ok, err := v.limiter.Admit(ctx, id.IP, claim.DeviceFingerprint, now)
	if err != nil {
		// Fail closed: an uncountable identity is never admitted.
		return Record{}, err
	}
	if !ok {
		v.append(ctx, audit.Entry{
			ActorID:           id.StudentID,
			Action:            audit.ActionRateLimitHit,
			Severity:          audit.SeverityCritical,
			Metadata:          map[string]any{"session_id": claim.SessionID},
			IP:                id.IP,
			DeviceFingerprint: claim.DeviceFingerprint,
		})
		return Record{}, reject(CodeRateLimited, "too many attempts, try again later")
	}

	// The attempt entry is what the rate limiter counts; its write failing
	// fails the request so the limiter can never be starved of data.
	if err := v.auditLog.Append(ctx, audit.Entry{
		ActorID:           id.StudentID,
		Action:            audit.ActionSubmitAttempt,
		Severity:          audit.SeverityInfo,
		Metadata:          map[string]any{"session_id": claim.SessionID, "time_window": claim.TimeWindow},
		IP:                id.IP,
		DeviceFingerprint: claim.DeviceFingerprint,
	}); err != nil {
		return Record{}, err
	}

	sess, err := v.sessions.Get(ctx, claim.SessionID)
	if err != nil {
		return Record{}, err
	}
	if sess == nil {
		return Record{}, v.rejected(ctx, claim, id, reject(CodeSessionNotFound, "session not found"))
	}

	switch {
	case now.Before(sess.StartsAt):
		return Record{}, v.rejected(ctx, claim, id, reject(CodeSessionNotStarted, "session has not started"))
	case now.After(sess.EndsAt):
		return Record{}, v.rejected(ctx, claim, id, reject(CodeSessionEnded, "session has ended"))
	case sess.Closed():
		return Record{}, v.rejected(ctx, claim, id, reject(CodeSessionInactive, "session is not active"))
	}

	serverWindow := v.tokens.Window(now)
	if delta := claim.TimeWindow - serverWindow; delta > int64(v.policy.SkewWindows) || delta < -int64(v.policy.SkewWindows) {
		return Record{}, v.rejected(ctx, claim, id, reject(CodeTokenMismatch, "rotating token window out of tolerance"))
	}
	if !v.tokens.Verify(claim.SessionID, claim.TimeWindow, claim.RotatingToken) {
		return Record{}, v.rejected(ctx, claim, id, reject(CodeTokenMismatch, "rotating token mismatch"))
	}

	distance := geo.DistanceMeters(claim.Latitude, claim.Longitude, sess.Latitude, sess.Longitude)
	if distance > sess.GeofenceRadius {
		v.append(ctx, audit.Entry{
			ActorID:  id.StudentID,
			Action:   audit.ActionGeoRejected,
			Severity: audit.SeverityWarning,
			Metadata: map[string]any{
				"session_id":       claim.SessionID,
				"distance_meters":  distance,
				"allowed_radius_m": sess.GeofenceRadius,
			},
			IP:                id.IP,
			DeviceFingerprint: claim.DeviceFingerprint,
		})
		return Record{}, reject(CodeOutOfRange, "outside allowed geofence")
	}

	status := StatusPresent
	if now.After(sess.StartsAt.Add(v.policy.LateGrace)) {
		status = StatusLate
	}

	rec, err := v.records.Insert(ctx, Record{
		SessionID:         claim.SessionID,
		StudentID:         id.StudentID,
		Status:            status,
		RecordedAt:        now,
		RequestNonce:      claim.RequestNonce,
		DeviceFingerprint: claim.DeviceFingerprint,
		IP:                id.IP,
	})
	switch {
	case errors.Is(err, ErrDuplicateNonce):
		return Record{}, v.rejected(ctx, claim, id, reject(CodeDuplicateNonce, "request nonce already used"))
	case errors.Is(err, ErrDuplicateAttendance):
		return Record{}, v.rejected(ctx, claim, id, reject(CodeDuplicateAttendance, "attendance already recorded for this session"))
	case err != nil:
		return Record{}, err
	}

	v.append(ctx, audit.Entry{
		ActorID:  id.StudentID,
		Action:   audit.ActionAccepted,
		Severity: audit.SeverityInfo,
		Metadata: map[string]any{
			"session_id": claim.SessionID,
			"record_id":  rec.ID,
			"status":     rec.Status,
		},
		IP:                id.IP,
		DeviceFingerprint: claim.DeviceFingerprint,
	})
	return rec, nil
}

func validateClaim(c Claim) error {
	switch {
	case c.SessionID == "":
		return reject(CodeMalformedRequest, "session_id is required")
	case c.RotatingToken == "":
		return reject(CodeMalformedRequest, "rotating_token is required")
	case c.TimeWindow <= 0:
		return reject(CodeMalformedRequest, "time_window is required")
	case c.DeviceFingerprint == "":
		return reject(CodeMalformedRequest, "device_fingerprint is required")
	case c.RequestNonce == "":
		return reject(CodeMalformedRequest, "request_nonce is required")
	case !geo.ValidCoordinates(c.Latitude, c.Longitude):
		return reject(CodeMalformedRequest, "latitude/longitude out of range")
	}
	return nil
}

// rejected writes the outcome entry for a rejection and passes it through.
func (v *Validator) rejected(ctx context.Context, claim Claim, id Identity, r *Rejection) *Rejection {
	v.append(ctx, audit.Entry{
		ActorID:           id.StudentID,
		Action:            audit.ActionRejected,
		Severity:          audit.SeverityInfo,
		Metadata:          map[string]any{"session_id": claim.SessionID, "code": string(r.Code)},
		IP:                id.IP,
		DeviceFingerprint: claim.DeviceFingerprint,
	})
	return r
}

// append writes a non-attempt audit entry; failures are logged, not fatal,
// since the decision they describe already stands.
func (v *Validator) append(ctx context.Context, e audit.Entry) {
	if err := v.auditLog.Append(ctx, e); err != nil {
		log.Printf("audit append failed (action=%s): %v", e.Action, err)
	}
}
