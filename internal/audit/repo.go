package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Repository persists audit entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append writes one entry.
func (r *Repository) Append(ctx context.Context, e Entry) error {
	var metadata []byte
	if e.Metadata != nil {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, severity, metadata, ip_address, device_fingerprint)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)
	`, e.ActorID, e.Action, e.Severity, metadata, e.IP, e.DeviceFingerprint)
	return err
}

// CountAttempts counts submit-attempt entries for the identity since the
// given instant. Either identity component matching counts; empty
// components never match.
func (r *Repository) CountAttempts(ctx context.Context, ip, deviceFingerprint string, since time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log
		WHERE action = $1
		  AND created_at >= $2
		  AND ((ip_address = $3 AND $3 <> '') OR (device_fingerprint = $4 AND $4 <> ''))
	`, ActionSubmitAttempt, since, ip, deviceFingerprint)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
