package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes the record in a single statement. The table's unique
// constraints on request_nonce and on (session_id, student_id) are the
// replay guard: a losing concurrent insert surfaces as ErrDuplicateNonce or
// ErrDuplicateAttendance, never as a second success.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, session_id, student_id, status, recorded_at, request_nonce, device_fingerprint, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.RecordedAt,
		rec.RequestNonce, rec.DeviceFingerprint, rec.IP)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, mapConflict(err)
	}
	return rec, nil
}

// mapConflict turns a unique violation into the matching typed sentinel.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "nonce") {
			return ErrDuplicateNonce
		}
		return ErrDuplicateAttendance
	}
	return err
}

// ListBySession returns a session's records, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, status, recorded_at, request_nonce, device_fingerprint, ip_address, created_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY recorded_at ASC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &rec.RecordedAt,
			&rec.RequestNonce, &rec.DeviceFingerprint, &rec.IP, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
