package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the session with the given id, or nil when it does not exist.
// An id that does not parse as a UUID resolves as not found rather than as
// a query failure.
func (r *Repository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, instructor_id, starts_at, ends_at, status,
		       latitude, longitude, geofence_radius_m, room, created_at
		FROM sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.SubjectID, &s.InstructorID, &s.StartsAt, &s.EndsAt,
		&s.Status, &s.Latitude, &s.Longitude, &s.GeofenceRadius, &s.Room, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// isInvalidID reports whether err is Postgres rejecting a malformed uuid
// literal (invalid_text_representation).
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// Create inserts a new session and returns it with id and created_at set.
func (r *Repository) Create(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusScheduled
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, subject_id, instructor_id, starts_at, ends_at, status,
		                      latitude, longitude, geofence_radius_m, room)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, s.ID, s.SubjectID, s.InstructorID, s.StartsAt, s.EndsAt, s.Status,
		s.Latitude, s.Longitude, s.GeofenceRadius, s.Room)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// List returns sessions, optionally filtered by instructor, newest first.
func (r *Repository) List(ctx context.Context, instructorID string, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, subject_id, instructor_id, starts_at, ends_at, status,
		       latitude, longitude, geofence_radius_m, room, created_at
		FROM sessions`
	args := []any{}
	if instructorID != "" {
		query += ` WHERE instructor_id = $1`
		args = append(args, instructorID)
	}
	if len(args) == 0 {
		query += ` ORDER BY starts_at DESC LIMIT $1 OFFSET $2`
	} else {
		query += ` ORDER BY starts_at DESC LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.SubjectID, &s.InstructorID, &s.StartsAt, &s.EndsAt,
			&s.Status, &s.Latitude, &s.Longitude, &s.GeofenceRadius, &s.Room, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateStatus sets the advisory display status.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}
