package session

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsInvalidID(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"malformed uuid literal", &pgconn.PgError{Code: "22P02"}, true},
		{"wrapped malformed uuid", fmt.Errorf("scan: %w", &pgconn.PgError{Code: "22P02"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isInvalidID(tc.err); got != tc.want {
				t.Fatalf("isInvalidID(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
