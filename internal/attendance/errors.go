package attendance

import (
	"errors"
	"net/http"
)

// Code identifies why a claim was rejected (or that it failed internally).
// Codes are stable wire values returned to callers.
type Code string

const (
	CodeMalformedRequest    Code = "malformed_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeRateLimited         Code = "rate_limited"
	CodeSessionNotFound     Code = "session_not_found"
	CodeSessionNotStarted   Code = "session_not_started"
	CodeSessionEnded        Code = "session_ended"
	CodeSessionInactive     Code = "session_inactive"
	CodeTokenMismatch       Code = "token_mismatch"
	CodeOutOfRange          Code = "out_of_range"
	CodeDuplicateNonce      Code = "duplicate_nonce"
	CodeDuplicateAttendance Code = "duplicate_attendance"
	CodeInternal            Code = "internal"
)

// Rejection is the terminal outcome of a claim that was not accepted.
type Rejection struct {
	Code    Code
	Message string
}

func (e *Rejection) Error() string {
	return string(e.Code) + ": " + e.Message
}

func reject(code Code, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

// AsRejection unwraps err into a Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// HTTPStatus maps a code to its transport status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMalformedRequest, CodeSessionNotStarted, CodeSessionEnded, CodeSessionInactive:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenMismatch:
		return http.StatusUnauthorized
	case CodeOutOfRange:
		return http.StatusForbidden
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeDuplicateNonce, CodeDuplicateAttendance:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels the record store surfaces when the atomic reservation loses to
// an earlier write. Exactly one of two racing inserts sees success; the
// other sees one of these.
var (
	ErrDuplicateNonce      = errors.New("request nonce already used")
	ErrDuplicateAttendance = errors.New("attendance already recorded for session and student")
)
