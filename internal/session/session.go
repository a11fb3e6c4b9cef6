package session

import "time"

// Status values a session may carry. The status field is advisory display
// state; the start/end timestamps are authoritative for acceptance.
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusCancelled = "cancelled"
)

// Session is a scheduled attendance-taking window for one subject and
// instructor, with a circular geofence around the room.
type Session struct {
	ID             string    `json:"id"`
	SubjectID      string    `json:"subject_id"`
	InstructorID   string    `json:"instructor_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Status         string    `json:"status"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	GeofenceRadius float64   `json:"geofence_radius_m"`
	Room           string    `json:"room,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Closed reports whether the session's display status forbids submissions.
func (s *Session) Closed() bool {
	return s.Status == StatusEnded || s.Status == StatusCancelled
}
