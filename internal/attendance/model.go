package attendance

import "time"

// Record statuses. Absence is never written; it is inferred from the lack
// of a record.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// Claim is one attendance submission. It is validated and discarded, never
// stored as-is.
type Claim struct {
	SessionID         string  `json:"session_id"`
	RotatingToken     string  `json:"rotating_token"`
	TimeWindow        int64   `json:"time_window"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	RequestNonce      string  `json:"request_nonce"`
}

// Identity is the submitting caller, resolved out-of-band from the bearer
// credential and the connection.
type Identity struct {
	StudentID string
	IP        string
}

// Record is the single persisted outcome of an accepted claim. Immutable
// once written.
type Record struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	StudentID         string    `json:"student_id"`
	Status            string    `json:"status"`
	RecordedAt        time.Time `json:"recorded_at"`
	RequestNonce      string    `json:"request_nonce"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	IP                string    `json:"ip_address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
