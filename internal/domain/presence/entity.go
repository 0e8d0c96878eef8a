package presence

import "time"

// Presence statuses. Absent covers both "never punched in" and "session
// closed".
const (
	StatusActive  = "active"
	StatusOnBreak = "on_break"
	StatusAbsent  = "absent"
)

// UserPresence is one row of a workplace's live presence view.
type UserPresence struct {
	UserID    string     `json:"user_id"`
	UserName  string     `json:"user_name,omitempty"`
	Status    string     `json:"status"`
	Since     *time.Time `json:"since,omitempty"`
	BreakType *string    `json:"break_type,omitempty"`
	RecordID  *string    `json:"record_id,omitempty"`
}

// Change is a ledger transition handed to the broadcaster. The ledger fires
// and forgets; the broadcaster owns delivery.
type Change struct {
	WorkplaceID string
	UserID      string
	UserName    string
	Status      string
	Since       time.Time
	BreakType   *string
	RecordID    *string
}

// Event is a presence transition as delivered to subscribers. Seq increases
// by one per workplace, so a subscriber can detect its own dropped events.
type Event struct {
	Seq         uint64    `json:"seq"`
	WorkplaceID string    `json:"workplace_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Status      string    `json:"status"`
	Since       time.Time `json:"since"`
	BreakType   *string   `json:"break_type,omitempty"`
	RecordID    *string   `json:"record_id,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}
