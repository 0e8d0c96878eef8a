package attendance

import (
	"time"
)

// Record lifecycle statuses.
const (
	StatusActive    = "active"
	StatusOnBreak   = "on_break"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Verification statuses. A record starts pending, settles to verified when it
// completes with no soft condition fired, and turns flagged the moment one does.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationFlagged  = "flagged"
)

// Reasons recorded on a record when a soft condition fires. Soft conditions
// never reject a punch; they mark the record for manager review.
const (
	ReasonOutOfGeofence       = "out_of_geofence"
	ReasonImplausibleAccuracy = "implausible_accuracy"
	ReasonImplausibleMovement = "implausible_movement"
	ReasonBreakCapExceeded    = "break_cap_exceeded"
	ReasonSessionTooShort     = "session_too_short"
	ReasonSessionTooLong      = "session_too_long"
	ReasonOvertime            = "overtime"
	ReasonLateArrival         = "late_arrival"
	ReasonEarlyLeave          = "early_leave"
	ReasonAutoClosed          = "auto_closed"
)

// Break types.
const (
	BreakTypeLunch  = "lunch"
	BreakTypeCoffee = "coffee"
	BreakTypeRest   = "rest"
	BreakTypeOther  = "other"
)

// BreakTypes lists every accepted break type.
var BreakTypes = []string{BreakTypeLunch, BreakTypeCoffee, BreakTypeRest, BreakTypeOther}

type Record struct {
	ID                 string
	UserID             string
	WorkplaceID        string
	ShiftID            *string
	Status             string
	PunchInAt          time.Time
	PunchOutAt         *time.Time
	PunchInLatitude    float64
	PunchInLongitude   float64
	PunchInAccuracy    float64
	PunchOutLatitude   *float64
	PunchOutLongitude  *float64
	PunchOutAccuracy   *float64
	PunchInZoneID      *string
	PunchOutZoneID     *string
	PunchInPhotoURL    *string
	PunchOutPhotoURL   *string
	VerificationStatus string
	RequiresApproval   bool
	ApprovalReasons    []string
	GrossMinutes       *int
	BreakMinutes       *int
	NetMinutes         *int
	OvertimeMinutes    *int
	LateMinutes        *int
	EarlyLeaveMinutes  *int
	CancelledBy        *string
	CancelledAt        *time.Time
	CancelReason       *string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// DTO
	UserName *string
}

// IsOpen reports whether the record still accepts transitions.
func (r Record) IsOpen() bool {
	return r.Status == StatusActive || r.Status == StatusOnBreak
}

// AddApprovalReason flags the record for review. Duplicate reasons collapse.
func (r *Record) AddApprovalReason(reason string) {
	for _, existing := range r.ApprovalReasons {
		if existing == reason {
			return
		}
	}
	r.ApprovalReasons = append(r.ApprovalReasons, reason)
	r.RequiresApproval = true
	r.VerificationStatus = VerificationFlagged
}

type Break struct {
	ID        string
	RecordID  string
	Type      string
	StartedAt time.Time
	EndedAt   *time.Time
	Minutes   *int
	CreatedAt time.Time
	UpdatedAt time.Time
}
