package attendance

import "errors"

// Attendance domain errors
var (
	// Punch errors
	ErrDuplicatePunchIn = errors.New("an attendance session is already open")
	ErrNoOpenRecord     = errors.New("no open attendance session")
	ErrOutOfGeofence    = errors.New("location is outside every workplace geofence")
	ErrBusy             = errors.New("another attendance operation for this user is in progress")
	ErrInvalidTimeRange = errors.New("punch-out time is before punch-in time")

	// Break errors
	ErrBreakAlreadyOpen = errors.New("a break is already in progress")
	ErrNoOpenBreak      = errors.New("no break in progress")

	// General errors
	ErrRecordNotFound  = errors.New("attendance record not found")
	ErrRecordImmutable = errors.New("attendance record is already closed")
)
