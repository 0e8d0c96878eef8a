package attendance

import (
	"context"
)

// AttendanceService owns the attendance record lifecycle. Every state change
// runs under the caller's per-user lock; a lock that cannot be taken within
// the configured wait surfaces as ErrBusy.
type AttendanceService interface {
	// PunchIn opens a new attendance session for the authenticated user.
	PunchIn(ctx context.Context, req PunchRequest) (RecordResponse, error)

	// PunchOut closes the open session and settles its worked-time figures.
	// An open break is ended implicitly at the punch-out timestamp.
	PunchOut(ctx context.Context, req PunchRequest) (RecordResponse, error)

	// StartBreak moves the open session from active to on_break.
	StartBreak(ctx context.Context, req StartBreakRequest) (RecordResponse, error)

	// EndBreak closes the open break and returns the session to active.
	EndBreak(ctx context.Context) (RecordResponse, error)

	// CurrentStatus reports the authenticated user's live state.
	CurrentStatus(ctx context.Context) (CurrentStatusResponse, error)

	// GetRecord retrieves a single record with its breaks (manager scope).
	GetRecord(ctx context.Context, id string) (RecordResponse, error)

	// ListRecords retrieves workplace records with filters (manager scope).
	ListRecords(ctx context.Context, filter RecordFilter) (ListRecordsResponse, error)

	// MyRecords retrieves the authenticated user's own records.
	MyRecords(ctx context.Context, filter RecordFilter) (ListRecordsResponse, error)

	// CancelRecord voids an open record (admin scope).
	CancelRecord(ctx context.Context, req CancelRecordRequest) (RecordResponse, error)

	// AutoCloseStale completes sessions left open well past their shift end.
	// Returns the number of records closed. Called from the background sweeper.
	AutoCloseStale(ctx context.Context) (int, error)
}
