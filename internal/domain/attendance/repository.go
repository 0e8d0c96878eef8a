package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access for attendance records and their
// breaks. Not-found conditions surface as ErrRecordNotFound / ErrNoOpenRecord /
// ErrNoOpenBreak rather than driver errors.
type AttendanceRepository interface {
	// Create inserts a new record. A second open record for the same user
	// trips the partial unique index and comes back as ErrDuplicatePunchIn.
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID retrieves a record by ID.
	GetByID(ctx context.Context, id string) (Record, error)

	// GetOpenByUser retrieves the user's open record (active or on_break).
	GetOpenByUser(ctx context.Context, userID string) (Record, error)

	// GetLatestByUser retrieves the user's most recent record in any status.
	// Feeds the travel-speed plausibility check with the previous punch.
	GetLatestByUser(ctx context.Context, userID string) (Record, error)

	// Update persists mutable fields of an existing record.
	Update(ctx context.Context, record Record) error

	// List retrieves records for a workplace with filters and pagination.
	List(ctx context.Context, workplaceID string, filter RecordFilter) ([]Record, int64, error)

	// ListOpenByWorkplace retrieves every open record of a workplace.
	ListOpenByWorkplace(ctx context.Context, workplaceID string) ([]Record, error)

	// ListOpenBefore retrieves open records punched in before the cutoff.
	ListOpenBefore(ctx context.Context, cutoff time.Time) ([]Record, error)

	// CreateBreak inserts a new break. A second open break on the same record
	// trips the partial unique index and comes back as ErrBreakAlreadyOpen.
	CreateBreak(ctx context.Context, b Break) (Break, error)

	// GetOpenBreak retrieves the record's open break.
	GetOpenBreak(ctx context.Context, recordID string) (Break, error)

	// UpdateBreak persists an existing break.
	UpdateBreak(ctx context.Context, b Break) error

	// ListBreaks retrieves all breaks of a record, oldest first.
	ListBreaks(ctx context.Context, recordID string) ([]Break, error)

	// BreakMinutesBetween sums closed break minutes for a user inside [from, to).
	BreakMinutesBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
}
