package approval

import (
	"context"
	"time"
)

// ApprovalRepository defines data access for approval requests.
type ApprovalRepository interface {
	// Create inserts a new request. A second pending request for the same
	// record trips the partial unique index and comes back as
	// ErrRequestAlreadyOpen.
	Create(ctx context.Context, req ApprovalRequest) (ApprovalRequest, error)

	// GetByID retrieves a request by ID.
	GetByID(ctx context.Context, id string) (ApprovalRequest, error)

	// Resolve moves a pending request to a terminal state with a single
	// compare-and-set update. ErrRequestAlreadyResolved when the request
	// exists but is no longer pending, ErrRequestNotFound when it never did.
	Resolve(ctx context.Context, id string, status Status, resolvedBy string, note *string, resolvedAt time.Time) (ApprovalRequest, error)

	// ListByWorkplace retrieves a workplace's requests with filters.
	ListByWorkplace(ctx context.Context, workplaceID string, filter ApprovalFilter) ([]ApprovalRequest, int64, error)

	// ListByRequester retrieves a user's own requests with filters.
	ListByRequester(ctx context.Context, requesterID string, filter ApprovalFilter) ([]ApprovalRequest, int64, error)

	// ListPendingOlderThan retrieves pending requests submitted before the
	// cutoff, for escalation sweeps.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error)
}
