package approval

import (
	"context"
)

// ApprovalService owns the approval request lifecycle.
type ApprovalService interface {
	// RequestApproval opens a pending request for one of the caller's
	// completed records. Managers and admins are auto-approved on
	// submission.
	RequestApproval(ctx context.Context, req CreateApprovalRequest) (ApprovalResponse, error)

	// Resolve approves or rejects a pending request. Exactly one resolution
	// wins; later attempts get ErrRequestAlreadyResolved.
	Resolve(ctx context.Context, req ResolveApprovalRequest) (ApprovalResponse, error)

	// GetRequest retrieves a single request.
	GetRequest(ctx context.Context, id string) (ApprovalResponse, error)

	// PendingForWorkplace retrieves a workplace's queue (manager scope).
	PendingForWorkplace(ctx context.Context, filter ApprovalFilter) (ListApprovalsResponse, error)

	// MyRequests retrieves the caller's own requests.
	MyRequests(ctx context.Context, filter ApprovalFilter) (ListApprovalsResponse, error)

	// OpenForRecord opens a request on the record owner's behalf when a
	// completed record requires approval. Already-open requests are not an
	// error here; the existing one stands.
	OpenForRecord(ctx context.Context, recordID, requesterID, workplaceID string, reasons []string) error

	// EscalateOverdue notifies the workplace's managers about requests
	// pending past the configured limit. Returns how many were escalated.
	// Pending-past-limit is a derived read; the requests themselves do not
	// change state. Called from the background sweeper.
	EscalateOverdue(ctx context.Context) (int, error)
}
