package user

import (
	"context"
)

// UserRepository reads identity data owned by the identity provider.
type UserRepository interface {
	// GetByID resolves a user. Deactivated users still resolve; callers
	// decide whether Active matters for the operation.
	GetByID(ctx context.Context, id string) (User, error)

	// ListByWorkplace retrieves the active roster of a workplace.
	ListByWorkplace(ctx context.Context, workplaceID string) ([]User, error)

	// ListByWorkplaceAndRole retrieves active users of a workplace holding
	// the given role. Used to find the managers to notify.
	ListByWorkplaceAndRole(ctx context.Context, workplaceID string, role Role) ([]User, error)
}
