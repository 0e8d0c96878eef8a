package workplace

import (
	"context"
)

// WorkplaceRepository reads workplace, geofence, and shift data owned by the
// workforce-management system.
type WorkplaceRepository interface {
	// GetByID retrieves a workplace.
	GetByID(ctx context.Context, id string) (Workplace, error)

	// ListActiveZones retrieves the workplace's active geofence zones. An
	// empty result means the workplace has no geofence configured.
	ListActiveZones(ctx context.Context, workplaceID string) ([]GeofenceZone, error)

	// GetShift retrieves a shift by ID. ErrShiftNotFound when it does not exist.
	GetShift(ctx context.Context, id string) (Shift, error)
}
