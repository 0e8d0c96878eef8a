package presence

import (
	"context"
)

// PresenceService maintains per-workplace presence views and streams
// transitions to subscribers.
type PresenceService interface {
	// Apply folds a ledger transition into the view and queues it for
	// delivery. It never blocks and never fails; delivery problems are the
	// broadcaster's to log, not the ledger's.
	Apply(change Change)

	// TeamStatus returns the workplace's current view (manager scope).
	TeamStatus(ctx context.Context, workplaceID string) (TeamStatusResponse, error)

	// Subscribe registers a live event feed for one workplace. The cleanup
	// function must be called when the subscriber goes away.
	Subscribe(workplaceID string) (<-chan Event, func())

	// Warm seeds the view from open records, typically at startup.
	Warm(ctx context.Context) error

	// Stop drains the dispatch queue and stops the broadcaster.
	Stop()
}
