package workflows

import (
	"context"
	"fmt"

	"github.com/cembilgin/placepulse/internal/core/ports"
	"github.com/cembilgin/placepulse/internal/core/usecases"
)

// ReconcileActivities holds the activity implementations for the
// reconciliation workflow.
type ReconcileActivities struct {
	Venues     ports.VenueRepository
	Reconciler *usecases.ReconcilerService
}

// ListVenueIDs returns the IDs of every venue in the catalog.
func (a *ReconcileActivities) ListVenueIDs(ctx context.Context) ([]string, error) {
	venues, err := a.Venues.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// PruneVenue removes stale and offline presence entries for one venue and
// returns how many were deleted.
func (a *ReconcileActivities) PruneVenue(ctx context.Context, venueID string) (int, error) {
	pruned, err := a.Reconciler.PruneVenue(ctx, venueID)
	if err != nil {
		return 0, fmt.Errorf("prune venue %s: %w", venueID, err)
	}
	return pruned, nil
}
