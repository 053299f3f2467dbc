package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReconcileResult summarises one sweep across the venue catalog.
type ReconcileResult struct {
	VenuesChecked int
	EntriesPruned int
}

// ReconcileWorkflow sweeps every venue's presence entries, pruning stale and
// offline ones. Runs on a cron schedule; each run is one full pass.
func ReconcileWorkflow(ctx workflow.Context) (ReconcileResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting presence reconciliation sweep")

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result ReconcileResult

	var venueIDs []string
	if err := workflow.ExecuteActivity(ctx, "ListVenueIDs").Get(ctx, &venueIDs); err != nil {
		return result, err
	}

	for _, venueID := range venueIDs {
		var pruned int
		if err := workflow.ExecuteActivity(ctx, "PruneVenue", venueID).Get(ctx, &pruned); err != nil {
			// One bad venue must not abort the sweep; the next run retries it.
			logger.Warn("prune failed", "venueID", venueID, "error", err)
			continue
		}
		result.VenuesChecked++
		result.EntriesPruned += pruned
	}

	logger.Info("Reconciliation sweep finished",
		"venuesChecked", result.VenuesChecked, "entriesPruned", result.EntriesPruned)
	return result, nil
}
