package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
)

// ReconcilerService cross-checks the ephemeral presence tree against online
// statuses and the freshness window, pruning whatever no longer holds.
// Pruning is destructive by contract: a reconciliation read deletes the
// entries it rejects.
type ReconcilerService struct {
	presence  ports.PresenceStore
	profiles  ports.ProfileRepository
	publisher ports.EventPublisher

	window time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

// NewReconcilerService creates a new ReconcilerService.
func NewReconcilerService(
	presence ports.PresenceStore,
	profiles ports.ProfileRepository,
	publisher ports.EventPublisher,
	window time.Duration,
) *ReconcilerService {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &ReconcilerService{
		presence:  presence,
		profiles:  profiles,
		publisher: publisher,
		window:    window,
		Now:       time.Now,
	}
}

// ActiveUsers returns the venue's currently-valid active users, enriched
// with profile fields. Entries that fail validation are deleted from the
// presence store. A failed profile lookup excludes that single user without
// aborting the reconciliation.
func (s *ReconcilerService) ActiveUsers(ctx context.Context, venueID string) ([]domain.ActiveUser, error) {
	valid, _, err := s.reconcile(ctx, venueID)
	if err != nil {
		return nil, err
	}

	users := make([]domain.ActiveUser, 0, len(valid))
	for _, e := range valid {
		p, err := s.profiles.GetByID(ctx, e.UserID)
		if err != nil || p == nil {
			// Partial-result policy: skip this user, keep the rest.
			slog.Debug("profile lookup failed during reconciliation", "user", e.UserID, "error", err)
			continue
		}
		users = append(users, domain.ActiveUser{
			ID:        e.UserID,
			Name:      p.Name,
			PhotoURL:  p.PhotoURL,
			EnteredAt: e.EnteredAt,
		})
	}
	return users, nil
}

// PruneVenue removes stale and offline entries for one venue and reports
// how many were deleted. This is the sweep entry point used by the
// reconciliation workflow.
func (s *ReconcilerService) PruneVenue(ctx context.Context, venueID string) (int, error) {
	_, pruned, err := s.reconcile(ctx, venueID)
	return pruned, err
}

// reconcile partitions a venue's entries into valid and pruned. The store
// returns entries in no particular order, so the output is ordered by entry
// time for deterministic lists.
func (s *ReconcilerService) reconcile(ctx context.Context, venueID string) ([]domain.PresenceEntry, int, error) {
	entries, err := s.presence.ListEntries(ctx, venueID)
	if err != nil {
		return nil, 0, fmt.Errorf("list presence entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EnteredAt.Equal(entries[j].EnteredAt) {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].EnteredAt.Before(entries[j].EnteredAt)
	})

	now := s.Now()
	valid := make([]domain.PresenceEntry, 0, len(entries))
	pruned := 0

	for _, e := range entries {
		if now.Sub(e.EnteredAt) > s.window {
			s.prune(ctx, e, "stale")
			pruned++
			continue
		}

		st, err := s.presence.GetStatus(ctx, e.UserID)
		if err != nil {
			return nil, pruned, fmt.Errorf("get status for %s: %w", e.UserID, err)
		}
		if st == nil || !st.IsOnline {
			s.prune(ctx, e, "offline")
			pruned++
			continue
		}

		valid = append(valid, e)
	}
	return valid, pruned, nil
}

func (s *ReconcilerService) prune(ctx context.Context, e domain.PresenceEntry, reason string) {
	// Deleting an already-absent key is a no-op, so pruning races are safe.
	if err := s.presence.DeleteEntry(ctx, e.VenueID, e.UserID); err != nil {
		slog.Warn("prune presence entry failed", "venue", e.VenueID, "user", e.UserID, "error", err)
		return
	}
	if s.publisher != nil {
		_ = s.publisher.PublishCheckOut(ctx, &domain.PresenceEvent{
			VenueID: e.VenueID,
			UserID:  e.UserID,
			Time:    s.Now(),
			Reason:  reason,
		})
	}
}
