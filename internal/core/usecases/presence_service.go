package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
)

// PresenceService maintains heartbeat-driven online statuses and handles the
// teardown on sign-out.
type PresenceService struct {
	presence  ports.PresenceStore
	state     ports.ConfirmationStateStore
	publisher ports.EventPublisher
	registry  *SessionRegistry

	offlineAfter time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

// NewPresenceService creates a new PresenceService.
func NewPresenceService(
	presence ports.PresenceStore,
	state ports.ConfirmationStateStore,
	publisher ports.EventPublisher,
	registry *SessionRegistry,
	offlineAfter time.Duration,
) *PresenceService {
	if offlineAfter <= 0 {
		offlineAfter = 90 * time.Second
	}
	return &PresenceService{
		presence:     presence,
		state:        state,
		publisher:    publisher,
		registry:     registry,
		offlineAfter: offlineAfter,
		Now:          time.Now,
	}
}

// Heartbeat refreshes a user's online status. The current venue recorded by
// a prior check-in is carried forward.
func (s *PresenceService) Heartbeat(ctx context.Context, userID string) error {
	st, err := s.presence.GetStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	next := &domain.OnlineStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: s.Now(),
	}
	if st != nil {
		next.CurrentVenue = st.CurrentVenue
	}

	if err := s.presence.SetStatus(ctx, next); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishStatus(ctx, next)
	}
	return nil
}

// MarkOffline flips a user to offline without touching their presence
// entries; the reconciler prunes those on its next pass.
func (s *PresenceService) MarkOffline(ctx context.Context, userID string) error {
	st, err := s.presence.GetStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if st == nil {
		return nil
	}

	st.IsOnline = false
	st.LastSeen = s.Now()
	if err := s.presence.SetStatus(ctx, st); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishStatus(ctx, st)
	}
	return nil
}

// SweepOffline marks users whose last heartbeat is older than the offline
// window. Returns how many users were flipped.
func (s *PresenceService) SweepOffline(ctx context.Context) (int, error) {
	statuses, err := s.presence.ListStatuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list statuses: %w", err)
	}

	now := s.Now()
	flipped := 0
	for _, st := range statuses {
		if !st.IsOnline || now.Sub(st.LastSeen) <= s.offlineAfter {
			continue
		}
		if err := s.MarkOffline(ctx, st.UserID); err != nil {
			slog.Warn("mark offline failed", "user", st.UserID, "error", err)
			continue
		}
		flipped++
	}
	return flipped, nil
}

// SignOut tears down everything tied to the device's sign-in: the active
// presence entry if any, the confirmation state, the online status, and the
// in-memory session.
func (s *PresenceService) SignOut(ctx context.Context, deviceID, userID string) error {
	st, err := s.state.Load(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("load confirmation state: %w", err)
	}

	if st != nil && st.ActiveVenueID != "" {
		if err := s.presence.DeleteEntry(ctx, st.ActiveVenueID, userID); err != nil {
			slog.Warn("delete presence entry on signout failed", "user", userID, "venue", st.ActiveVenueID, "error", err)
		}
		if s.publisher != nil {
			_ = s.publisher.PublishCheckOut(ctx, &domain.PresenceEvent{
				VenueID: st.ActiveVenueID,
				UserID:  userID,
				Time:    s.Now(),
				Reason:  "signout",
			})
		}
	}

	if err := s.state.Clear(ctx, deviceID); err != nil {
		return fmt.Errorf("clear confirmation state: %w", err)
	}
	if err := s.presence.ClearStatus(ctx, userID); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}

	if s.registry != nil {
		s.registry.End(deviceID)
	}
	return nil
}
