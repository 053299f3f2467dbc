package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
	"github.com/cembilgin/placepulse/internal/pkg/geospatial"
)

// ErrNoPendingConfirmation is returned when a confirm/reject arrives for a
// venue the session was never prompted about.
var ErrNoPendingConfirmation = errors.New("no pending confirmation for venue")

// NearbyVenues returns the venues within radiusMeters of loc.
// Catalog order is preserved: downstream prompting is first-match-wins, and
// no distance sort is performed.
func NearbyVenues(loc domain.Coordinate, venues []domain.Venue, radiusMeters float64) []domain.Venue {
	nearby := make([]domain.Venue, 0)
	for _, v := range venues {
		d := geospatial.Haversine(loc.Lat, loc.Lon, v.Location.Lat, v.Location.Lon)
		if d <= radiusMeters {
			v.Distance = &d
			nearby = append(nearby, v)
		}
	}
	return nearby
}

// ProximityService matches location updates against the venue catalog and
// drives the per-session confirmation throttle.
type ProximityService struct {
	venues    ports.VenueRepository
	profiles  ports.ProfileRepository
	visits    ports.VisitRepository
	presence  ports.PresenceStore
	state     ports.ConfirmationStateStore
	publisher ports.EventPublisher
	cache     ports.CacheService

	radius   float64
	cooldown time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

// NewProximityService creates a new ProximityService.
func NewProximityService(
	venues ports.VenueRepository,
	profiles ports.ProfileRepository,
	visits ports.VisitRepository,
	presence ports.PresenceStore,
	state ports.ConfirmationStateStore,
	publisher ports.EventPublisher,
	cache ports.CacheService,
	radiusMeters float64,
	cooldown time.Duration,
) *ProximityService {
	if radiusMeters <= 0 {
		radiusMeters = 100
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &ProximityService{
		venues:    venues,
		profiles:  profiles,
		visits:    visits,
		presence:  presence,
		state:     state,
		publisher: publisher,
		cache:     cache,
		radius:    radiusMeters,
		cooldown:  cooldown,
		Now:       time.Now,
	}
}

// HandleLocationUpdate processes one location fix for a device session.
// It reconciles the recorded active venue against the new position and, when
// the throttle allows, returns a confirmation prompt for the first
// non-rejected nearby venue. A nil prompt means nothing to ask this cycle.
//
// A transient store failure is returned to the caller; the caller simply
// skips the cycle and retries on the next location update.
func (s *ProximityService) HandleLocationUpdate(ctx context.Context, session *domain.Session, deviceID, userID string, loc domain.Coordinate) (*domain.CheckInPrompt, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load venue catalog: %w", err)
	}

	nearby := NearbyVenues(loc, catalog, s.radius)

	st, err := s.state.Load(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load confirmation state: %w", err)
	}

	// The user walked out of the venue they confirmed earlier: drop the
	// presence entry and the confirmation pair. Best-effort; the reconciler
	// cleans up whatever this leaves behind.
	if st != nil && st.ActiveVenueID != "" && !containsVenue(nearby, st.ActiveVenueID) {
		if err := s.checkOut(ctx, deviceID, userID, st.ActiveVenueID, "proximity_exit"); err != nil {
			slog.Warn("proximity exit cleanup incomplete", "user", userID, "venue", st.ActiveVenueID, "error", err)
		}
		st = nil
	}

	// Confirmed is terminal for the session: later updates only refresh
	// position, never re-prompt.
	if session.HasConfirmed() || session.State() == domain.SessionAwaitingConfirmation {
		return nil, nil
	}

	// Cooldown window since the last confirmation.
	if st != nil && st.ActiveVenueID != "" && s.Now().Sub(st.LastConfirm) < s.cooldown {
		return nil, nil
	}

	// First non-rejected nearby venue wins. Not necessarily the nearest:
	// predictable single-venue-per-cycle prompting.
	for _, v := range nearby {
		if session.Rejected(v.ID) {
			continue
		}
		if session.Propose(v.ID) {
			return &domain.CheckInPrompt{VenueID: v.ID, VenueName: v.Name}, nil
		}
		break
	}
	return nil, nil
}

// Confirm records that the user accepted the pending venue prompt.
// In order: the presence entry is written, the confirmation pair is
// persisted, then the session is marked confirmed. Visit bookkeeping and
// event publishing are best-effort afterthoughts.
func (s *ProximityService) Confirm(ctx context.Context, session *domain.Session, deviceID, userID, venueID string) error {
	if session.State() != domain.SessionAwaitingConfirmation || session.PendingVenue() != venueID {
		return ErrNoPendingConfirmation
	}

	now := s.Now()

	if err := s.presence.SetEntry(ctx, venueID, userID, now); err != nil {
		return fmt.Errorf("write presence entry: %w", err)
	}

	if err := s.state.Save(ctx, deviceID, &domain.ConfirmationState{
		ActiveVenueID: venueID,
		LastConfirm:   now,
	}); err != nil {
		return fmt.Errorf("persist confirmation state: %w", err)
	}

	session.MarkConfirmed()

	s.recordVisit(ctx, userID, venueID, now)

	if s.publisher != nil {
		_ = s.publisher.PublishCheckIn(ctx, &domain.PresenceEvent{
			VenueID: venueID,
			UserID:  userID,
			Time:    now,
			Reason:  "confirm",
		})
	}
	return nil
}

// Reject declines the pending prompt. The venue joins the session's
// rejected-set so it is not re-prompted this session; nothing is persisted.
func (s *ProximityService) Reject(session *domain.Session, venueID string) {
	session.Reject(venueID)
}

// Leave checks the user out of their active venue: the presence entry is
// deleted and the confirmation pair cleared. Both operations are attempted
// even if one fails; a partial failure leaves stale state that the
// reconciler eventually corrects.
func (s *ProximityService) Leave(ctx context.Context, deviceID, userID string) error {
	st, err := s.state.Load(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("load confirmation state: %w", err)
	}
	if st == nil || st.ActiveVenueID == "" {
		return nil
	}
	return s.checkOut(ctx, deviceID, userID, st.ActiveVenueID, "leave")
}

func (s *ProximityService) checkOut(ctx context.Context, deviceID, userID, venueID, reason string) error {
	var firstErr error

	if err := s.presence.DeleteEntry(ctx, venueID, userID); err != nil {
		firstErr = fmt.Errorf("delete presence entry: %w", err)
	}
	if err := s.state.Clear(ctx, deviceID); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("clear confirmation state: %w", err)
	}

	if s.publisher != nil {
		_ = s.publisher.PublishCheckOut(ctx, &domain.PresenceEvent{
			VenueID: venueID,
			UserID:  userID,
			Time:    s.Now(),
			Reason:  reason,
		})
	}
	return firstErr
}

// recordVisit writes the durable visit trail: a visit row, the idempotent
// visited-places union, and the venue on the user's online status.
// Failures here never fail the confirmation itself.
func (s *ProximityService) recordVisit(ctx context.Context, userID, venueID string, now time.Time) {
	var name, photo string
	if p, err := s.profiles.GetByID(ctx, userID); err == nil && p != nil {
		name, photo = p.Name, p.PhotoURL
	}

	if s.visits != nil {
		if err := s.visits.Record(ctx, &domain.Visit{
			VenueID:   venueID,
			UserID:    userID,
			UserName:  name,
			PhotoURL:  photo,
			VisitedAt: now,
		}); err != nil {
			slog.Warn("record visit failed", "user", userID, "venue", venueID, "error", err)
		}
	}

	if err := s.profiles.AppendVisited(ctx, userID, venueID); err != nil {
		slog.Warn("append visited place failed", "user", userID, "venue", venueID, "error", err)
	}

	if err := s.presence.SetStatus(ctx, &domain.OnlineStatus{
		UserID:       userID,
		IsOnline:     true,
		LastSeen:     now,
		CurrentVenue: venueID,
	}); err != nil {
		slog.Warn("set status failed", "user", userID, "error", err)
	}
}

// catalog loads the venue list with a short read-through cache.
func (s *ProximityService) catalog(ctx context.Context) ([]domain.Venue, error) {
	const cacheKey = "venues:catalog"

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var venues []domain.Venue
			if err := json.Unmarshal(data, &venues); err == nil {
				return venues, nil
			}
		}
	}

	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, err
	}

	// Venue catalogs change rarely; one minute keeps prompts responsive.
	if s.cache != nil {
		if data, err := json.Marshal(venues); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}
	return venues, nil
}

func containsVenue(venues []domain.Venue, id string) bool {
	for _, v := range venues {
		if v.ID == id {
			return true
		}
	}
	return false
}
