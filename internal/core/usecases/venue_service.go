package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
)

// VenueService serves the venue catalog and its derived read models.
type VenueService struct {
	venues     ports.VenueRepository
	visits     ports.VisitRepository
	reconciler *ReconcilerService
	cache      ports.CacheService
	publisher  ports.EventPublisher

	// Now is overridable in tests.
	Now func() time.Time
}

// NewVenueService creates a new VenueService.
func NewVenueService(
	venues ports.VenueRepository,
	visits ports.VisitRepository,
	reconciler *ReconcilerService,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *VenueService {
	return &VenueService{
		venues:     venues,
		visits:     visits,
		reconciler: reconciler,
		cache:      cache,
		publisher:  publisher,
		Now:        time.Now,
	}
}

// List returns the full catalog, cached briefly.
func (s *VenueService) List(ctx context.Context) ([]domain.Venue, error) {
	const cacheKey = "venues:all"

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
		return nil, fmt.Errorf("list venues: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(venues); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}
	return venues, nil
}

// FindNearby returns the venues within radiusMeters of the given point,
// each annotated with its distance. Catalog order is preserved.
func (s *VenueService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64) ([]domain.Venue, error) {
	venues, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NearbyVenues(domain.Coordinate{Lat: lat, Lon: lon}, venues, radiusMeters), nil
}

// Get returns a single venue with its reviews and the reconciled active-user
// list. An empty active-user list is served if reconciliation fails; the
// venue document itself is authoritative.
func (s *VenueService) Get(ctx context.Context, id string) (*domain.Venue, error) {
	venue, err := s.venues.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get venue %s: %w", id, err)
	}
	if venue == nil {
		return nil, nil
	}

	reviews, err := s.venues.ListReviews(ctx, id)
	if err != nil {
		slog.Warn("list reviews failed", "venue", id, "error", err)
	} else {
		venue.Reviews = reviews
	}

	if s.reconciler != nil {
		active, err := s.reconciler.ActiveUsers(ctx, id)
		if err != nil {
			slog.Warn("active user reconciliation failed", "venue", id, "error", err)
			active = []domain.ActiveUser{}
		}
		venue.ActiveUsers = active
	}
	return venue, nil
}

// ActiveUsers returns the reconciled active-user list for one venue.
func (s *VenueService) ActiveUsers(ctx context.Context, venueID string) ([]domain.ActiveUser, error) {
	if s.reconciler == nil {
		return []domain.ActiveUser{}, nil
	}
	return s.reconciler.ActiveUsers(ctx, venueID)
}

// Create stores a new venue and invalidates the catalog caches.
func (s *VenueService) Create(ctx context.Context, v *domain.Venue) (string, error) {
	id, err := s.venues.Create(ctx, v)
	if err != nil {
		return "", fmt.Errorf("create venue: %w", err)
	}

	s.invalidateCatalog(ctx)
	if s.publisher != nil {
		_ = s.publisher.PublishBroadcast(ctx, []byte(`{"event":"venues.updated"}`))
	}
	return id, nil
}

// AddReview appends a review and folds its rating into the venue's running
// average: ((current * count) + new) / (count + 1).
func (s *VenueService) AddReview(ctx context.Context, r *domain.Review) error {
	venue, err := s.venues.GetByID(ctx, r.VenueID)
	if err != nil {
		return fmt.Errorf("get venue %s: %w", r.VenueID, err)
	}
	if venue == nil {
		return fmt.Errorf("venue %s not found", r.VenueID)
	}

	reviews, err := s.venues.ListReviews(ctx, r.VenueID)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}

	count := float64(len(reviews))
	newRating := ((venue.Rating * count) + r.Rating) / (count + 1)

	if err := s.venues.AddReview(ctx, r, newRating); err != nil {
		return fmt.Errorf("add review: %w", err)
	}

	s.invalidateCatalog(ctx)
	return nil
}

// RecentVisitors returns the distinct visitors from the last thirty days,
// newest first.
func (s *VenueService) RecentVisitors(ctx context.Context, venueID string) ([]domain.Visitor, error) {
	since := s.Now().AddDate(0, 0, -30)
	visitors, err := s.visits.RecentVisitors(ctx, venueID, since)
	if err != nil {
		return nil, fmt.Errorf("recent visitors for %s: %w", venueID, err)
	}
	return visitors, nil
}

// LegacyActiveUserIDs serves the embedded active-user ID list kept for old
// clients. New clients read the reconciled list instead.
func (s *VenueService) LegacyActiveUserIDs(ctx context.Context, venueID string) ([]string, error) {
	return s.venues.LegacyActiveUserIDs(ctx, venueID)
}

func (s *VenueService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "venues:all")
	_ = s.cache.Delete(ctx, "venues:catalog")
}
