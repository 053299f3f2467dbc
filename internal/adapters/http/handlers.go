package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/usecases"
	"github.com/cembilgin/placepulse/internal/pkg/metrics"
)

// Identity headers set by the authenticating gateway.
const (
	headerUserID   = "X-User-ID"
	headerDeviceID = "X-Device-ID"
)

func callerIDs(c *fiber.Ctx) (userID, deviceID string) {
	return c.Get(headerUserID), c.Get(headerDeviceID)
}

// CatalogStats holds row counts from the durable tables.
type CatalogStats struct {
	Users         int    `json:"users"`
	Venues        int    `json:"venues"`
	Reviews       int    `json:"reviews"`
	Visits        int    `json:"visits"`
	Notifications int    `json:"notifications"`
	NewestVenue   string `json:"newest_venue,omitempty"`
}

// CatalogStatsHandler returns row counts from the durable tables.
func CatalogStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM users),
				(SELECT count(*) FROM venues),
				(SELECT count(*) FROM reviews),
				(SELECT count(*) FROM visits),
				(SELECT count(*) FROM notifications),
				COALESCE((SELECT max(created_at)::text FROM venues), '')
		`)
		if err := row.Scan(&stats.Users, &stats.Venues, &stats.Reviews,
			&stats.Visits, &stats.Notifications, &stats.NewestVenue); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListVenuesHandler returns the venue catalog, paginated.
func ListVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		venues, err := deps.Venues.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(venues)
		if offset >= total {
			venues = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			venues = venues[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: venues, Pagination: pg})
	}
}

// CreateVenueHandler adds a venue to the catalog.
func CreateVenueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var v domain.Venue
		if err := c.BodyParser(&v); err != nil {
			return errBadRequest(c, "invalid venue body")
		}
		if v.Name == "" {
			return errBadRequest(c, "venue name is required")
		}
		if v.Location.Lat == 0 && v.Location.Lon == 0 {
			return errBadRequest(c, "venue location is required")
		}

		id, err := deps.Venues.Create(c.Context(), &v)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	}
}

// NearbyVenuesHandler returns venues within a radius of a point, in catalog
// order with computed distances.
func NearbyVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 100)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		venues, err := deps.Venues.FindNearby(c.Context(), lat, lon, radius)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(venues)
	}
}

// GetVenueHandler returns a single venue with reviews and the reconciled
// active-user list.
func GetVenueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "venue id is required")
		}
		venue, err := deps.Venues.Get(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if venue == nil {
			return errNotFound(c, "venue not found")
		}
		return c.JSON(venue)
	}
}

// VenueActiveUsersHandler returns the reconciled active-user list.
func VenueActiveUsersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "venue id is required")
		}
		users, err := deps.Venues.ActiveUsers(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(users)
	}
}

// LegacyVenueActiveUsersHandler serves the old embedded active-user ID list.
// Routed behind the deprecation middleware; new clients use the reconciled
// endpoint instead.
func LegacyVenueActiveUsersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "venue id is required")
		}
		ids, err := deps.Venues.LegacyActiveUserIDs(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"active_user_ids": ids})
	}
}

// VenueVisitorsHandler returns the venue's distinct visitors from the last
// thirty days.
func VenueVisitorsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "venue id is required")
		}
		visitors, err := deps.Venues.RecentVisitors(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(visitors)
	}
}

// AddReviewHandler appends a review to a venue.
func AddReviewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}

		var rev domain.Review
		if err := c.BodyParser(&rev); err != nil {
			return errBadRequest(c, "invalid review body")
		}
		if rev.Rating < 0 || rev.Rating > 5 {
			return errBadRequest(c, "rating must be between 0 and 5")
		}
		rev.VenueID = c.Params("id")
		rev.UserID = userID

		if err := deps.Venues.AddReview(c.Context(), &rev); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(201)
	}
}

// locationUpdate is the body of a device location fix.
type locationUpdate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationUpdateHandler processes a location fix and returns either a
// confirmation prompt or an empty 200.
func LocationUpdateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, deviceID := callerIDs(c)
		if userID == "" || deviceID == "" {
			return errUnauthorized(c, "missing identity headers")
		}

		var loc locationUpdate
		if err := c.BodyParser(&loc); err != nil {
			return errBadRequest(c, "invalid location body")
		}
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
			return errBadRequest(c, "coordinates out of range")
		}

		metrics.LocationUpdates.Inc()

		session := deps.Sessions.Get(deviceID)
		prompt, err := deps.Proximity.HandleLocationUpdate(c.Context(), session, deviceID, userID,
			domain.Coordinate{Lat: loc.Lat, Lon: loc.Lon})
		if err != nil {
			return errInternal(c, err.Error())
		}
		if prompt == nil {
			return c.JSON(fiber.Map{"prompt": nil})
		}

		metrics.ConfirmationPrompts.WithLabelValues(prompt.VenueID).Inc()
		return c.JSON(fiber.Map{"prompt": prompt})
	}
}

// checkInRequest identifies the venue being confirmed or rejected.
type checkInRequest struct {
	VenueID string `json:"venue_id"`
}

// ConfirmCheckInHandler records that the user accepted the pending prompt.
func ConfirmCheckInHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, deviceID := callerIDs(c)
		if userID == "" || deviceID == "" {
			return errUnauthorized(c, "missing identity headers")
		}

		var req checkInRequest
		if err := c.BodyParser(&req); err != nil || req.VenueID == "" {
			return errBadRequest(c, "venue_id is required")
		}

		session := deps.Sessions.Get(deviceID)
		if err := deps.Proximity.Confirm(c.Context(), session, deviceID, userID, req.VenueID); err != nil {
			if errors.Is(err, usecases.ErrNoPendingConfirmation) {
				return errConflict(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		metrics.CheckIns.WithLabelValues(req.VenueID).Inc()
		return c.SendStatus(204)
	}
}

// RejectCheckInHandler declines the pending prompt for this session.
func RejectCheckInHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, deviceID := callerIDs(c)
		if deviceID == "" {
			return errUnauthorized(c, "missing "+headerDeviceID+" header")
		}

		var req checkInRequest
		if err := c.BodyParser(&req); err != nil || req.VenueID == "" {
			return errBadRequest(c, "venue_id is required")
		}

		deps.Proximity.Reject(deps.Sessions.Get(deviceID), req.VenueID)
		return c.SendStatus(204)
	}
}

// LeaveHandler checks the user out of their active venue.
func LeaveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, deviceID := callerIDs(c)
		if userID == "" || deviceID == "" {
			return errUnauthorized(c, "missing identity headers")
		}

		if err := deps.Proximity.Leave(c.Context(), deviceID, userID); err != nil {
			return errInternal(c, err.Error())
		}
		metrics.CheckOuts.WithLabelValues("", "leave").Inc()
		return c.SendStatus(204)
	}
}

// HeartbeatHandler refreshes the caller's online status.
func HeartbeatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Presence.Heartbeat(c.Context(), userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// SignOutHandler tears down the caller's presence, confirmation state, and
// in-memory session.
func SignOutHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, deviceID := callerIDs(c)
		if userID == "" || deviceID == "" {
			return errUnauthorized(c, "missing identity headers")
		}
		if err := deps.Presence.SignOut(c.Context(), deviceID, userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}
