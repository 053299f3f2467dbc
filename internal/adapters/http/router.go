package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/cembilgin/placepulse/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: location updates arrive continuously, so the ceiling
	// is per device rather than per IP when the header is present.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if dev := c.Get(headerDeviceID); dev != "" {
				return dev
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// The embedded active-user list is superseded by the reconciled one.
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/venues/:id/active-users/legacy",
			SunsetDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/venues/:id/active-users",
		},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/venues", timeout.NewWithContext(ListVenuesHandler(deps), 15*time.Second))
	v1.Post("/venues", timeout.NewWithContext(CreateVenueHandler(deps), 15*time.Second))
	v1.Get("/venues/nearby", timeout.NewWithContext(NearbyVenuesHandler(deps), 15*time.Second))
	v1.Get("/venues/:id", timeout.NewWithContext(GetVenueHandler(deps), 15*time.Second))
	v1.Get("/venues/:id/active-users", timeout.NewWithContext(VenueActiveUsersHandler(deps), 15*time.Second))
	v1.Get("/venues/:id/active-users/legacy", timeout.NewWithContext(LegacyVenueActiveUsersHandler(deps), 15*time.Second))
	v1.Get("/venues/:id/visitors", timeout.NewWithContext(VenueVisitorsHandler(deps), 15*time.Second))
	v1.Post("/venues/:id/reviews", timeout.NewWithContext(AddReviewHandler(deps), 15*time.Second))
	v1.Get("/stats", timeout.NewWithContext(CatalogStatsHandler(deps), 15*time.Second))

	// Presence flow
	v1.Post("/location", timeout.NewWithContext(LocationUpdateHandler(deps), 15*time.Second))
	v1.Post("/checkins", timeout.NewWithContext(ConfirmCheckInHandler(deps), 15*time.Second))
	v1.Post("/checkins/reject", timeout.NewWithContext(RejectCheckInHandler(deps), 15*time.Second))
	v1.Delete("/checkins", timeout.NewWithContext(LeaveHandler(deps), 15*time.Second))
	v1.Post("/presence/heartbeat", timeout.NewWithContext(HeartbeatHandler(deps), 15*time.Second))
	v1.Post("/signout", timeout.NewWithContext(SignOutHandler(deps), 15*time.Second))

	// Profiles and social graph
	v1.Get("/profiles/:id", timeout.NewWithContext(GetProfileHandler(deps), 15*time.Second))
	v1.Put("/profiles/me", timeout.NewWithContext(UpsertProfileHandler(deps), 15*time.Second))
	v1.Get("/profiles/:id/followers", timeout.NewWithContext(ListFollowersHandler(deps), 15*time.Second))
	v1.Get("/profiles/:id/following", timeout.NewWithContext(ListFollowingHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/follow-requests", timeout.NewWithContext(SendFollowRequestHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/follow-requests/accept", timeout.NewWithContext(AcceptFollowRequestHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/follow-requests/reject", timeout.NewWithContext(RejectFollowRequestHandler(deps), 15*time.Second))
	v1.Delete("/profiles/:id/follow", timeout.NewWithContext(UnfollowHandler(deps), 15*time.Second))
	v1.Get("/me/follow-requests", timeout.NewWithContext(ListFollowRequestsHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/friend-requests", timeout.NewWithContext(SendFriendRequestHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/friend-requests/accept", timeout.NewWithContext(AcceptFriendRequestHandler(deps), 15*time.Second))
	v1.Post("/profiles/:id/friend-requests/reject", timeout.NewWithContext(RejectFriendRequestHandler(deps), 15*time.Second))
	v1.Delete("/profiles/:id/friend", timeout.NewWithContext(RemoveFriendHandler(deps), 15*time.Second))
	v1.Get("/profiles/:id/friendship", timeout.NewWithContext(FriendshipStatusHandler(deps), 15*time.Second))

	// Chats
	v1.Get("/chats", timeout.NewWithContext(ListChatsHandler(deps), 15*time.Second))
	v1.Get("/chats/:id/messages", timeout.NewWithContext(ListMessagesHandler(deps), 15*time.Second))
	v1.Post("/chats/:id/messages", timeout.NewWithContext(SendMessageHandler(deps), 15*time.Second))
	v1.Post("/chats/:id/read", timeout.NewWithContext(MarkChatReadHandler(deps), 15*time.Second))

	// Notifications
	v1.Get("/notifications", timeout.NewWithContext(ListNotificationsHandler(deps), 15*time.Second))
	v1.Post("/notifications/:id/read", timeout.NewWithContext(MarkNotificationReadHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
