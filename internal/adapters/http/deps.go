package http

import (
	"github.com/nats-io/nats.go"

	"github.com/cembilgin/placepulse/internal/adapters/postgres"
	"github.com/cembilgin/placepulse/internal/adapters/valkey"
	"github.com/cembilgin/placepulse/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Proximity     *usecases.ProximityService
	Venues        *usecases.VenueService
	Profiles      *usecases.ProfileService
	Chats         *usecases.ChatService
	Notifications *usecases.NotificationService
	Presence      *usecases.PresenceService
	Sessions      *usecases.SessionRegistry
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}
