package ports

import (
	"context"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// PresenceStore is the ephemeral per-venue presence tree.
// Set and delete are idempotent by key; deleting an absent entry is a no-op.
// The store applies no TTLs of its own: staleness is the reconciler's job.
type PresenceStore interface {
	SetEntry(ctx context.Context, venueID, userID string, enteredAt time.Time) error
	DeleteEntry(ctx context.Context, venueID, userID string) error
	ListEntries(ctx context.Context, venueID string) ([]domain.PresenceEntry, error)
	SetStatus(ctx context.Context, st *domain.OnlineStatus) error
	// GetStatus returns (nil, nil) when no status exists for the user.
	GetStatus(ctx context.Context, userID string) (*domain.OnlineStatus, error)
	ClearStatus(ctx context.Context, userID string) error
	// ListStatuses scans all recorded online statuses, for the offline
	// sweeper.
	ListStatuses(ctx context.Context) ([]domain.OnlineStatus, error)
}

// ConfirmationStateStore persists the per-device ConfirmationState.
// The active venue ID and last-confirm timestamp are always written and
// cleared together.
type ConfirmationStateStore interface {
	// Load returns (nil, nil) when no state is recorded for the device.
	Load(ctx context.Context, deviceID string) (*domain.ConfirmationState, error)
	Save(ctx context.Context, deviceID string, st *domain.ConfirmationState) error
	Clear(ctx context.Context, deviceID string) error
}

// EventPublisher publishes presence events to a message broker.
type EventPublisher interface {
	PublishCheckIn(ctx context.Context, e *domain.PresenceEvent) error
	PublishCheckOut(ctx context.Context, e *domain.PresenceEvent) error
	PublishStatus(ctx context.Context, st *domain.OnlineStatus) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to presence events from a message broker.
type EventSubscriber interface {
	SubscribeStatus(ctx context.Context, handler func(ctx context.Context, st *domain.OnlineStatus) error) error
	SubscribeCheckIns(ctx context.Context, handler func(ctx context.Context, e *domain.PresenceEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationSender delivers push notifications. Delivery mechanics are
// out of scope; implementations may be nil-tolerant no-ops.
type NotificationSender interface {
	SendPush(ctx context.Context, userID, title, body string) error
}
