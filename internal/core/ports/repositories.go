package ports

import (
	"context"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// ProfileRepository persists durable user documents.
type ProfileRepository interface {
	Upsert(ctx context.Context, p *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	// AppendVisited adds a venue ID to the profile's visited list.
	// Idempotent union: appending an already-present ID is a no-op.
	AppendVisited(ctx context.Context, userID, venueID string) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]domain.Profile, error)
	ListFollowing(ctx context.Context, userID string) ([]domain.Profile, error)
	AddFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error)
	RemoveFollowRequest(ctx context.Context, requesterID, targetID string) error
	HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error)
	ListFollowRequests(ctx context.Context, targetID string) ([]domain.Profile, error)
	AddFriendRequest(ctx context.Context, senderID, receiverID string) error
	RemoveFriendRequest(ctx context.Context, senderID, receiverID string) error
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	FriendshipStatus(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error)
}

// VenueRepository persists the venue catalog.
type VenueRepository interface {
	Create(ctx context.Context, v *domain.Venue) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	// List returns the whole catalog in stable insertion order. The
	// proximity matcher relies on that order being preserved.
	List(ctx context.Context) ([]domain.Venue, error)
	AddReview(ctx context.Context, r *domain.Review, newRating float64) error
	ListReviews(ctx context.Context, venueID string) ([]domain.Review, error)
	LegacyActiveUserIDs(ctx context.Context, venueID string) ([]string, error)
}

// VisitRepository persists confirmed visits.
type VisitRepository interface {
	Record(ctx context.Context, v *domain.Visit) error
	// RecentVisitors returns distinct visitors since the given time,
	// newest first.
	RecentVisitors(ctx context.Context, venueID string, since time.Time) ([]domain.Visitor, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (string, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// ChatRepository persists chats and messages.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	CreateChat(ctx context.Context, chat *domain.Chat) error
	UpdateLastMessage(ctx context.Context, chatID string, msg *domain.Message) error
	ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	InsertMessage(ctx context.Context, msg *domain.Message) (string, error)
	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, chatID, userID string) error
}
