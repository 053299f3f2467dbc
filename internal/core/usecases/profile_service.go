package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
)

// ProfileService handles profiles and the social graph around them.
type ProfileService struct {
	profiles      ports.ProfileRepository
	notifications ports.NotificationRepository
	push          ports.NotificationSender

	// Now is overridable in tests.
	Now func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(
	profiles ports.ProfileRepository,
	notifications ports.NotificationRepository,
	push ports.NotificationSender,
) *ProfileService {
	return &ProfileService{
		profiles:      profiles,
		notifications: notifications,
		push:          push,
		Now:           time.Now,
	}
}

// Get returns one profile, nil when absent.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Upsert creates or updates a profile document.
func (s *ProfileService) Upsert(ctx context.Context, p *domain.Profile) error {
	return s.profiles.Upsert(ctx, p)
}

// SendFollowRequest records a pending follow request. Re-sending an already
// pending request is a no-op and reports created=false; the notification is
// only raised for the first send.
func (s *ProfileService) SendFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	if requesterID == targetID {
		return false, fmt.Errorf("cannot follow yourself")
	}

	created, err := s.profiles.AddFollowRequest(ctx, requesterID, targetID)
	if err != nil {
		return false, fmt.Errorf("add follow request: %w", err)
	}
	if !created {
		return false, nil
	}

	s.notify(ctx, targetID, domain.NotificationFollowRequest, requesterID, "sent you a follow request")
	return true, nil
}

// AcceptFollowRequest consumes the pending request and establishes the
// follow edge: requester follows target. The requester is notified.
func (s *ProfileService) AcceptFollowRequest(ctx context.Context, requesterID, targetID string) error {
	pending, err := s.profiles.HasFollowRequest(ctx, requesterID, targetID)
	if err != nil {
		return fmt.Errorf("check follow request: %w", err)
	}
	if !pending {
		return fmt.Errorf("no pending follow request from %s", requesterID)
	}

	if err := s.profiles.Follow(ctx, requesterID, targetID); err != nil {
		return fmt.Errorf("establish follow: %w", err)
	}
	if err := s.profiles.RemoveFollowRequest(ctx, requesterID, targetID); err != nil {
		slog.Warn("remove accepted follow request failed", "requester", requesterID, "target", targetID, "error", err)
	}

	s.notify(ctx, requesterID, domain.NotificationFollowAccept, targetID, "accepted your follow request")
	return nil
}

// RejectFollowRequest drops the pending request without notifying anyone.
func (s *ProfileService) RejectFollowRequest(ctx context.Context, requesterID, targetID string) error {
	return s.profiles.RemoveFollowRequest(ctx, requesterID, targetID)
}

// PendingFollowRequests lists the profiles waiting on the target's decision.
func (s *ProfileService) PendingFollowRequests(ctx context.Context, targetID string) ([]domain.Profile, error) {
	return s.profiles.ListFollowRequests(ctx, targetID)
}

// Unfollow removes the follow edge. Unfollowing someone not followed is a
// no-op.
func (s *ProfileService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.profiles.Unfollow(ctx, followerID, followeeID)
}

// IsFollowing reports whether followerID follows followeeID.
func (s *ProfileService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.profiles.IsFollowing(ctx, followerID, followeeID)
}

// Followers lists the profiles following a user.
func (s *ProfileService) Followers(ctx context.Context, userID string) ([]domain.Profile, error) {
	return s.profiles.ListFollowers(ctx, userID)
}

// Following lists the profiles a user follows.
func (s *ProfileService) Following(ctx context.Context, userID string) ([]domain.Profile, error) {
	return s.profiles.ListFollowing(ctx, userID)
}

// SendFriendRequest records a pending friend request.
func (s *ProfileService) SendFriendRequest(ctx context.Context, senderID, receiverID string) error {
	if senderID == receiverID {
		return fmt.Errorf("cannot befriend yourself")
	}
	if err := s.profiles.AddFriendRequest(ctx, senderID, receiverID); err != nil {
		return fmt.Errorf("add friend request: %w", err)
	}
	s.notify(ctx, receiverID, domain.NotificationFollowRequest, senderID, "sent you a friend request")
	return nil
}

// AcceptFriendRequest turns a pending request into a mutual friendship.
func (s *ProfileService) AcceptFriendRequest(ctx context.Context, senderID, receiverID string) error {
	if err := s.profiles.AddFriend(ctx, senderID, receiverID); err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	if err := s.profiles.RemoveFriendRequest(ctx, senderID, receiverID); err != nil {
		slog.Warn("remove accepted friend request failed", "sender", senderID, "receiver", receiverID, "error", err)
	}
	s.notify(ctx, senderID, domain.NotificationFollowAccept, receiverID, "accepted your friend request")
	return nil
}

// RejectFriendRequest drops the pending friend request.
func (s *ProfileService) RejectFriendRequest(ctx context.Context, senderID, receiverID string) error {
	return s.profiles.RemoveFriendRequest(ctx, senderID, receiverID)
}

// RemoveFriend dissolves the friendship in both directions.
func (s *ProfileService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return s.profiles.RemoveFriend(ctx, userID, friendID)
}

// FriendshipStatus reports the relationship between two users.
func (s *ProfileService) FriendshipStatus(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error) {
	return s.profiles.FriendshipStatus(ctx, userID, otherID)
}

// notify writes the in-app notification and fires the best-effort push.
func (s *ProfileService) notify(ctx context.Context, recipientID, kind, actorID, body string) {
	actorName := actorID
	var actorPhoto string
	if p, err := s.profiles.GetByID(ctx, actorID); err == nil && p != nil {
		actorName, actorPhoto = p.Name, p.PhotoURL
	}

	if s.notifications != nil {
		_, err := s.notifications.Create(ctx, &domain.Notification{
			Type:       kind,
			FromUserID: actorID,
			ToUserID:   recipientID,
			Data: map[string]any{
				"actor_name":  actorName,
				"actor_photo": actorPhoto,
				"body":        fmt.Sprintf("%s %s", actorName, body),
			},
			CreatedAt: s.Now(),
		})
		if err != nil {
			slog.Warn("create notification failed", "recipient", recipientID, "type", kind, "error", err)
		}
	}

	if s.push != nil {
		if err := s.push.SendPush(ctx, recipientID, actorName, body); err != nil {
			slog.Debug("push delivery failed", "recipient", recipientID, "error", err)
		}
	}
}
