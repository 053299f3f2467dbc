package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/usecases"
)

// GetProfileHandler returns a profile document.
func GetProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "profile id is required")
		}
		profile, err := deps.Profiles.Get(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if profile == nil {
			return errNotFound(c, "profile not found")
		}
		return c.JSON(profile)
	}
}

// UpsertProfileHandler creates or updates the caller's profile.
func UpsertProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}

		var p domain.Profile
		if err := c.BodyParser(&p); err != nil {
			return errBadRequest(c, "invalid profile body")
		}
		if p.Name == "" {
			return errBadRequest(c, "name is required")
		}
		p.ID = userID

		if err := deps.Profiles.Upsert(c.Context(), &p); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// SendFollowRequestHandler sends a follow request to the target profile.
// Re-sending an already pending request succeeds without a new notification.
func SendFollowRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		targetID := c.Params("id")

		created, err := deps.Profiles.SendFollowRequest(c.Context(), userID, targetID)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(fiber.Map{"created": created})
	}
}

// AcceptFollowRequestHandler accepts a pending follow request. The caller
// is the target; the path parameter names the requester.
func AcceptFollowRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		requesterID := c.Params("id")

		if err := deps.Profiles.AcceptFollowRequest(c.Context(), requesterID, userID); err != nil {
			return errConflict(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// RejectFollowRequestHandler drops a pending follow request.
func RejectFollowRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		requesterID := c.Params("id")

		if err := deps.Profiles.RejectFollowRequest(c.Context(), requesterID, userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ListFollowRequestsHandler lists the caller's pending follow requests.
func ListFollowRequestsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		requests, err := deps.Profiles.PendingFollowRequests(c.Context(), userID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(requests)
	}
}

// UnfollowHandler removes the caller's follow edge to the target.
func UnfollowHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Profiles.Unfollow(c.Context(), userID, c.Params("id")); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ListFollowersHandler lists the profiles following a user.
func ListFollowersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		followers, err := deps.Profiles.Followers(c.Context(), c.Params("id"))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(followers)
	}
}

// ListFollowingHandler lists the profiles a user follows.
func ListFollowingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		following, err := deps.Profiles.Following(c.Context(), c.Params("id"))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(following)
	}
}

// SendFriendRequestHandler sends a friend request to the target profile.
func SendFriendRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Profiles.SendFriendRequest(c.Context(), userID, c.Params("id")); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// AcceptFriendRequestHandler accepts a pending friend request from the
// profile named in the path.
func AcceptFriendRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Profiles.AcceptFriendRequest(c.Context(), c.Params("id"), userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// RejectFriendRequestHandler drops a pending friend request.
func RejectFriendRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Profiles.RejectFriendRequest(c.Context(), c.Params("id"), userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// RemoveFriendHandler dissolves a friendship.
func RemoveFriendHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Profiles.RemoveFriend(c.Context(), userID, c.Params("id")); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// FriendshipStatusHandler reports the relationship between the caller and
// the target profile.
func FriendshipStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		status, err := deps.Profiles.FriendshipStatus(c.Context(), userID, c.Params("id"))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(status)
	}
}

// ListChatsHandler lists the caller's chats, most recently active first.
func ListChatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		chats, err := deps.Chats.Chats(c.Context(), userID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(chats)
	}
}

// messageRequest is the body of a new chat message.
type messageRequest struct {
	Text string `json:"text"`
}

// SendMessageHandler delivers a message to the profile named in the path.
func SendMessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}

		var req messageRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid message body")
		}

		msg, err := deps.Chats.SendMessage(c.Context(), userID, c.Params("id"), req.Text)
		if err != nil {
			if errors.Is(err, usecases.ErrMessagesDisabled) {
				return errForbidden(c, err.Error())
			}
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(msg)
	}
}

// ListMessagesHandler returns the conversation with the profile named in
// the path, newest first.
func ListMessagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		msgs, err := deps.Chats.Messages(c.Context(), userID, c.Params("id"), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(msgs)
	}
}

// MarkChatReadHandler marks the conversation as read for the caller.
func MarkChatReadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		if err := deps.Chats.MarkRead(c.Context(), userID, c.Params("id"), userID); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ListNotificationsHandler lists the caller's notifications, newest first.
func ListNotificationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := callerIDs(c)
		if userID == "" {
			return errUnauthorized(c, "missing "+headerUserID+" header")
		}
		notifications, err := deps.Notifications.List(c.Context(), userID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(notifications)
	}
}

// MarkNotificationReadHandler flags one notification as read.
func MarkNotificationReadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Notifications.MarkRead(c.Context(), c.Params("id")); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}
