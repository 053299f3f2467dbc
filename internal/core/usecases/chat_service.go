package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/ports"
)

// ErrMessagesDisabled is returned when the receiver has opted out of direct
// messages.
var ErrMessagesDisabled = errors.New("user does not accept messages")

// ChatIDFor derives the deterministic chat ID for a user pair: the two IDs
// sorted and joined with an underscore, so either side computes the same ID.
func ChatIDFor(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// ChatService handles two-party chats and their messages.
type ChatService struct {
	chats    ports.ChatRepository
	profiles ports.ProfileRepository
	push     ports.NotificationSender

	// Now is overridable in tests.
	Now func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(chats ports.ChatRepository, profiles ports.ProfileRepository, push ports.NotificationSender) *ChatService {
	return &ChatService{
		chats:    chats,
		profiles: profiles,
		Now:      time.Now,
		push:     push,
	}
}

// SendMessage delivers a message from sender to receiver, creating the chat
// on first contact. Respects the receiver's allow-messages setting.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message")
	}

	receiver, err := s.profiles.GetByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("get receiver profile: %w", err)
	}
	if receiver == nil {
		return nil, fmt.Errorf("receiver %s not found", receiverID)
	}
	if !receiver.AllowMessages {
		return nil, ErrMessagesDisabled
	}

	chatID := ChatIDFor(senderID, receiverID)
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		chat = &domain.Chat{
			ID:           chatID,
			Participants: []string{senderID, receiverID},
			Unread:       map[string]int{},
			CreatedAt:    s.Now(),
		}
		if err := s.chats.CreateChat(ctx, chat); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	}

	msg := &domain.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  s.Now(),
	}
	id, err := s.chats.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id

	if err := s.chats.UpdateLastMessage(ctx, chatID, msg); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}

	if s.push != nil {
		var senderName string
		if p, err := s.profiles.GetByID(ctx, senderID); err == nil && p != nil {
			senderName = p.Name
		}
		_ = s.push.SendPush(ctx, receiverID, senderName, text)
	}
	return msg, nil
}

// Messages returns the chat's messages newest first, deduplicated by ID.
// Delivery retries can surface the same message twice; the first occurrence
// wins and relative order is preserved.
func (s *ChatService) Messages(ctx context.Context, userA, userB string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := s.chats.ListMessages(ctx, ChatIDFor(userA, userB), limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// Chats lists all chats a user participates in.
func (s *ChatService) Chats(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.chats.ListChatsForUser(ctx, userID)
}

// MarkRead marks the other party's messages as read and zeroes the user's
// unread counter for the chat.
func (s *ChatService) MarkRead(ctx context.Context, userA, userB, readerID string) error {
	return s.chats.MarkMessagesRead(ctx, ChatIDFor(userA, userB), readerID)
}
