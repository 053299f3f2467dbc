package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// ChatRepo implements ports.ChatRepository with pgx.
type ChatRepo struct {
	db *DB
}

// NewChatRepo creates a new ChatRepo.
func NewChatRepo(db *DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetChat returns one chat, nil when absent.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var (
		c       domain.Chat
		lastRaw []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, participants, last_message, COALESCE(unread, '{}'), created_at
		FROM chats WHERE id = $1
	`, chatID).Scan(&c.ID, &c.Participants, &lastRaw, &c.Unread, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(lastRaw) > 0 {
		var m domain.Message
		if err := json.Unmarshal(lastRaw, &m); err == nil {
			c.LastMessage = &m
		}
	}
	return &c, nil
}

// CreateChat inserts a chat row. Creating an existing chat is a no-op, so
// both parties racing on first contact is harmless.
func (r *ChatRepo) CreateChat(ctx context.Context, chat *domain.Chat) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO chats (id, participants)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, chat.ID, chat.Participants)
	return err
}

// UpdateLastMessage stores the latest message on the chat row and bumps the
// receiver's unread counter.
func (r *ChatRepo) UpdateLastMessage(ctx context.Context, chatID string, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		UPDATE chats
		SET last_message = $2,
		    unread = COALESCE(unread, '{}'::jsonb) ||
		             jsonb_build_object($3::text, COALESCE((unread->>$3)::int, 0) + 1)
		WHERE id = $1
	`, chatID, data, msg.ReceiverID)
	return err
}

// ListChatsForUser returns a user's chats, most recently active first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, participants, last_message, COALESCE(unread, '{}'), created_at
		FROM chats
		WHERE $1 = ANY(participants)
		ORDER BY COALESCE((last_message->>'created_at')::timestamptz, created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var (
			c       domain.Chat
			lastRaw []byte
		)
		if err := rows.Scan(&c.ID, &c.Participants, &lastRaw, &c.Unread, &c.CreatedAt); err != nil {
			return nil, err
		}
		if len(lastRaw) > 0 {
			var m domain.Message
			if err := json.Unmarshal(lastRaw, &m); err == nil {
				c.LastMessage = &m
			}
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// InsertMessage appends a message and returns its generated ID.
func (r *ChatRepo) InsertMessage(ctx context.Context, msg *domain.Message) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO messages (chat_id, sender_id, receiver_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, msg.ChatID, msg.SenderID, msg.ReceiverID, msg.Text, msg.CreatedAt).Scan(&id)
	return id, err
}

// ListMessages returns the chat's messages, newest first.
func (r *ChatRepo) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, chat_id, sender_id, receiver_id, text, read, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessagesRead marks the other party's messages read and zeroes the
// reader's unread counter, atomically.
func (r *ChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE messages SET read = TRUE
		WHERE chat_id = $1 AND receiver_id = $2 AND NOT read
	`, chatID, userID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chats
		SET unread = COALESCE(unread, '{}'::jsonb) || jsonb_build_object($2::text, 0)
		WHERE id = $1
	`, chatID, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
