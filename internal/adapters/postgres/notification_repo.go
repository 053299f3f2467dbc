package postgres

import (
	"context"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// NotificationRepo implements ports.NotificationRepository with pgx.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create inserts a notification and returns its generated ID.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO notifications (type, from_user_id, to_user_id, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, n.Type, n.FromUserID, n.ToUserID, n.Data).Scan(&id)
	return id, err
}

// ListForUser returns a user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, type, from_user_id, to_user_id, read, COALESCE(data, '{}'), created_at
		FROM notifications
		WHERE to_user_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.FromUserID, &n.ToUserID, &n.Read, &n.Data, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one notification as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}
