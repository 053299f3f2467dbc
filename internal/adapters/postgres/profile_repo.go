package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// ProfileRepo implements ports.ProfileRepository with pgx.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Upsert inserts or updates a profile document.
func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, name, photo_url, allow_messages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, photo_url = EXCLUDED.photo_url,
		    allow_messages = EXCLUDED.allow_messages
	`, p.ID, p.Name, p.PhotoURL, p.AllowMessages)
	return err
}

// GetByID returns a profile with its social counters and visited places,
// nil when no such user exists.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.Pool.QueryRow(ctx, `
		SELECT u.id, u.name, COALESCE(u.photo_url, ''), u.allow_messages, u.created_at,
		       (SELECT COUNT(*) FROM follows WHERE followee_id = u.id) AS followers,
		       (SELECT COUNT(*) FROM follows WHERE follower_id = u.id) AS following,
		       COALESCE(
		           (SELECT array_agg(venue_id ORDER BY visited_at) FROM user_visited_places WHERE user_id = u.id),
		           '{}'
		       ) AS visited
		FROM users u WHERE u.id = $1
	`, id).Scan(
		&p.ID, &p.Name, &p.PhotoURL, &p.AllowMessages, &p.CreatedAt,
		&p.Followers, &p.Following, &p.VisitedPlaces,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AppendVisited adds a venue to the visited list. Idempotent union.
func (r *ProfileRepo) AppendVisited(ctx context.Context, userID, venueID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_visited_places (user_id, venue_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, venue_id) DO NOTHING
	`, userID, venueID)
	return err
}

// Follow establishes the follower -> followee edge. Idempotent.
func (r *ProfileRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`, followerID, followeeID)
	return err
}

// Unfollow removes the edge. Removing an absent edge is a no-op.
func (r *ProfileRepo) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID)
	return err
}

// IsFollowing reports whether the edge exists.
func (r *ProfileRepo) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID).Scan(&exists)
	return exists, err
}

// ListFollowers returns the profiles following a user.
func (r *ProfileRepo) ListFollowers(ctx context.Context, userID string) ([]domain.Profile, error) {
	return r.queryProfiles(ctx, `
		SELECT u.id, u.name, COALESCE(u.photo_url, ''), u.allow_messages, u.created_at
		FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC
	`, userID)
}

// ListFollowing returns the profiles a user follows.
func (r *ProfileRepo) ListFollowing(ctx context.Context, userID string) ([]domain.Profile, error) {
	return r.queryProfiles(ctx, `
		SELECT u.id, u.name, COALESCE(u.photo_url, ''), u.allow_messages, u.created_at
		FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
	`, userID)
}

// AddFollowRequest records a pending request. Returns false when an
// identical request is already pending.
func (r *ProfileRepo) AddFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO follow_requests (requester_id, target_id)
		VALUES ($1, $2)
		ON CONFLICT (requester_id, target_id) DO NOTHING
	`, requesterID, targetID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveFollowRequest drops a pending request.
func (r *ProfileRepo) RemoveFollowRequest(ctx context.Context, requesterID, targetID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM follow_requests WHERE requester_id = $1 AND target_id = $2`,
		requesterID, targetID)
	return err
}

// HasFollowRequest reports whether a request is pending.
func (r *ProfileRepo) HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follow_requests WHERE requester_id = $1 AND target_id = $2)`,
		requesterID, targetID).Scan(&exists)
	return exists, err
}

// ListFollowRequests returns the requester profiles pending on a target.
func (r *ProfileRepo) ListFollowRequests(ctx context.Context, targetID string) ([]domain.Profile, error) {
	return r.queryProfiles(ctx, `
		SELECT u.id, u.name, COALESCE(u.photo_url, ''), u.allow_messages, u.created_at
		FROM follow_requests fr JOIN users u ON u.id = fr.requester_id
		WHERE fr.target_id = $1
		ORDER BY fr.created_at DESC
	`, targetID)
}

// AddFriendRequest records a pending friend request. Idempotent.
func (r *ProfileRepo) AddFriendRequest(ctx context.Context, senderID, receiverID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO friend_requests (sender_id, receiver_id)
		VALUES ($1, $2)
		ON CONFLICT (sender_id, receiver_id) DO NOTHING
	`, senderID, receiverID)
	return err
}

// RemoveFriendRequest drops a pending friend request.
func (r *ProfileRepo) RemoveFriendRequest(ctx context.Context, senderID, receiverID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM friend_requests WHERE sender_id = $1 AND receiver_id = $2`,
		senderID, receiverID)
	return err
}

// AddFriend stores the friendship in both directions inside one transaction.
func (r *ProfileRepo) AddFriend(ctx context.Context, userID, friendID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO friends (user_id, friend_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, friend_id) DO NOTHING
		`, pair[0], pair[1]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// RemoveFriend dissolves the friendship in both directions.
func (r *ProfileRepo) RemoveFriend(ctx context.Context, userID, friendID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM friends
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`, userID, friendID)
	return err
}

// FriendshipStatus summarises the relationship between two users.
func (r *ProfileRepo) FriendshipStatus(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error) {
	var st domain.FriendshipStatus
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2),
		       EXISTS(SELECT 1 FROM friend_requests WHERE sender_id = $2 AND receiver_id = $1),
		       EXISTS(SELECT 1 FROM friend_requests WHERE sender_id = $1 AND receiver_id = $2)
	`, userID, otherID).Scan(&st.AreFriends, &st.IsPending, &st.IsRequestSent)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *ProfileRepo) queryProfiles(ctx context.Context, query string, args ...any) ([]domain.Profile, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.PhotoURL, &p.AllowMessages, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
