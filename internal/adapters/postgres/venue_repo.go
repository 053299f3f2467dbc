package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// VenueRepo implements ports.VenueRepository with pgx.
type VenueRepo struct {
	db *DB
}

// NewVenueRepo creates a new VenueRepo.
func NewVenueRepo(db *DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// Create inserts a venue and returns its generated ID.
func (r *VenueRepo) Create(ctx context.Context, v *domain.Venue) (string, error) {
	var id string
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO venues (name, location, description, address, opening_hours, rating, photos)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6, $7, $8)
		RETURNING id
	`, v.Name, v.Location.Lon, v.Location.Lat,
		v.Description, v.Address, v.OpeningHours, v.Rating, v.Photos).Scan(&id)
	return id, err
}

// GetByID returns one venue, nil when absent.
func (r *VenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	var v domain.Venue
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(description, ''), COALESCE(address, ''), COALESCE(opening_hours, ''),
		       rating, COALESCE(photos, '{}'), COALESCE(legacy_active_user_ids, '{}'), created_at
		FROM venues WHERE id = $1
	`, id).Scan(
		&v.ID, &v.Name, &v.Location.Lat, &v.Location.Lon,
		&v.Description, &v.Address, &v.OpeningHours,
		&v.Rating, &v.Photos, &v.LegacyActiveUserIDs, &v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns the whole catalog ordered by insertion, oldest first. The
// proximity matcher depends on this order staying stable between reads.
func (r *VenueRepo) List(ctx context.Context) ([]domain.Venue, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(description, ''), COALESCE(address, ''), COALESCE(opening_hours, ''),
		       rating, COALESCE(photos, '{}'), created_at
		FROM venues
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []domain.Venue
	for rows.Next() {
		var v domain.Venue
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Location.Lat, &v.Location.Lon,
			&v.Description, &v.Address, &v.OpeningHours,
			&v.Rating, &v.Photos, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// AddReview inserts a review and updates the venue's aggregate rating in
// one transaction, so readers never see one without the other.
func (r *VenueRepo) AddReview(ctx context.Context, rev *domain.Review, newRating float64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO reviews (venue_id, user_id, user_name, user_photo, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rev.VenueID, rev.UserID, rev.UserName, rev.UserPhoto, rev.Rating, rev.Comment); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE venues SET rating = $2 WHERE id = $1`,
		rev.VenueID, newRating); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListReviews returns a venue's reviews, newest first.
func (r *VenueRepo) ListReviews(ctx context.Context, venueID string) ([]domain.Review, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, venue_id, user_id, user_name, COALESCE(user_photo, ''), rating, comment, created_at
		FROM reviews WHERE venue_id = $1
		ORDER BY created_at DESC
	`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(
			&rev.ID, &rev.VenueID, &rev.UserID, &rev.UserName,
			&rev.UserPhoto, &rev.Rating, &rev.Comment, &rev.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}

// LegacyActiveUserIDs returns the old embedded active-user list kept on the
// venue row for clients that predate the presence store.
func (r *VenueRepo) LegacyActiveUserIDs(ctx context.Context, venueID string) ([]string, error) {
	var ids []string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(legacy_active_user_ids, '{}') FROM venues WHERE id = $1`,
		venueID).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ids, err
}
