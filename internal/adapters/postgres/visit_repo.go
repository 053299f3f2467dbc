package postgres

import (
	"context"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// VisitRepo implements ports.VisitRepository with pgx.
type VisitRepo struct {
	db *DB
}

// NewVisitRepo creates a new VisitRepo.
func NewVisitRepo(db *DB) *VisitRepo {
	return &VisitRepo{db: db}
}

// Record appends a confirmed visit.
func (r *VisitRepo) Record(ctx context.Context, v *domain.Visit) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO visits (venue_id, user_id, user_name, photo_url, visited_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.VenueID, v.UserID, v.UserName, v.PhotoURL, v.VisitedAt)
	return err
}

// RecentVisitors returns distinct visitors since the cutoff, each with
// their most recent visit, newest first.
func (r *VisitRepo) RecentVisitors(ctx context.Context, venueID string, since time.Time) ([]domain.Visitor, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT user_id, user_name, photo_url, last_visit FROM (
			SELECT DISTINCT ON (user_id)
			       user_id, user_name, COALESCE(photo_url, '') AS photo_url, visited_at AS last_visit
			FROM visits
			WHERE venue_id = $1 AND visited_at >= $2
			ORDER BY user_id, visited_at DESC
		) recent
		ORDER BY last_visit DESC
	`, venueID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visitors []domain.Visitor
	for rows.Next() {
		var v domain.Visitor
		if err := rows.Scan(&v.UserID, &v.Name, &v.PhotoURL, &v.LastVisit); err != nil {
			return nil, err
		}
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}
