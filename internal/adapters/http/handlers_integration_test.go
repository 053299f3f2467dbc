//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cembilgin/placepulse/internal/adapters/http"
	"github.com/cembilgin/placepulse/internal/adapters/postgres"
	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/usecases"
	"github.com/cembilgin/placepulse/internal/pkg/config"
)

// setupTestDB connects to the test database and returns a clean DB instance.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("placepulse-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	dsn := cfg.Database.DSN()
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	db := &postgres.DB{Pool: pool}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return db
}

// setupTestDeps creates dependencies with real DB repos; presence stores and
// broker stay out so the durable path is tested in isolation.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	venueRepo := postgres.NewVenueRepo(db)
	profileRepo := postgres.NewProfileRepo(db)
	visitRepo := postgres.NewVisitRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	chatRepo := postgres.NewChatRepo(db)

	registry := usecases.NewSessionRegistry()

	return &http.Dependencies{
		Venues:        usecases.NewVenueService(venueRepo, visitRepo, nil, nil, nil),
		Profiles:      usecases.NewProfileService(profileRepo, notificationRepo, nil),
		Chats:         usecases.NewChatService(chatRepo, profileRepo, nil),
		Notifications: usecases.NewNotificationService(notificationRepo),
		Sessions:      registry,
		DB:            db,
	}
}

// seedTestProfile inserts a test user row.
func seedTestProfile(t *testing.T, db *postgres.DB, id, name string) {
	ctx := context.Background()
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, name, allow_messages)
		VALUES ($1, $2, true)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

// seedTestVenue inserts a test venue and returns its UUID.
func seedTestVenue(t *testing.T, db *postgres.DB, name string) string {
	ctx := context.Background()
	var id string
	if err := db.Pool.QueryRow(ctx, `
		INSERT INTO venues (name, location, description)
		VALUES ($1, ST_SetSRID(ST_MakePoint(-2.935, 43.263), 4326)::geography, 'integration seed')
		RETURNING id
	`, name).Scan(&id); err != nil {
		t.Fatalf("seed venue: %v", err)
	}
	return id
}

// TestListVenues_Integration_WithRealDB tests the catalog against a real database.
func TestListVenues_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedTestVenue(t, db, "Integ Cafe "+time.Now().Format("150405"))
	seedTestVenue(t, db, "Integ Bar "+time.Now().Format("150405"))

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Venue      `json:"data"`
		Pagination struct{ Total int } `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if result.Pagination.Total < 2 {
		t.Errorf("expected at least 2 venues, got %d", result.Pagination.Total)
	}
}

// TestNearbyVenues_Integration tests the distance filter over real catalog rows.
func TestNearbyVenues_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	// Bilbao coordinates: 43.263, -2.935
	seedTestVenue(t, db, "Integ Spatial "+time.Now().Format("150405"))

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues/nearby?lat=43.263&lon=-2.935&radius=5000", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var venues []domain.Venue
	if err := json.NewDecoder(resp.Body).Decode(&venues); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(venues) == 0 {
		t.Error("expected at least 1 nearby venue, got 0")
	}
}

// TestProfileRoundTrip_Integration writes a profile through the API and reads it back.
func TestProfileRoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	userID := "integ-user-" + time.Now().Format("20060102150405")
	seedTestProfile(t, db, userID, "Integ User")

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/profiles/"+userID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var profile domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if profile.ID != userID {
		t.Errorf("expected id %s, got %s", userID, profile.ID)
	}
}
