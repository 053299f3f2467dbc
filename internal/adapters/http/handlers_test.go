package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/cembilgin/placepulse/internal/adapters/http"
	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/usecases"
)

// ---- Mock repositories and stores ----

type mockVenueRepo struct {
	listFn     func(ctx context.Context) ([]domain.Venue, error)
	getByIDFn  func(ctx context.Context, id string) (*domain.Venue, error)
	legacyFn   func(ctx context.Context, venueID string) ([]string, error)
	visitorsFn func(ctx context.Context, venueID string) ([]domain.Visitor, error)
}

func (m *mockVenueRepo) Create(ctx context.Context, v *domain.Venue) (string, error) {
	return "venue-new", nil
}
func (m *mockVenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockVenueRepo) List(ctx context.Context) ([]domain.Venue, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockVenueRepo) AddReview(ctx context.Context, r *domain.Review, newRating float64) error {
	return nil
}
func (m *mockVenueRepo) ListReviews(ctx context.Context, venueID string) ([]domain.Review, error) {
	return nil, nil
}
func (m *mockVenueRepo) LegacyActiveUserIDs(ctx context.Context, venueID string) ([]string, error) {
	if m.legacyFn != nil {
		return m.legacyFn(ctx, venueID)
	}
	return nil, nil
}

type mockProfileRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Profile, error)
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error { return nil }
func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Profile{ID: id, Name: "User " + id, AllowMessages: true}, nil
}
func (m *mockProfileRepo) AppendVisited(ctx context.Context, userID, venueID string) error {
	return nil
}
func (m *mockProfileRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	return nil
}
func (m *mockProfileRepo) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return nil
}
func (m *mockProfileRepo) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return false, nil
}
func (m *mockProfileRepo) ListFollowers(ctx context.Context, userID string) ([]domain.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) ListFollowing(ctx context.Context, userID string) ([]domain.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) AddFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	return true, nil
}
func (m *mockProfileRepo) RemoveFollowRequest(ctx context.Context, requesterID, targetID string) error {
	return nil
}
func (m *mockProfileRepo) HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	return true, nil
}
func (m *mockProfileRepo) ListFollowRequests(ctx context.Context, targetID string) ([]domain.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) AddFriendRequest(ctx context.Context, senderID, receiverID string) error {
	return nil
}
func (m *mockProfileRepo) RemoveFriendRequest(ctx context.Context, senderID, receiverID string) error {
	return nil
}
func (m *mockProfileRepo) AddFriend(ctx context.Context, userID, friendID string) error    { return nil }
func (m *mockProfileRepo) RemoveFriend(ctx context.Context, userID, friendID string) error { return nil }
func (m *mockProfileRepo) FriendshipStatus(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error) {
	return &domain.FriendshipStatus{}, nil
}

type mockVisitRepo struct{}

func (m *mockVisitRepo) Record(ctx context.Context, v *domain.Visit) error { return nil }
func (m *mockVisitRepo) RecentVisitors(ctx context.Context, venueID string, since time.Time) ([]domain.Visitor, error) {
	return nil, nil
}

// mockPresenceStore is a tiny in-memory presence tree.
type mockPresenceStore struct {
	entries  map[string]map[string]time.Time // venueID -> userID -> enteredAt
	statuses map[string]*domain.OnlineStatus
}

func newMockPresenceStore() *mockPresenceStore {
	return &mockPresenceStore{
		entries:  make(map[string]map[string]time.Time),
		statuses: make(map[string]*domain.OnlineStatus),
	}
}

func (m *mockPresenceStore) SetEntry(ctx context.Context, venueID, userID string, enteredAt time.Time) error {
	if m.entries[venueID] == nil {
		m.entries[venueID] = make(map[string]time.Time)
	}
	m.entries[venueID][userID] = enteredAt
	return nil
}
func (m *mockPresenceStore) DeleteEntry(ctx context.Context, venueID, userID string) error {
	delete(m.entries[venueID], userID)
	return nil
}
func (m *mockPresenceStore) ListEntries(ctx context.Context, venueID string) ([]domain.PresenceEntry, error) {
	var out []domain.PresenceEntry
	for uid, at := range m.entries[venueID] {
		out = append(out, domain.PresenceEntry{VenueID: venueID, UserID: uid, EnteredAt: at})
	}
	return out, nil
}
func (m *mockPresenceStore) SetStatus(ctx context.Context, st *domain.OnlineStatus) error {
	m.statuses[st.UserID] = st
	return nil
}
func (m *mockPresenceStore) GetStatus(ctx context.Context, userID string) (*domain.OnlineStatus, error) {
	return m.statuses[userID], nil
}
func (m *mockPresenceStore) ClearStatus(ctx context.Context, userID string) error {
	delete(m.statuses, userID)
	return nil
}
func (m *mockPresenceStore) ListStatuses(ctx context.Context) ([]domain.OnlineStatus, error) {
	var out []domain.OnlineStatus
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	return out, nil
}

type mockStateStore struct {
	states map[string]*domain.ConfirmationState
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{states: make(map[string]*domain.ConfirmationState)}
}

func (m *mockStateStore) Load(ctx context.Context, deviceID string) (*domain.ConfirmationState, error) {
	return m.states[deviceID], nil
}
func (m *mockStateStore) Save(ctx context.Context, deviceID string, st *domain.ConfirmationState) error {
	m.states[deviceID] = st
	return nil
}
func (m *mockStateStore) Clear(ctx context.Context, deviceID string) error {
	delete(m.states, deviceID)
	return nil
}

type mockPublisher struct{}

func (m *mockPublisher) PublishCheckIn(ctx context.Context, e *domain.PresenceEvent) error {
	return nil
}
func (m *mockPublisher) PublishCheckOut(ctx context.Context, e *domain.PresenceEvent) error {
	return nil
}
func (m *mockPublisher) PublishStatus(ctx context.Context, st *domain.OnlineStatus) error { return nil }
func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error          { return nil }

type mockNotificationRepo struct{}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) (string, error) {
	return "n1", nil
}
func (m *mockNotificationRepo) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return nil, nil
}
func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error { return nil }

type mockChatRepo struct {
	chats map[string]*domain.Chat
	msgs  []domain.Message
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{chats: make(map[string]*domain.Chat)}
}

func (m *mockChatRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	return m.chats[chatID], nil
}
func (m *mockChatRepo) CreateChat(ctx context.Context, chat *domain.Chat) error {
	m.chats[chat.ID] = chat
	return nil
}
func (m *mockChatRepo) UpdateLastMessage(ctx context.Context, chatID string, msg *domain.Message) error {
	if c := m.chats[chatID]; c != nil {
		c.LastMessage = msg
	}
	return nil
}
func (m *mockChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	for _, c := range m.chats {
		out = append(out, *c)
	}
	return out, nil
}
func (m *mockChatRepo) InsertMessage(ctx context.Context, msg *domain.Message) (string, error) {
	id := fmt.Sprintf("m%d", len(m.msgs)+1)
	msg.ID = id
	m.msgs = append(m.msgs, *msg)
	return id, nil
}
func (m *mockChatRepo) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].ChatID == chatID {
			out = append(out, m.msgs[i])
		}
	}
	return out, nil
}
func (m *mockChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string) error {
	return nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	venues := &mockVenueRepo{}
	profiles := &mockProfileRepo{}
	visits := &mockVisitRepo{}
	presence := newMockPresenceStore()
	state := newMockStateStore()
	pub := &mockPublisher{}
	notifications := &mockNotificationRepo{}
	chats := newMockChatRepo()

	reconciler := usecases.NewReconcilerService(presence, profiles, pub, 30*time.Minute)
	registry := usecases.NewSessionRegistry()

	d := &handler.Dependencies{
		Proximity:     usecases.NewProximityService(venues, profiles, visits, presence, state, pub, nil, 100, 30*time.Minute),
		Venues:        usecases.NewVenueService(venues, visits, reconciler, nil, pub),
		Profiles:      usecases.NewProfileService(profiles, notifications, nil),
		Chats:         usecases.NewChatService(chats, profiles, nil),
		Notifications: usecases.NewNotificationService(notifications),
		Presence:      usecases.NewPresenceService(presence, state, pub, registry, 90*time.Second),
		Sessions:      registry,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// ---- Venue handler tests ----

func TestListVenues_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			listFn: func(ctx context.Context) ([]domain.Venue, error) {
				return []domain.Venue{
					{ID: "v1", Name: "Cafe Iruna"},
					{ID: "v2", Name: "Bar Haizea"},
				}, nil
			},
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Venue `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 venues, got %d", len(result.Data))
	}
}

func TestListVenues_Pagination(t *testing.T) {
	venues := make([]domain.Venue, 5)
	for i := range venues {
		venues[i] = domain.Venue{ID: fmt.Sprintf("v%d", i), Name: fmt.Sprintf("Venue %d", i)}
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			listFn: func(ctx context.Context) ([]domain.Venue, error) { return venues, nil },
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Venue `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 venues in page, got %d", len(result.Data))
	}
	if result.Pagination.Offset != 2 {
		t.Errorf("expected offset 2, got %d", result.Pagination.Offset)
	}
}

func TestListVenues_LinkHeader(t *testing.T) {
	venues := make([]domain.Venue, 10)
	for i := range venues {
		venues[i] = domain.Venue{ID: fmt.Sprintf("v%d", i), Name: fmt.Sprintf("Venue %d", i)}
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			listFn: func(ctx context.Context) ([]domain.Venue, error) { return venues, nil },
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues?offset=0&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	link := resp.Header.Get("Link")
	if link == "" {
		t.Fatal("expected Link header, got empty")
	}
	if !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %s", link)
	}
	if !strings.Contains(link, `rel="first"`) {
		t.Errorf("expected first link, got %s", link)
	}
	if !strings.Contains(link, `rel="last"`) {
		t.Errorf("expected last link, got %s", link)
	}
}

func TestNearbyVenues_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/venues/nearby", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestNearbyVenues_BadRadius(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/venues/nearby?lat=43.26&lon=-2.93&radius=50000", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNearbyVenues_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			listFn: func(ctx context.Context) ([]domain.Venue, error) {
				return []domain.Venue{
					{ID: "v1", Name: "Cafe Iruna", Location: domain.Coordinate{Lat: 43.2630, Lon: -2.9350}},
					{ID: "v2", Name: "Far Away", Location: domain.Coordinate{Lat: 43.3000, Lon: -2.9350}},
				}, nil
			},
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues/nearby?lat=43.2630&lon=-2.9350&radius=100", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var venues []domain.Venue
	json.NewDecoder(resp.Body).Decode(&venues)
	if len(venues) != 1 {
		t.Fatalf("expected 1 venue within radius, got %d", len(venues))
	}
	if venues[0].ID != "v1" {
		t.Errorf("expected v1, got %s", venues[0].ID)
	}

	cc := resp.Header.Get("Cache-Control")
	if cc != "public, max-age=30" {
		t.Errorf("expected Cache-Control header, got %q", cc)
	}
}

func TestGetVenue_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/venues/nonexistent-id", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetVenue_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Venue, error) {
				return &domain.Venue{ID: id, Name: "Cafe Iruna", Rating: 4.5}, nil
			},
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues/v1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var venue domain.Venue
	json.NewDecoder(resp.Body).Decode(&venue)
	if venue.Name != "Cafe Iruna" {
		t.Errorf("expected Cafe Iruna, got %s", venue.Name)
	}
}

func TestCreateVenue_MissingName(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"location":{"lat":43.26,"lon":-2.93}}`)
	req := httptest.NewRequest("POST", "/v1/venues", body)
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateVenue_Success(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"name":"New Spot","location":{"lat":43.26,"lon":-2.93}}`)
	req := httptest.NewRequest("POST", "/v1/venues", body)
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var result map[string]string
	json.NewDecoder(resp.Body).Decode(&result)
	if result["id"] != "venue-new" {
		t.Errorf("expected created venue id, got %v", result)
	}
}

func TestAddReview_BadRating(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"rating":9.5,"comment":"great"}`)
	req := httptest.NewRequest("POST", "/v1/venues/v1/reviews", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAddReview_MissingIdentity(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"rating":4,"comment":"great"}`)
	req := httptest.NewRequest("POST", "/v1/venues/v1/reviews", body)
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

// ---- Legacy active-users deprecation headers ----

func TestLegacyActiveUsers_DeprecationHeaders(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Venues = usecases.NewVenueService(&mockVenueRepo{
			legacyFn: func(ctx context.Context, venueID string) ([]string, error) {
				return []string{"alice", "bob"}, nil
			},
		}, &mockVisitRepo{}, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues/v1/active-users/legacy", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header")
	}
	if !strings.Contains(resp.Header.Get("Link"), "active-users") {
		t.Errorf("expected successor link, got %q", resp.Header.Get("Link"))
	}
}

// ---- Presence flow tests ----

func TestLocationUpdate_MissingIdentity(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"lat":43.26,"lon":-2.93}`)
	req := httptest.NewRequest("POST", "/v1/location", body)
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLocationUpdate_OutOfRange(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"lat":123.0,"lon":-2.93}`)
	req := httptest.NewRequest("POST", "/v1/location", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLocationUpdate_PromptAndConfirm(t *testing.T) {
	catalog := []domain.Venue{
		{ID: "v1", Name: "Cafe Iruna", Location: domain.Coordinate{Lat: 43.2630, Lon: -2.9350}},
	}
	presence := newMockPresenceStore()
	state := newMockStateStore()
	registry := usecases.NewSessionRegistry()

	deps := makeDeps(func(d *handler.Dependencies) {
		venues := &mockVenueRepo{
			listFn: func(ctx context.Context) ([]domain.Venue, error) { return catalog, nil },
		}
		d.Proximity = usecases.NewProximityService(venues, &mockProfileRepo{}, &mockVisitRepo{},
			presence, state, &mockPublisher{}, nil, 100, 30*time.Minute)
		d.Sessions = registry
	})
	app := setupApp(deps)

	// Location fix inside the radius produces a prompt.
	body := strings.NewReader(`{"lat":43.2630,"lon":-2.9350}`)
	req := httptest.NewRequest("POST", "/v1/location", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Prompt *domain.CheckInPrompt `json:"prompt"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Prompt == nil || result.Prompt.VenueID != "v1" {
		t.Fatalf("expected prompt for v1, got %+v", result.Prompt)
	}

	// Confirming the prompted venue succeeds.
	body = strings.NewReader(`{"venue_id":"v1"}`)
	req = httptest.NewRequest("POST", "/v1/checkins", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	if _, ok := presence.entries["v1"]["alice"]; !ok {
		t.Error("expected presence entry for alice at v1")
	}
	if state.states["dev-1"] == nil || state.states["dev-1"].ActiveVenueID != "v1" {
		t.Error("expected confirmation state recorded for dev-1")
	}

	// A second confirm has nothing pending.
	body = strings.NewReader(`{"venue_id":"v1"}`)
	req = httptest.NewRequest("POST", "/v1/checkins", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestConfirm_WithoutPrompt(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"venue_id":"v1"}`)
	req := httptest.NewRequest("POST", "/v1/checkins", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestReject_MissingVenueID(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{}`)
	req := httptest.NewRequest("POST", "/v1/checkins/reject", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLeave_NoActiveVenue(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("DELETE", "/v1/checkins", nil)
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-Device-ID", "dev-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestHeartbeat_Success(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/presence/heartbeat", nil)
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestHeartbeat_MissingIdentity(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/presence/heartbeat", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

// ---- Chat handler tests ----

func TestSendMessage_Blocked(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		profiles := &mockProfileRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Profile, error) {
				return &domain.Profile{ID: id, Name: "User " + id, AllowMessages: false}, nil
			},
		}
		d.Chats = usecases.NewChatService(newMockChatRepo(), profiles, nil)
	})
	app := setupApp(deps)

	body := strings.NewReader(`{"text":"hola"}`)
	req := httptest.NewRequest("POST", "/v1/chats/bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSendMessage_Success(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"text":"hola"}`)
	req := httptest.NewRequest("POST", "/v1/chats/bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var msg domain.Message
	json.NewDecoder(resp.Body).Decode(&msg)
	if msg.ChatID != "alice_bob" {
		t.Errorf("expected deterministic chat id alice_bob, got %s", msg.ChatID)
	}
}

func TestSendMessage_Blank(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"text":"   "}`)
	req := httptest.NewRequest("POST", "/v1/chats/bob/messages", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Profile handler tests ----

func TestUpsertProfile_MissingName(t *testing.T) {
	app := setupApp(makeDeps())

	body := strings.NewReader(`{"photo_url":"http://example.com/p.jpg"}`)
	req := httptest.NewRequest("PUT", "/v1/profiles/me", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSendFollowRequest_Self(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/profiles/alice/follow-requests", nil)
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSendFollowRequest_Success(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/profiles/bob/follow-requests", nil)
	req.Header.Set("X-User-ID", "alice")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]bool
	json.NewDecoder(resp.Body).Decode(&result)
	if !result["created"] {
		t.Error("expected created=true on first request")
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	deps := makeDeps()
	// DB, NATS, Cache are nil → should report not ready
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()

	app.Use(handler.AccessLogMiddleware())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
