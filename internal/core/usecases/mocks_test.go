package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// --- Mock PresenceStore ---

// mockPresenceStore is an in-memory presence tree. Function fields override
// individual operations when a test needs to inject failures.
type mockPresenceStore struct {
	mu       sync.Mutex
	entries  map[string]map[string]time.Time // venueID -> userID -> enteredAt
	statuses map[string]domain.OnlineStatus

	setEntryFn    func(ctx context.Context, venueID, userID string, enteredAt time.Time) error
	deleteEntryFn func(ctx context.Context, venueID, userID string) error
	listEntriesFn func(ctx context.Context, venueID string) ([]domain.PresenceEntry, error)
	getStatusFn   func(ctx context.Context, userID string) (*domain.OnlineStatus, error)
}

func newMockPresenceStore() *mockPresenceStore {
	return &mockPresenceStore{
		entries:  make(map[string]map[string]time.Time),
		statuses: make(map[string]domain.OnlineStatus),
	}
}

func (m *mockPresenceStore) SetEntry(ctx context.Context, venueID, userID string, enteredAt time.Time) error {
	if m.setEntryFn != nil {
		return m.setEntryFn(ctx, venueID, userID, enteredAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[venueID] == nil {
		m.entries[venueID] = make(map[string]time.Time)
	}
	m.entries[venueID][userID] = enteredAt
	return nil
}

func (m *mockPresenceStore) DeleteEntry(ctx context.Context, venueID, userID string) error {
	if m.deleteEntryFn != nil {
		return m.deleteEntryFn(ctx, venueID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[venueID], userID)
	return nil
}

func (m *mockPresenceStore) ListEntries(ctx context.Context, venueID string) ([]domain.PresenceEntry, error) {
	if m.listEntriesFn != nil {
		return m.listEntriesFn(ctx, venueID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PresenceEntry
	for userID, at := range m.entries[venueID] {
		out = append(out, domain.PresenceEntry{VenueID: venueID, UserID: userID, EnteredAt: at})
	}
	return out, nil
}

func (m *mockPresenceStore) SetStatus(ctx context.Context, st *domain.OnlineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[st.UserID] = *st
	return nil
}

func (m *mockPresenceStore) GetStatus(ctx context.Context, userID string) (*domain.OnlineStatus, error) {
	if m.getStatusFn != nil {
		return m.getStatusFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *mockPresenceStore) ClearStatus(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, userID)
	return nil
}

func (m *mockPresenceStore) ListStatuses(ctx context.Context) ([]domain.OnlineStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OnlineStatus
	for _, st := range m.statuses {
		out = append(out, st)
	}
	return out, nil
}

func (m *mockPresenceStore) hasEntry(venueID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[venueID][userID]
	return ok
}

// --- Mock ConfirmationStateStore ---

type mockStateStore struct {
	mu     sync.Mutex
	states map[string]domain.ConfirmationState

	loadFn  func(ctx context.Context, deviceID string) (*domain.ConfirmationState, error)
	saveFn  func(ctx context.Context, deviceID string, st *domain.ConfirmationState) error
	clearFn func(ctx context.Context, deviceID string) error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{states: make(map[string]domain.ConfirmationState)}
}

func (m *mockStateStore) Load(ctx context.Context, deviceID string) (*domain.ConfirmationState, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, deviceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[deviceID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *mockStateStore) Save(ctx context.Context, deviceID string, st *domain.ConfirmationState) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, deviceID, st)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[deviceID] = *st
	return nil
}

func (m *mockStateStore) Clear(ctx context.Context, deviceID string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, deviceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, deviceID)
	return nil
}

// --- Mock VenueRepository ---

type mockVenueRepo struct {
	listFn         func(ctx context.Context) ([]domain.Venue, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Venue, error)
	addReviewFn    func(ctx context.Context, r *domain.Review, newRating float64) error
	listReviewsFn  func(ctx context.Context, venueID string) ([]domain.Review, error)
	legacyActiveFn func(ctx context.Context, venueID string) ([]string, error)
	createFn       func(ctx context.Context, v *domain.Venue) (string, error)
}

func (m *mockVenueRepo) Create(ctx context.Context, v *domain.Venue) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, v)
	}
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
	if m.addReviewFn != nil {
		return m.addReviewFn(ctx, r, newRating)
	}
	return nil
}

func (m *mockVenueRepo) ListReviews(ctx context.Context, venueID string) ([]domain.Review, error) {
	if m.listReviewsFn != nil {
		return m.listReviewsFn(ctx, venueID)
	}
	return nil, nil
}

func (m *mockVenueRepo) LegacyActiveUserIDs(ctx context.Context, venueID string) ([]string, error) {
	if m.legacyActiveFn != nil {
		return m.legacyActiveFn(ctx, venueID)
	}
	return nil, nil
}

// --- Mock ProfileRepository ---

type mockProfileRepo struct {
	getByIDFn          func(ctx context.Context, id string) (*domain.Profile, error)
	appendVisitedFn    func(ctx context.Context, userID, venueID string) error
	followFn           func(ctx context.Context, followerID, followeeID string) error
	addFollowReqFn     func(ctx context.Context, requesterID, targetID string) (bool, error)
	removeFollowReqFn  func(ctx context.Context, requesterID, targetID string) error
	hasFollowReqFn     func(ctx context.Context, requesterID, targetID string) (bool, error)
	listFollowReqsFn   func(ctx context.Context, targetID string) ([]domain.Profile, error)
	friendshipStatusFn func(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error)
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error { return nil }

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Profile{ID: id, Name: "User " + id, AllowMessages: true}, nil
}

func (m *mockProfileRepo) AppendVisited(ctx context.Context, userID, venueID string) error {
	if m.appendVisitedFn != nil {
		return m.appendVisitedFn(ctx, userID, venueID)
	}
	return nil
}

func (m *mockProfileRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	if m.followFn != nil {
		return m.followFn(ctx, followerID, followeeID)
	}
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
	if m.addFollowReqFn != nil {
		return m.addFollowReqFn(ctx, requesterID, targetID)
	}
	return true, nil
}

func (m *mockProfileRepo) RemoveFollowRequest(ctx context.Context, requesterID, targetID string) error {
	if m.removeFollowReqFn != nil {
		return m.removeFollowReqFn(ctx, requesterID, targetID)
	}
	return nil
}

func (m *mockProfileRepo) HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	if m.hasFollowReqFn != nil {
		return m.hasFollowReqFn(ctx, requesterID, targetID)
	}
	return false, nil
}

func (m *mockProfileRepo) ListFollowRequests(ctx context.Context, targetID string) ([]domain.Profile, error) {
	if m.listFollowReqsFn != nil {
		return m.listFollowReqsFn(ctx, targetID)
	}
	return nil, nil
}

func (m *mockProfileRepo) AddFriendRequest(ctx context.Context, senderID, receiverID string) error {
	return nil
}

func (m *mockProfileRepo) RemoveFriendRequest(ctx context.Context, senderID, receiverID string) error {
	return nil
}

func (m *mockProfileRepo) AddFriend(ctx context.Context, userID, friendID string) error { return nil }

func (m *mockProfileRepo) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return nil
}

func (m *mockProfileRepo) FriendshipStatus(ctx context.Context, userID, otherID string) (*domain.FriendshipStatus, error) {
	if m.friendshipStatusFn != nil {
		return m.friendshipStatusFn(ctx, userID, otherID)
	}
	return &domain.FriendshipStatus{}, nil
}

// --- Mock VisitRepository ---

type mockVisitRepo struct {
	mu       sync.Mutex
	recorded []domain.Visit

	recentVisitorsFn func(ctx context.Context, venueID string, since time.Time) ([]domain.Visitor, error)
}

func (m *mockVisitRepo) Record(ctx context.Context, v *domain.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, *v)
	return nil
}

func (m *mockVisitRepo) RecentVisitors(ctx context.Context, venueID string, since time.Time) ([]domain.Visitor, error) {
	if m.recentVisitorsFn != nil {
		return m.recentVisitorsFn(ctx, venueID, since)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	checkIns  []domain.PresenceEvent
	checkOuts []domain.PresenceEvent
	statuses  []domain.OnlineStatus
}

func (m *mockPublisher) PublishCheckIn(ctx context.Context, e *domain.PresenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkIns = append(m.checkIns, *e)
	return nil
}

func (m *mockPublisher) PublishCheckOut(ctx context.Context, e *domain.PresenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkOuts = append(m.checkOuts, *e)
	return nil
}

func (m *mockPublisher) PublishStatus(ctx context.Context, st *domain.OnlineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, *st)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// --- Mock NotificationRepository ---

type mockNotificationRepo struct {
	mu      sync.Mutex
	created []domain.Notification

	listForUserFn func(ctx context.Context, userID string) ([]domain.Notification, error)
	markReadFn    func(ctx context.Context, id string) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *n)
	return "notif-1", nil
}

func (m *mockNotificationRepo) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id)
	}
	return nil
}

// --- Mock ChatRepository ---

type mockChatRepo struct {
	mu    sync.Mutex
	chats map[string]domain.Chat
	msgs  []domain.Message

	getChatFn      func(ctx context.Context, chatID string) (*domain.Chat, error)
	listMessagesFn func(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{chats: make(map[string]domain.Chat)}
}

func (m *mockChatRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	if m.getChatFn != nil {
		return m.getChatFn(ctx, chatID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockChatRepo) CreateChat(ctx context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = *chat
	return nil
}

func (m *mockChatRepo) UpdateLastMessage(ctx context.Context, chatID string, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chats[chatID]
	c.LastMessage = msg
	m.chats[chatID] = c
	return nil
}

func (m *mockChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	return nil, nil
}

func (m *mockChatRepo) InsertMessage(ctx context.Context, msg *domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := msg.ID
	if id == "" {
		id = "msg-" + time.Now().Format("150405.000000000")
	}
	stored := *msg
	stored.ID = id
	m.msgs = append(m.msgs, stored)
	return id, nil
}

func (m *mockChatRepo) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, chatID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
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

// --- Mock CacheService ---

// nilCache misses on every read so service tests always hit the repos.
type nilCache struct{}

var errCacheMiss = errors.New("cache miss")

func (nilCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errCacheMiss
}
func (nilCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error { return nil }
func (nilCache) Delete(ctx context.Context, key string) error                            { return nil }
