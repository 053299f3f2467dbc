package domain

import (
	"time"
)

// Profile is a user's durable document (name, photo, social graph, visits).
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	AllowMessages bool      `json:"allow_messages"`
	VisitedPlaces []string  `json:"visited_places,omitempty"`
	Followers     int       `json:"followers"`
	Following     int       `json:"following"`
	CreatedAt     time.Time `json:"created_at"`
}

// Venue is a physical place users can check into.
type Venue struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Location     Coordinate `json:"location"`
	Description  string     `json:"description,omitempty"`
	Address      string     `json:"address,omitempty"`
	OpeningHours string     `json:"opening_hours,omitempty"`
	Rating       float64    `json:"rating"`
	Photos       []string   `json:"photos,omitempty"`
	Reviews      []Review   `json:"reviews,omitempty"`
	// ActiveUsers is the reconciled live list; populated on detail reads,
	// never stored on the venue row.
	ActiveUsers []ActiveUser `json:"active_users,omitempty"`
	// LegacyActiveUserIDs mirrors the old embedded list kept on the row.
	// Superseded by the presence store; exposed only on a deprecated endpoint.
	LegacyActiveUserIDs []string  `json:"legacy_active_user_ids,omitempty"`
	Distance            *float64  `json:"distance,omitempty"` // computed field
	CreatedAt           time.Time `json:"created_at"`
}

// Review is a rating plus comment left on a venue.
type Review struct {
	ID        string    `json:"id"`
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserPhoto string    `json:"user_photo,omitempty"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Visit records that a user was confirmed present at a venue.
type Visit struct {
	ID        string    `json:"id"`
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
}

// Visitor is a distinct recent visitor of a venue.
type Visitor struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	LastVisit time.Time `json:"last_visit"`
}

// PresenceEntry asserts that a user is currently checked into a venue.
// Lives in the ephemeral presence store; freshness is enforced by the
// reconciler, not by the store.
type PresenceEntry struct {
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	EnteredAt time.Time `json:"entered_at"`
}

// OnlineStatus is the heartbeat-maintained online flag for a user.
type OnlineStatus struct {
	UserID       string    `json:"user_id"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	CurrentVenue string    `json:"current_venue,omitempty"`
}

// ActiveUser is a reconciled, profile-enriched presence entry.
type ActiveUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}

// CheckInPrompt asks a device to confirm physical presence at a venue.
type CheckInPrompt struct {
	VenueID   string `json:"venue_id"`
	VenueName string `json:"venue_name"`
}

// PresenceEvent is published when a user enters or leaves a venue.
type PresenceEvent struct {
	VenueID string    `json:"venue_id"`
	UserID  string    `json:"user_id"`
	Time    time.Time `json:"time"`
	Reason  string    `json:"reason,omitempty"` // confirm, leave, proximity_exit, stale, offline
}

// Notification types.
const (
	NotificationFollowRequest = "FOLLOW_REQUEST"
	NotificationFollowAccept  = "FOLLOW_ACCEPT"
	NotificationPlaceVisit    = "PLACE_VISIT"
)

// Notification is an in-app notification row.
type Notification struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromUserID string         `json:"from_user_id"`
	ToUserID   string         `json:"to_user_id"`
	Read       bool           `json:"read"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Chat is a two-party conversation.
type Chat struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	LastMessage  *Message       `json:"last_message,omitempty"`
	Unread       map[string]int `json:"unread,omitempty"` // user ID -> unread count
	CreatedAt    time.Time      `json:"created_at"`
}

// Message is a single chat message.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowRequest is a pending follow request against a user.
type FollowRequest struct {
	RequesterID string    `json:"requester_id"`
	TargetID    string    `json:"target_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// FriendshipStatus summarises the relationship between two users.
type FriendshipStatus struct {
	AreFriends    bool `json:"are_friends"`
	IsPending     bool `json:"is_pending"`
	IsRequestSent bool `json:"is_request_sent"`
}
