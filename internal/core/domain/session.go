package domain

import (
	"sync"
	"time"
)

// ConfirmationState is the persisted per-device check-in state.
// Invariant: ActiveVenueID set implies LastConfirm is non-zero; the two
// fields are saved and cleared together, never independently.
type ConfirmationState struct {
	ActiveVenueID string    `json:"active_venue_id"`
	LastConfirm   time.Time `json:"last_confirm"`
}

// SessionState is the confirmation-throttle state for one device session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionAwaitingConfirmation
	SessionConfirmed
)

func (s SessionState) String() string {
	switch s {
	case SessionAwaitingConfirmation:
		return "awaiting_confirmation"
	case SessionConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// Session holds the per-device session context for the confirmation
// throttle: the rejected-venue set, the has-confirmed flag and the venue
// currently awaiting confirmation. It is an explicit object handed to the
// throttle so the state machine stays testable without any transport.
type Session struct {
	mu       sync.Mutex
	state    SessionState
	pending  string
	rejected map[string]struct{}
}

func NewSession() *Session {
	return &Session{rejected: make(map[string]struct{})}
}

// State returns the current throttle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingVenue returns the venue awaiting confirmation, if any.
func (s *Session) PendingVenue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// HasConfirmed reports whether the session already confirmed a venue.
// Confirmed is terminal for the session.
func (s *Session) HasConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionConfirmed
}

// Rejected reports whether the venue was declined earlier this session.
func (s *Session) Rejected(venueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rejected[venueID]
	return ok
}

// Propose moves Idle → AwaitingConfirmation for the given venue.
// Returns false if a prompt is already pending or the session is confirmed.
func (s *Session) Propose(venueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionIdle {
		return false
	}
	s.state = SessionAwaitingConfirmation
	s.pending = venueID
	return true
}

// Reject declines the pending venue: it joins the session rejected-set and
// the throttle returns to Idle. Nothing is persisted.
func (s *Session) Reject(venueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[venueID] = struct{}{}
	if s.pending == venueID {
		s.pending = ""
		if s.state == SessionAwaitingConfirmation {
			s.state = SessionIdle
		}
	}
}

// MarkConfirmed moves the session to its terminal Confirmed state.
func (s *Session) MarkConfirmed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionConfirmed
	s.pending = ""
}
