package usecases

import (
	"sync"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// SessionRegistry owns the per-device throttle sessions. Sessions live for
// the duration of a sign-in; ending one drops the rejected-set and the
// has-confirmed flag with it.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*domain.Session)}
}

// Get returns the session for a device, creating it on first use.
func (r *SessionRegistry) Get(deviceID string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[deviceID]
	if !ok {
		s = domain.NewSession()
		r.sessions[deviceID] = s
	}
	return s
}

// End removes a device's session (sign-out or app teardown).
func (r *SessionRegistry) End(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, deviceID)
}
