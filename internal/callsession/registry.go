package callsession

import (
	"errors"
	"sync"
)

// ErrSessionExists is returned when a booking already has an active
// session on this instance.
var ErrSessionExists = errors.New("callsession: session already exists for booking")

// Registry owns every live session, keyed by booking id. Session creation
// goes through the registry so there is no cross-session shared mutable
// state anywhere else.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create builds and registers a session. The registry removes the entry
// automatically once the session ends. A booking can only hold one
// session at a time; a stale ended session is replaced.
func (r *Registry) Create(cfg Config) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[cfg.BookingID]; ok {
		if !existing.State().IsTerminal() {
			return nil, ErrSessionExists
		}
		delete(r.sessions, cfg.BookingID)
	}

	// Chain removal onto the caller's OnEnded.
	userOnEnded := cfg.Callbacks.OnEnded
	bookingID := cfg.BookingID
	cfg.Callbacks.OnEnded = func(reason EndReason) {
		if userOnEnded != nil {
			userOnEnded(reason)
		}
		go r.Remove(bookingID)
	}

	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.sessions[cfg.BookingID] = s
	return s, nil
}

// Get returns the session for a booking, if one is registered.
func (r *Registry) Get(bookingID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[bookingID]
	return s, ok
}

// Remove drops the registry entry. It does not close the session.
func (r *Registry) Remove(bookingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, bookingID)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll shuts down every registered session and empties the registry.
// Used on process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
