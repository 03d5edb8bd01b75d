package domain

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// SessionState is a gateway session's position in its lifecycle.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthorizing
	StateAttached
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizing:
		return "authorizing"
	case StateAttached:
		return "attached"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrIllegalTransition = errors.New("illegal session state transition")

// Authentication and authorization fail straight to Closed; only an attached
// session passes through Closing.
var transitions = map[SessionState][]SessionState{
	StateConnecting:     {StateAuthenticating, StateClosed},
	StateAuthenticating: {StateAuthorizing, StateClosed},
	StateAuthorizing:    {StateAttached, StateClosed},
	StateAttached:       {StateClosing},
	StateClosing:        {StateClosed},
}

type Session struct {
	ID           string
	RoomID       string
	identity     Identity
	state        SessionState
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id, roomID string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RoomID:       roomID,
		state:        StateConnecting,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Transition moves the session to next, or returns ErrIllegalTransition.
func (s *Session) Transition(next SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			s.LastActiveAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, next)
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Authenticate(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.LastActiveAt = time.Now()
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
