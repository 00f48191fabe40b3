// Package session provides the explicit actor session passed to every
// component that needs actor identity. It replaces ambient global state:
// a session is created at login by a single owner (the Manager), handed to
// gate calls, and cleared at logout.
//
// The cached balance on a session is a display hint refreshed from charge
// outcomes. It is never used as a billing input; billing always goes
// through the ledger.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Role distinguishes the two marketplace sides.
type Role string

const (
	RoleInfluencer Role = "influencer"
	RoleVendor     Role = "vendor"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleInfluencer || r == RoleVendor
}

// Session carries one logged-in actor's identity and a cached balance
// snapshot. The identity is immutable for the session's lifetime.
type Session struct {
	actorID id.ActorID
	role    Role

	mu        sync.RWMutex
	balance   types.Tokens
	balanceAt time.Time
}

// ActorID returns the session's actor identity.
func (s *Session) ActorID() id.ActorID { return s.actorID }

// Role returns the session's role.
func (s *Session) Role() Role { return s.role }

// Balance returns the cached balance snapshot and when it was observed.
// Display only.
func (s *Session) Balance() (types.Tokens, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, s.balanceAt
}

// ObserveBalance updates the cached balance from an authoritative source
// (a ledger read or a post-charge balance).
func (s *Session) ObserveBalance(balance types.Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	s.balanceAt = time.Now().UTC()
}

// Sentinel errors.
var (
	ErrInvalidRole     = errors.New("session: invalid role")
	ErrSessionNotFound = errors.New("session: no active session for actor")
	ErrAlreadyLoggedIn = errors.New("session: actor already has an active session")
)

// Manager owns session lifecycles: it is the only component that creates
// and destroys sessions.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]*Session)}
}

// Login creates a session for the actor. One session per actor.
func (m *Manager) Login(actorID id.ActorID, role Role) (*Session, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := actorID.String()
	if _, exists := m.active[key]; exists {
		return nil, ErrAlreadyLoggedIn
	}

	s := &Session{actorID: actorID, role: role}
	m.active[key] = s
	return s, nil
}

// Get returns the actor's active session.
func (m *Manager) Get(actorID id.ActorID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.active[actorID.String()]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Logout clears the actor's session. Unknown actors are a no-op.
func (m *Manager) Logout(actorID id.ActorID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, actorID.String())
}
