package session

import (
	"sync"
	"time"
)

// Status is the session's position in the auth state machine.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
	Refreshing
	Error
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case Authenticating:
		return "Authenticating"
	case Authenticated:
		return "Authenticated"
	case Refreshing:
		return "Refreshing"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Snapshot is a consistent read of the whole session at one point in time.
type Snapshot struct {
	Status    Status
	User      *User
	Tokens    *TokenSet
	LastErr   error
	UpdatedAt time.Time
}

// Viewer is the read-only view of the session handed to everything that is
// not the auth service. The request gateway and route guards consume this;
// only the auth service holds the *Store and can mutate it.
type Viewer interface {
	Snapshot() Snapshot
	Status() Status
	Tokens() *TokenSet
	User() *User
}

// Store is the single authoritative session state for the process.
// Writes happen only through the auth service.
type Store struct {
	mu        sync.RWMutex
	status    Status
	user      *User
	tokens    *TokenSet
	lastErr   error
	updatedAt time.Time
}

var _ Viewer = (*Store)(nil)

// NewStore returns a store in the Unauthenticated state.
func NewStore() *Store {
	return &Store{status: Unauthenticated, updatedAt: time.Now()}
}

// Snapshot returns a copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Status:    s.status,
		User:      s.user,
		Tokens:    s.tokens,
		LastErr:   s.lastErr,
		UpdatedAt: s.updatedAt,
	}
}

// Status returns the current session status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Tokens returns the current token set, or nil when not authenticated.
func (s *Store) Tokens() *TokenSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// User returns the current user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// --- Mutators. Called only by the auth service; each transition applies
// atomically so readers never observe a half-written session. ---

// SetAuthenticating marks a login attempt in progress.
func (s *Store) SetAuthenticating() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Authenticating
	s.lastErr = nil
	s.updatedAt = time.Now()
}

// SetAuthenticated commits a successful login or refresh. A nil user is
// allowed for provider-managed sessions where the profile is fetched lazily.
func (s *Store) SetAuthenticated(user *User, tokens *TokenSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Authenticated
	s.user = user
	s.tokens = tokens
	s.lastErr = nil
	s.updatedAt = time.Now()
}

// SetUser updates the user without touching tokens, for lazy profile loads.
func (s *Store) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.updatedAt = time.Now()
}

// SetRefreshing marks a refresh in progress; tokens and user stay readable
// so in-flight requests can still run with the old credential.
func (s *Store) SetRefreshing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Refreshing
	s.updatedAt = time.Now()
}

// SetError records a failed operation. Tokens and user are cleared only by
// Reset; a login failure must leave a previously stored session untouched.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Error
	s.lastErr = err
	s.updatedAt = time.Now()
}

// Reset returns the session to Unauthenticated and drops user and tokens.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Unauthenticated
	s.user = nil
	s.tokens = nil
	s.lastErr = nil
	s.updatedAt = time.Now()
}
