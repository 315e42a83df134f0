package access

import (
	"context"
	"sync"
)

// SessionState is the client-held snapshot of an authenticated account. It is
// replaced wholesale on every successful projection and cleared on logout,
// never merged field by field.
type SessionState struct {
	Token     string      `json:"token,omitempty"`
	Account   AccountView `json:"account"`
	Abilities AbilityView `json:"abilities"`
}

// IsAuthenticated reports whether the state holds both a token and an account
func (s SessionState) IsAuthenticated() bool {
	return s.Token != "" && s.Account.ID != ""
}

// FromSessionData builds a replacement state from a projection
func FromSessionData(data *SessionData) SessionState {
	if data == nil {
		return SessionState{}
	}
	return SessionState{
		Token:     data.Token,
		Account:   data.Account,
		Abilities: data.Abilities,
	}
}

// SessionStore is the explicit load/save boundary at the process edge. The
// service takes the store by reference instead of mutating a process-wide
// singleton; embedding applications decide where the state actually lives
// (browser storage, cookie, keychain).
type SessionStore interface {
	Load(ctx context.Context) (SessionState, bool, error)
	Save(ctx context.Context, state SessionState) error
	Clear(ctx context.Context) error
}

// MemorySessionStore keeps the session in process memory. Suitable for tests
// and single-user tools.
type MemorySessionStore struct {
	mu    sync.RWMutex
	state SessionState
	set   bool
}

// NewMemorySessionStore returns an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load(ctx context.Context) (SessionState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.set, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, state SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.set = true
	return nil
}

func (m *MemorySessionStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = SessionState{}
	m.set = false
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
