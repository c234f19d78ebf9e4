package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Session is one visit's State behind a lock. Actions from the same visit
// may arrive concurrently; every read or write goes through Update or
// Snapshot.
type Session struct {
	id    string
	mu    sync.Mutex
	state State
}

// New returns a session with a fresh State.
func New(id string) *Session {
	return &Session{id: id, state: NewState()}
}

func (s *Session) ID() string { return s.id }

// Update runs fn with exclusive access to the state. fn's error is returned
// unchanged; any mutation fn made before failing is kept.
func (s *Session) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Store maps session ids to sessions. Idle sessions expire after ttl.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a registry whose entries expire ttl after their last use.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: cache.New(ttl, ttl/2+time.Minute),
		ttl:   ttl,
	}
}

// Create registers a new session under a random id.
func (st *Store) Create() *Session {
	s := New(uuid.NewString())
	st.cache.Set(s.id, s, st.ttl)
	return s
}

// Get returns the session for id and extends its lifetime.
func (st *Store) Get(id string) (*Session, bool) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	st.cache.Set(id, s, st.ttl)
	return s, true
}

func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

// Count returns the number of live sessions, possibly including expired
// ones not yet swept.
func (st *Store) Count() int {
	return st.cache.ItemCount()
}

// OnEvicted registers fn to run whenever a session is removed.
func (st *Store) OnEvicted(fn func(id string)) {
	st.cache.OnEvicted(func(key string, _ any) { fn(key) })
}
