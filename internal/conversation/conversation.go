// Package conversation provides in-process conversation memory.
//
// Responsibilities: append-only turn history per conversation, lookup,
// deletion, and a per-conversation lock table for turn-level mutual
// exclusion.
// Thread Safety: all Store methods are safe for concurrent use.
package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Role constants define valid turn roles for type safety.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single message in a conversation.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Citations []string  `json:"citations,omitempty"` // document IDs cited by an assistant turn
	CreatedAt time.Time `json:"created_at"`
}

// Summary describes a conversation without its turns.
type Summary struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// entry holds one conversation's state.
type entry struct {
	turns     []Turn
	createdAt time.Time
	updatedAt time.Time
}

// Store is an in-process conversation store.
//
// Note: The zero value is NOT useful - use New() to create instances.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*entry

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates an empty conversation store.
func New() *Store {
	return &Store{
		conversations: make(map[string]*entry),
		locks:         make(map[string]*sync.Mutex),
	}
}

// Create registers a new empty conversation and returns its ID.
func (s *Store) Create(_ context.Context) string {
	id := uuid.NewString()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = &entry{createdAt: now, updatedAt: now}
	return id
}

// Ensure resolves a caller-supplied conversation ID, creating the
// conversation when id is empty or unknown. IDs are opaque strings, so an
// unknown non-empty ID is adopted as-is.
func (s *Store) Ensure(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		s.conversations[id] = &entry{createdAt: now, updatedAt: now}
	}
	return id
}

// Get returns a copy of all turns of a conversation in append order.
func (s *Store) Get(id string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns, nil
}

// Append adds a turn to an existing conversation.
func (s *Store) Append(id string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	e.turns = append(e.turns, turn)
	e.updatedAt = turn.CreatedAt
	return nil
}

// Delete removes a conversation and its lock table entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.conversations, id)
	s.mu.Unlock()

	s.lockMu.Lock()
	delete(s.locks, id)
	s.lockMu.Unlock()
	return nil
}

// Clear removes all turns of a conversation but keeps the conversation.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	e.turns = nil
	e.updatedAt = time.Now()
	return nil
}

// List returns summaries of all conversations, most recently updated first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.conversations))
	for id, e := range s.conversations {
		summaries = append(summaries, Summary{
			ID:        id,
			Turns:     len(e.turns),
			CreatedAt: e.createdAt,
			UpdatedAt: e.updatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries
}

// Exists reports whether a conversation is present.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok
}

// Locker returns the mutex for one conversation, creating it on demand.
// Holding it serializes whole turns on that conversation without blocking
// turns on other conversations.
func (s *Store) Locker(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
