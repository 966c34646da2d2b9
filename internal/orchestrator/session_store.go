package orchestrator

import (
	"context"
	"sync"

	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/store"
)

// SessionStore is what the orchestrator needs from conversation
// persistence. Load returns store.ErrNotFound for an unknown id; Save
// returns store.ErrVersionConflict when expectedVersion is stale.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Conversation, error)
	Save(ctx context.Context, conv *domain.Conversation, expectedVersion int64) error
}

// MemorySessionStore keeps conversations in memory with the same
// version semantics as the SQLite store. Used by the one-shot message
// command and tests.
type MemorySessionStore struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{convs: make(map[string]*domain.Conversation)}
}

func (m *MemorySessionStore) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (m *MemorySessionStore) Save(ctx context.Context, conv *domain.Conversation, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.convs[conv.ID]
	if !ok {
		if expectedVersion != 0 {
			return store.ErrVersionConflict
		}
	} else if stored.Version != expectedVersion {
		return store.ErrVersionConflict
	}

	saved := cloneConversation(conv)
	saved.Version = expectedVersion + 1
	m.convs[conv.ID] = saved
	conv.Version = saved.Version
	return nil
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Turns = make([]domain.Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return &out
}
