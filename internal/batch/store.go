package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound signals a resume target that does not exist.
var ErrSessionNotFound = errors.New("batch session not found")

// SessionSummary is the listing row for persisted sessions.
type SessionSummary struct {
	ID        uuid.UUID
	State     SessionState
	Season    int
	CreatedAt time.Time
	Total     int
	Done      int
	Failed    int
	Skipped   int
}

// SessionStore persists batch progress. Item updates must be durable before
// the worker takes its next item, so a crash never loses completed work.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	UpdateSessionState(ctx context.Context, id uuid.UUID, state SessionState) error
	UpdateItem(ctx context.Context, sessionID uuid.UUID, item *Item) error
}

// MemoryStore is an in-process SessionStore for tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		counts := s.Counts()
		out = append(out, SessionSummary{
			ID:        s.ID,
			State:     s.State,
			Season:    s.Season,
			CreatedAt: s.CreatedAt,
			Total:     len(s.Items),
			Done:      counts[ItemDone],
			Failed:    counts[ItemFailed],
			Skipped:   counts[ItemSkipped],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateSessionState(_ context.Context, id uuid.UUID, state SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.State = state
	return nil
}

func (m *MemoryStore) UpdateItem(_ context.Context, sessionID uuid.UUID, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i := range s.Items {
		if s.Items[i].ID == item.ID {
			s.Items[i] = *item
			return nil
		}
	}
	s.Items = append(s.Items, *item)
	return nil
}

func cloneSession(s *Session) *Session {
	out := *s
	out.Items = append([]Item(nil), s.Items...)
	return &out
}
