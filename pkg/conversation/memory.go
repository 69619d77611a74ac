package conversation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store. Values are msgpack round-tripped so callers
// never share memory with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	records  map[string][][]byte
	now      func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string][]byte),
		records:  make(map[string][][]byte),
		now:      time.Now,
	}
}

func (m *Memory) CreateSession(_ context.Context, title string) (*Session, error) {
	s := newSession(title, m.now())
	data, err := encode(s)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = data
	m.mu.Unlock()
	return s, nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conversation: session %s: %w", id, ErrNotFound)
	}
	return decodeSession(data)
}

func (m *Memory) ListSessions(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, data := range m.sessions {
		s, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) RenameSession(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, func(s *Session) {
		s.Title = title
	})
}

func (m *Memory) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Append(_ context.Context, sessionID string, rec *Record) error {
	now := m.now()
	fillRecord(rec, now)
	data, err := encode(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateLocked(sessionID, func(s *Session) {
		s.Records++
		s.UpdatedAt = now
	}); err != nil {
		return err
	}
	m.records[sessionID] = append(m.records[sessionID], data)
	return nil
}

func (m *Memory) Records(_ context.Context, sessionID string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("conversation: session %s: %w", sessionID, ErrNotFound)
	}
	out := make([]*Record, 0, len(m.records[sessionID]))
	for _, data := range m.records[sessionID] {
		r, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) updateLocked(id string, fn func(*Session)) error {
	data, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("conversation: session %s: %w", id, ErrNotFound)
	}
	s, err := decodeSession(data)
	if err != nil {
		return err
	}
	fn(s)
	data, err = encode(s)
	if err != nil {
		return err
	}
	m.sessions[id] = data
	return nil
}

func sortNewestFirst(sessions []*Session) {
	slices.SortStableFunc(sessions, func(a, b *Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

var _ Store = (*Memory)(nil)
