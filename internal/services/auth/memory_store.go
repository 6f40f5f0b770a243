package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps identity sessions in process memory. Used when Redis is unavailable.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	record   SessionRecord
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, session SessionRecord, ttl time.Duration) error {
	if session.SID == "" {
		return ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SID] = memoryEntry{record: session, deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sid string) (SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[sid]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	if !m.now().Before(entry.deadline) {
		delete(m.sessions, sid)
		return SessionRecord{}, ErrSessionNotFound
	}
	return entry.record, nil
}

func (m *MemoryStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}
