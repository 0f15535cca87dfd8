package session

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

type memoryEntry struct {
	userID    int64
	expiresAt time.Time
}

// MemoryStore is a process-local session store. Suitable for tests and
// single-instance development setups.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, userID int64) (string, error) {
	id := ksuid.New().String()
	s.mu.Lock()
	s.sessions[id] = memoryEntry{userID: userID, expiresAt: time.Now().Add(TTL)}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return 0, ErrNotFound
	}
	return entry.userID, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
