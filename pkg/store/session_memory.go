package store

import (
	"context"
	"sync"
	"time"

	"quoteshare/internal/util"
)

// MemorySessionStore keeps sessions in-process. Sessions do not survive a
// restart and are not shared between replicas.
type MemorySessionStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	sess map[string]memorySession
}

type memorySession struct {
	userID    uint64
	expiresAt time.Time
}

// NewMemorySessionStore initializes an empty in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:  ttl,
		now:  time.Now,
		sess: make(map[string]memorySession),
	}
}

// NewSession creates a token for userID.
func (m *MemorySessionStore) NewSession(_ context.Context, userID uint64) (string, error) {
	token := util.NewID()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.sess[token] = memorySession{userID: userID, expiresAt: m.now().Add(m.ttl)}
	return token, nil
}

// GetUserIDByToken resolves token to user ID.
func (m *MemorySessionStore) GetUserIDByToken(_ context.Context, token string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sess[token]
	if !ok {
		return 0, false, nil
	}
	if !m.now().Before(s.expiresAt) {
		delete(m.sess, token)
		return 0, false, nil
	}
	return s.userID, true, nil
}

// DeleteSession removes a token mapping.
func (m *MemorySessionStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}

func (m *MemorySessionStore) sweepLocked() {
	now := m.now()
	for token, s := range m.sess {
		if !now.Before(s.expiresAt) {
			delete(m.sess, token)
		}
	}
}
