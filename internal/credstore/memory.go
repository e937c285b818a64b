package credstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.RWMutex
	token    []byte
	user     []byte
	deviceID string
}

// NewMemoryStore builds an in-memory credential store for testing.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{inner: &memoryStore{}}
}

// MemoryStore is the test store. It exposes raw entry snapshots so tests can
// assert the persisted bytes are untouched after failed operations.
type MemoryStore struct {
	inner *memoryStore
}

func (s *MemoryStore) Load(_ context.Context) (Credentials, bool, error) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	creds, ok := decodePair(s.inner.token, s.inner.user)
	return creds, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, creds Credentials) error {
	token, user, err := encodePair(creds)
	if err != nil {
		return err
	}
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	s.inner.token = token
	s.inner.user = user
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	s.inner.token = nil
	s.inner.user = nil
	return nil
}

func (s *MemoryStore) DeviceID(_ context.Context) (string, error) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	if s.inner.deviceID == "" {
		s.inner.deviceID = uuid.NewString()
	}
	return s.inner.deviceID, nil
}

// RawEntries returns copies of the persisted token and user bytes.
func (s *MemoryStore) RawEntries() (token, user []byte) {
	s.inner.mu.RLock()
	defer s.inner.mu.RUnlock()
	return append([]byte(nil), s.inner.token...), append([]byte(nil), s.inner.user...)
}
