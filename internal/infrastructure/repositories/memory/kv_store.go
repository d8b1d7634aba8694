package memory

import (
	"context"
	"sync"
	"time"

	"interviewroom/internal/core/domain"
)

type kvEntry struct {
	value     string
	expiresAt time.Time // zero: no expiry
}

// KeyValueStore is an in-process ports.KeyValueStore honouring TTLs.
type KeyValueStore struct {
	mu      sync.RWMutex
	entries map[string]kvEntry
	now     func() time.Time
}

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{
		entries: make(map[string]kvEntry),
		now:     time.Now,
	}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", domain.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", domain.ErrKeyNotFound
	}
	return e.value, nil
}

// Set stores value; ttl <= 0 keeps it until deleted.
func (s *KeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	e := kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *KeyValueStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}
