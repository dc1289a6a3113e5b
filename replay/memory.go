package replay

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process replay guard. Suitable only for
// single-process, non-restarting deployments; production services should use
// RedisStore so consumed proofs survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // hash -> expiry

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a memory-backed guard with a background janitor
// sweeping expired entries.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) Consume(_ context.Context, txHash string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.entries[normalize(txHash)] = time.Now().Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Consumed(_ context.Context, txHash string) (bool, error) {
	s.mu.RLock()
	expiry, ok := s.entries[normalize(txHash)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		s.mu.Lock()
		delete(s.entries, normalize(txHash))
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for hash, expiry := range s.entries {
				if now.After(expiry) {
					delete(s.entries, hash)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Hashes are hex; compare them case-insensitively like addresses.
func normalize(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}
