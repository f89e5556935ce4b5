package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers the last command key applied to each fact slot
// (user, fact, scope). A redelivery carries the same key and is skipped; a
// newer assertion for the slot carries a different key and overwrites it.
type IdempotencyStore interface {
	LastApplied(ctx context.Context, slot string) (string, bool, error)
	MarkApplied(ctx context.Context, slot, key string, ttl time.Duration) error
}

const idempotencyPrefix = "reputation:applied:"

type redisIdempotencyStore struct {
	client redis.UniversalClient
}

// NewRedisIdempotencyStore keeps applied keys in Redis with a TTL.
func NewRedisIdempotencyStore(client redis.UniversalClient) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

func (s *redisIdempotencyStore) LastApplied(ctx context.Context, slot string) (string, bool, error) {
	key, err := s.client.Get(ctx, idempotencyPrefix+slot).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

func (s *redisIdempotencyStore) MarkApplied(ctx context.Context, slot, key string, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyPrefix+slot, key, ttl).Err()
}

type memoryEntry struct {
	key       string
	expiresAt time.Time
}

// MemoryIdempotencyStore is the in-process IdempotencyStore used in tests and
// when Redis is not configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryIdempotencyStore returns an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryIdempotencyStore) LastApplied(_ context.Context, slot string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[slot]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, slot)
		return "", false, nil
	}
	return entry.key, true, nil
}

func (s *MemoryIdempotencyStore) MarkApplied(_ context.Context, slot, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{key: key}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[slot] = entry
	return nil
}
