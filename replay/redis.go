package replay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agentgate:proof:"

// RedisStore is a Redis-backed replay guard. Entries carry a TTL on the key
// itself, so expiry needs no janitor. This is the durable-enough production
// backend: consumed proofs survive a process restart.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a guard from a Redis connection URL
// (redis://[user:pass@]host:port/db).
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client, for callers that share a
// Redis connection pool across subsystems.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Consume(ctx context.Context, txHash string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.client.Set(ctx, keyPrefix+normalize(txHash), "1", ttl).Err()
}

func (s *RedisStore) Consumed(ctx context.Context, txHash string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+normalize(txHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
