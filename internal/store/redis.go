package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence records are kept alive for a day at most so that a crashed
// process cannot leave an identity marked active forever.
const presenceTTL = 24 * time.Hour

// RedisStore handles Redis operations for voice presence.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// presenceKey returns the key for an identity's voice presence record.
func presenceKey(userID string) string {
	return fmt.Sprintf("voice:presence:%s", userID)
}

// UpsertPresence records an identity as active in the voice room. A repeated
// join refreshes the joinedAt value, which keeps the call idempotent.
func (s *RedisStore) UpsertPresence(ctx context.Context, userID string) error {
	joinedAt := time.Now().UTC().Format(time.RFC3339)
	return s.client.Set(ctx, presenceKey(userID), joinedAt, presenceTTL).Err()
}

// DeletePresence removes an identity's presence record. Deleting an absent
// key is a no-op in Redis, which matches the idempotent-leave contract.
func (s *RedisStore) DeletePresence(ctx context.Context, userID string) error {
	return s.client.Del(ctx, presenceKey(userID)).Err()
}

// ActiveVoiceUsers returns the identities currently marked active.
func (s *RedisStore) ActiveVoiceUsers(ctx context.Context) ([]string, error) {
	var users []string
	iter := s.client.Scan(ctx, 0, presenceKey("*"), 100).Iterator()
	prefixLen := len(presenceKey(""))
	for iter.Next(ctx) {
		users = append(users, iter.Val()[prefixLen:])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
