// Package profile provides the user profile stores behind sticky bucketing:
// a process-local memory store and a shared Redis store.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// keySegment namespaces profile keys below the configured prefix.
// Example: "bifrost:profile:user-123"
const keySegment = "profile"

// RedisStore shares user profiles between processes. Profiles are stored as JSON
// strings with a sliding TTL refreshed on every save.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps profiles forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	validation.AssertNotNil(client, "redis client")
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key of a user's profile.
func (s *RedisStore) Key(userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, keySegment, userID)
}

// Lookup fetches and decodes the profile. A missing key yields (nil, nil).
func (s *RedisStore) Lookup(ctx context.Context, userID string) (*decision.UserProfile, error) {
	start := time.Now()

	raw, err := s.client.Get(ctx, s.Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		observe("lookup", "miss", start)
		return nil, nil
	}
	if err != nil {
		observe("lookup", "error", start)
		return nil, fmt.Errorf("failed to get profile of user %q: %w", userID, err)
	}

	var profile decision.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		observe("lookup", "error", start)
		return nil, fmt.Errorf("failed to decode profile of user %q: %w", userID, err)
	}
	observe("lookup", "hit", start)
	return &profile, nil
}

// Save encodes and stores the profile.
func (s *RedisStore) Save(ctx context.Context, profile *decision.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile must have a user id")
	}
	start := time.Now()

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile of user %q: %w", profile.UserID, err)
	}

	if err := s.client.Set(ctx, s.Key(profile.UserID), raw, s.ttl).Err(); err != nil {
		observe("save", "error", start)
		return fmt.Errorf("failed to save profile of user %q: %w", profile.UserID, err)
	}
	observe("save", "success", start)
	return nil
}

// HealthChecker returns a checker pinging the backing Redis.
func (s *RedisStore) HealthChecker() *observability.PingChecker {
	return NewHealthChecker(s.client)
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func observe(operation, status string, start time.Time) {
	observability.ProfileStoreDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
