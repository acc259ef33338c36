package profile

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/observability"
)

// MemoryStore keeps user profiles in a bounded, process-local S3-FIFO cache.
// Profiles expire after the configured TTL and the least useful ones are evicted
// once capacity is reached.
type MemoryStore struct {
	cache otter.Cache[string, *decision.UserProfile]
}

// NewMemoryStore builds a store holding at most capacity profiles.
func NewMemoryStore(capacity int, ttl time.Duration) (*MemoryStore, error) {
	cache, err := otter.MustBuilder[string, *decision.UserProfile](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build profile cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Lookup returns a copy of the stored profile, or nil when the user is unknown.
func (s *MemoryStore) Lookup(_ context.Context, userID string) (*decision.UserProfile, error) {
	profile, ok := s.cache.Get(userID)
	if !ok {
		observability.ProfileCacheMisses.Inc()
		return nil, nil
	}
	observability.ProfileCacheHits.Inc()
	return clone(profile), nil
}

// Save stores a copy of profile, replacing any previous one.
func (s *MemoryStore) Save(_ context.Context, profile *decision.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("profile must have a user id")
	}
	s.cache.Set(profile.UserID, clone(profile))
	return nil
}

// Size returns the number of profiles currently held.
func (s *MemoryStore) Size() int {
	return s.cache.Size()
}

// Close stops the cache background goroutines.
func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}

// clone keeps callers from mutating stored profiles.
func clone(p *decision.UserProfile) *decision.UserProfile {
	return &decision.UserProfile{
		UserID:              p.UserID,
		ExperimentBucketMap: maps.Clone(p.ExperimentBucketMap),
	}
}
