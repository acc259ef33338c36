package profile

import (
	"context"
	"fmt"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/logger"
)

// Store is a ProfileStore that owns resources.
type Store interface {
	decision.ProfileStore
	Close() error
}

// Open builds the store selected by cfg.Backend. The "none" backend returns a nil Store,
// which disables sticky bucketing.
func Open(ctx context.Context, cfg config.ProfileStoreConfig, redisCfg *config.RedisConfig) (Store, error) {
	log := logger.FromContext(ctx)

	switch cfg.Backend {
	case config.ProfileBackendNone, "":
		log.Info("sticky bucketing disabled")
		return nil, nil
	case config.ProfileBackendMemory:
		store, err := NewMemoryStore(cfg.Capacity, cfg.TTL)
		if err != nil {
			return nil, err
		}
		log.Info("using in-memory profile store", "capacity", cfg.Capacity, "ttl", cfg.TTL)
		return store, nil
	case config.ProfileBackendRedis:
		client, err := NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		log.Info("using redis profile store", "key_prefix", cfg.KeyPrefix)
		return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown profile store backend %q", cfg.Backend)
	}
}
