package profile_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/profile"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*profile.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := profile.NewRedisStore(client, "bifrost", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should namespace keys", func(t *testing.T) {
		t.Parallel()
		store, _ := setupRedisStore(t, time.Hour)
		assert.Equal(t, "bifrost:profile:user-123", store.Key("user-123"))
	})

	t.Run("Should return nil for unknown users", func(t *testing.T) {
		t.Parallel()
		store, _ := setupRedisStore(t, time.Hour)

		got, err := store.Lookup(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Should store profiles as JSON", func(t *testing.T) {
		t.Parallel()
		store, mr := setupRedisStore(t, time.Hour)

		require.NoError(t, store.Save(ctx, sampleProfile("u1", "1886780731")))

		raw, err := mr.Get("bifrost:profile:u1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"u1","experiment_bucket_map":{"1886780721":{"variation_id":"1886780731"}}}`, raw)

		got, err := store.Lookup(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, sampleProfile("u1", "1886780731"), got)
	})

	t.Run("Should expire profiles after the TTL", func(t *testing.T) {
		t.Parallel()
		store, mr := setupRedisStore(t, time.Hour)

		require.NoError(t, store.Save(ctx, sampleProfile("u1", "1886780731")))
		assert.Equal(t, time.Hour, mr.TTL("bifrost:profile:u1"))

		mr.FastForward(2 * time.Hour)

		got, err := store.Lookup(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Should report corrupted payloads", func(t *testing.T) {
		t.Parallel()
		store, mr := setupRedisStore(t, time.Hour)
		require.NoError(t, mr.Set("bifrost:profile:u1", "not-json"))

		_, err := store.Lookup(ctx, "u1")
		assert.ErrorContains(t, err, "failed to decode profile")
	})

	t.Run("Should surface server errors", func(t *testing.T) {
		t.Parallel()
		store, mr := setupRedisStore(t, time.Hour)
		mr.SetError("LOADING server is loading")

		_, err := store.Lookup(ctx, "u1")
		assert.Error(t, err)
		assert.Error(t, store.Save(ctx, sampleProfile("u1", "1886780731")))
	})
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	t.Run("Should fail on nil config", func(t *testing.T) {
		t.Parallel()
		_, err := profile.NewRedisClient(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("Should connect using host and port", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)

		client, err := profile.NewRedisClient(context.Background(), &config.RedisConfig{
			Host:           mr.Host(),
			Port:           mr.Port(),
			PoolSize:       2,
			DialTimeout:    time.Second,
			PingMaxRetries: 1,
			PingBackoff:    10 * time.Millisecond,
		})
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, profile.NewHealthChecker(client).Check(context.Background()))
	})

	t.Run("Should connect using a URL", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)

		client, err := profile.NewRedisClient(context.Background(), &config.RedisConfig{
			URL:            "redis://" + mr.Addr() + "/0",
			PoolSize:       2,
			DialTimeout:    time.Second,
			PingMaxRetries: 1,
			PingBackoff:    10 * time.Millisecond,
		})
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("Should give up after the configured retries", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		host, port, err := net.SplitHostPort(addr)
		require.NoError(t, err)

		_, err = profile.NewRedisClient(context.Background(), &config.RedisConfig{
			Host:           host,
			Port:           port,
			PoolSize:       1,
			DialTimeout:    100 * time.Millisecond,
			PingMaxRetries: 2,
			PingBackoff:    10 * time.Millisecond,
		})
		assert.ErrorContains(t, err, "after 2 retries")
	})
}

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "redis", profile.NewHealthChecker(nil).Name())
	assert.Error(t, profile.NewHealthChecker(nil).Check(context.Background()))
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should disable sticky bucketing for none", func(t *testing.T) {
		t.Parallel()
		store, err := profile.Open(ctx, config.ProfileStoreConfig{Backend: config.ProfileBackendNone}, nil)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("Should build a memory store", func(t *testing.T) {
		t.Parallel()
		store, err := profile.Open(ctx, config.ProfileStoreConfig{Backend: config.ProfileBackendMemory, Capacity: 10, TTL: time.Hour}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &profile.MemoryStore{}, store)
	})

	t.Run("Should build a redis store", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		redisCfg := &config.RedisConfig{Host: mr.Host(), Port: mr.Port(), PoolSize: 1, DialTimeout: time.Second, PingMaxRetries: 1}

		store, err := profile.Open(ctx, config.ProfileStoreConfig{Backend: config.ProfileBackendRedis, TTL: time.Hour, KeyPrefix: "bifrost"}, redisCfg)
		require.NoError(t, err)
		defer store.Close()
		require.IsType(t, &profile.RedisStore{}, store)
		assert.NoError(t, store.(*profile.RedisStore).HealthChecker().Check(ctx))
	})

	t.Run("Should reject unknown backends", func(t *testing.T) {
		t.Parallel()
		_, err := profile.Open(ctx, config.ProfileStoreConfig{Backend: "etcd"}, nil)
		assert.Error(t, err)
	})
}
