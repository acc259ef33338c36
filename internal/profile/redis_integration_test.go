//go:build integration

package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/profile"
	"github.com/rafaeljc/bifrost/internal/testsupport"
)

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	store := profile.NewRedisStore(redisCtr.Client, "bifrost-it", time.Hour)

	t.Run("Should persist profiles across store instances", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sampleProfile("u1", "1886780731")))

		other := profile.NewRedisStore(redisCtr.Client, "bifrost-it", time.Hour)
		got, err := other.Lookup(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, sampleProfile("u1", "1886780731"), got)
	})

	t.Run("Should refresh the TTL on save", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sampleProfile("u2", "1886780730")))

		ttl, err := redisCtr.Client.TTL(ctx, store.Key("u2")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)
	})

	t.Run("Should record latency", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "bifrost_profile_redis_duration_seconds", map[string]string{"operation": "lookup", "status": "miss"}, 1, func() {
			got, err := store.Lookup(ctx, "unknown")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	})

	t.Run("Should drive sticky bucketing", func(t *testing.T) {
		cfg := buildConfig(t)
		svc := decision.NewService(decision.WithProfileStore(store))
		exp, _ := cfg.ExperimentByKey("checkout_flow")

		require.NoError(t, store.Save(ctx, &decision.UserProfile{
			UserID:              "ppid1",
			ExperimentBucketMap: map[string]decision.Bucket{exp.ID: {VariationID: "1886780730"}},
		}))

		v, _ := svc.GetVariation(ctx, cfg, exp, decision.UserContext{ID: "ppid1"}, decision.Options{})
		require.NotNil(t, v)
		assert.Equal(t, "control", v.Key)
	})
}
