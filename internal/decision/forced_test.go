package decision_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/decision"
)

func TestForcedVariations(t *testing.T) {
	t.Parallel()

	cfg := buildFixture(t)

	t.Run("Should set, get and clear", func(t *testing.T) {
		forced := decision.NewForcedVariations()

		require.NoError(t, forced.Set(cfg, "checkout_flow", "u1", "control"))
		v, ok := forced.Get(cfg, "checkout_flow", "u1")
		require.True(t, ok)
		assert.Equal(t, "control", v.Key)

		require.NoError(t, forced.Set(cfg, "checkout_flow", "u1", ""))
		_, ok = forced.Get(cfg, "checkout_flow", "u1")
		assert.False(t, ok)
	})

	t.Run("Should reject unknown experiment and variation", func(t *testing.T) {
		forced := decision.NewForcedVariations()

		assert.ErrorIs(t, forced.Set(cfg, "nope", "u1", "control"), decision.ErrUnknownExperiment)
		assert.ErrorIs(t, forced.Set(cfg, "checkout_flow", "u1", "nope"), decision.ErrUnknownVariation)
		assert.ErrorIs(t, forced.Set(cfg, "checkout_flow", "", "control"), decision.ErrEmptyUserID)
	})

	t.Run("Should isolate instances", func(t *testing.T) {
		a := decision.NewForcedVariations()
		b := decision.NewForcedVariations()

		require.NoError(t, a.Set(cfg, "checkout_flow", "u1", "control"))
		_, ok := b.Get(cfg, "checkout_flow", "u1")
		assert.False(t, ok)
	})

	t.Run("Should be safe for concurrent use", func(t *testing.T) {
		forced := decision.NewForcedVariations()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := "control"
				if i%2 == 0 {
					key = "treatment"
				}
				_ = forced.Set(cfg, "checkout_flow", "u1", key)
				_, _ = forced.Get(cfg, "checkout_flow", "u1")
			}()
		}
		wg.Wait()

		v, ok := forced.Get(cfg, "checkout_flow", "u1")
		require.True(t, ok)
		assert.Contains(t, []string{"control", "treatment"}, v.Key)
	})
}
