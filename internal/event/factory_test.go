package event_test

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
	"github.com/rafaeljc/bifrost/internal/testsupport"
)

func buildConfig(t *testing.T) *projectconfig.Config {
	t.Helper()
	cfg, err := projectconfig.Build(testsupport.Datafile())
	require.NoError(t, err)
	return cfg
}

func TestNewImpression(t *testing.T) {
	t.Parallel()

	cfg := buildConfig(t)
	exp, _ := cfg.ExperimentByKey("checkout_flow")
	variation, _ := exp.VariationByKey("treatment")
	user := decision.UserContext{
		ID: "u1",
		Attributes: map[string]any{
			"browser":           "chrome",
			"undeclared":        "dropped",
			"$opt_user_agent":   "curl/8",
			"age":               math.Inf(1),
			"$opt_bucketing_id": "b1",
		},
	}

	imp := event.NewImpression(cfg, decision.Decision{Experiment: exp, Variation: variation, Source: decision.SourceExperiment}, user, "", "experiment", true)

	assert.Equal(t, "u1", imp.VisitorID)
	assert.Equal(t, "1886780700", imp.LayerID)
	assert.Equal(t, "1886780721", imp.ExperimentID)
	assert.Equal(t, "treatment", imp.VariationKey)
	assert.Equal(t, event.KindImpression, imp.Kind())
	assert.Equal(t, event.Context{AccountID: "12001", ProjectID: "111001", Revision: "42", AnonymizeIP: true, BotFiltering: imp.Context.BotFiltering}, imp.Context)
	require.NotNil(t, imp.Context.BotFiltering)
	assert.False(t, *imp.Context.BotFiltering)
	_, err := uuid.Parse(imp.UUID)
	assert.NoError(t, err)

	assert.Equal(t, []event.VisitorAttribute{
		{EntityID: "$opt_bucketing_id", Key: "$opt_bucketing_id", Type: "custom", Value: "b1"},
		{EntityID: "$opt_user_agent", Key: "$opt_user_agent", Type: "custom", Value: "curl/8"},
		{EntityID: "10401", Key: "browser", Type: "custom", Value: "chrome"},
	}, imp.Attributes)
}

func TestNewImpression_WithoutExperiment(t *testing.T) {
	t.Parallel()

	cfg := buildConfig(t)
	imp := event.NewImpression(cfg, decision.Decision{Source: decision.SourceRollout}, decision.UserContext{ID: "u1"}, "dark_launch", "rollout", false)

	assert.Empty(t, imp.ExperimentID)
	assert.Empty(t, imp.VariationID)
	assert.Equal(t, "dark_launch", imp.FlagKey)
}

func TestNewConversion(t *testing.T) {
	t.Parallel()

	cfg := buildConfig(t)
	user := decision.UserContext{ID: "u1"}

	tests := []struct {
		name        string
		tags        map[string]any
		wantRevenue *int64
		wantValue   *float64
	}{
		{name: "Should accept no tags"},
		{
			name:        "Should extract integer revenue and numeric value",
			tags:        map[string]any{"revenue": 4200, "value": 1.5, "category": "shoes"},
			wantRevenue: ptr(int64(4200)),
			wantValue:   ptr(1.5),
		},
		{
			name:        "Should accept integral float revenue",
			tags:        map[string]any{"revenue": float64(100)},
			wantRevenue: ptr(int64(100)),
		},
		{
			name: "Should ignore fractional revenue",
			tags: map[string]any{"revenue": 10.5},
		},
		{
			name: "Should ignore non numeric values",
			tags: map[string]any{"revenue": "100", "value": "1.5"},
		},
		{
			name: "Should ignore non finite values",
			tags: map[string]any{"value": math.NaN()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conv, err := event.NewConversion(cfg, "purchase", user, tt.tags)
			require.NoError(t, err)

			assert.Equal(t, "50001", conv.EventID)
			assert.Equal(t, tt.wantRevenue, conv.Revenue)
			assert.Equal(t, tt.wantValue, conv.Value)
			assert.Len(t, conv.Tags, len(tt.tags))
		})
	}

	t.Run("Should reject unknown events", func(t *testing.T) {
		t.Parallel()
		_, err := event.NewConversion(cfg, "nope", user, nil)
		assert.ErrorIs(t, err, event.ErrUnknownEvent)
	})

	t.Run("Should copy tags", func(t *testing.T) {
		t.Parallel()
		tags := map[string]any{"category": "shoes"}
		conv, err := event.NewConversion(cfg, "purchase", user, tags)
		require.NoError(t, err)

		tags["category"] = "hats"
		assert.Equal(t, "shoes", conv.Tags["category"])
	})
}

func ptr[T any](v T) *T { return &v }
