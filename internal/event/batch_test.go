package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/event"
)

func TestBuildBatches(t *testing.T) {
	t.Parallel()

	client := event.ClientInfo{Name: "bifrost-go", Version: "1.0.0"}

	t.Run("Should merge records of the same visitor in arrival order", func(t *testing.T) {
		t.Parallel()

		first := impression("u1")
		first.Attributes = []event.VisitorAttribute{{EntityID: "10401", Key: "browser", Type: "custom", Value: "chrome"}}
		second := impression("u2")
		third := &event.Conversion{
			UserEvent: event.UserEvent{Context: testContext, VisitorID: "u1", UUID: "c1", Timestamp: time.Unix(1700000001, 0)},
			EventID:   "50001",
			EventKey:  "purchase",
		}

		batches := event.BuildBatches([]event.Record{first, second, third}, client)

		require.Len(t, batches, 1)
		b := batches[0]
		assert.Equal(t, "bifrost-go", b.ClientName)
		assert.True(t, b.EnrichDecisions)
		require.Len(t, b.Visitors, 2)

		u1 := b.Visitors[0]
		assert.Equal(t, "u1", u1.VisitorID)
		require.Len(t, u1.Snapshots, 2)
		assert.Equal(t, "campaign_activated", u1.Snapshots[0].Events[0].Key)
		assert.Equal(t, "purchase", u1.Snapshots[1].Events[0].Key)
		assert.Empty(t, u1.Snapshots[1].Decisions)
		assert.Equal(t, first.Attributes, u1.Attributes)
	})

	t.Run("Should split records by dispatch context", func(t *testing.T) {
		t.Parallel()

		a := impression("u1")
		b := impression("u2")
		b.Context.Revision = "43"
		c := impression("u3")

		batches := event.BuildBatches([]event.Record{a, b, c}, client)

		require.Len(t, batches, 2)
		assert.Equal(t, "42", batches[0].Revision)
		assert.Equal(t, 2, batches[0].Size())
		assert.Equal(t, "43", batches[1].Revision)
		assert.Equal(t, 1, batches[1].Size())
	})

	t.Run("Should append the bot filtering attribute when configured", func(t *testing.T) {
		t.Parallel()

		on := true
		r := impression("u1")
		r.Context.BotFiltering = &on

		batches := event.BuildBatches([]event.Record{r}, client)

		require.Len(t, batches, 1)
		attrs := batches[0].Visitors[0].Attributes
		require.Len(t, attrs, 1)
		assert.Equal(t, event.VisitorAttribute{EntityID: "$opt_bot_filtering", Key: "$opt_bot_filtering", Type: "custom", Value: true}, attrs[0])
	})

	t.Run("Should keep contexts with different bot filtering apart", func(t *testing.T) {
		t.Parallel()

		off := false
		a := impression("u1")
		b := impression("u1")
		b.Context.BotFiltering = &off

		assert.Len(t, event.BuildBatches([]event.Record{a, b}, client), 2)
	})

	t.Run("Should return nothing for no records", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, event.BuildBatches(nil, client))
	})
}

func TestBatch_WireFormat(t *testing.T) {
	t.Parallel()

	r := impression("u1")
	r.ExperimentKey = "checkout_flow"
	r.VariationKey = "treatment"
	r.FlagKey = "checkout_redesign"
	r.RuleType = "experiment"
	r.Enabled = true

	batches := event.BuildBatches([]event.Record{r}, event.ClientInfo{Name: "bifrost-go", Version: "1.0.0"})
	require.Len(t, batches, 1)

	raw, err := json.Marshal(batches[0])
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"account_id": "12001",
		"project_id": "111001",
		"revision": "42",
		"client_name": "bifrost-go",
		"client_version": "1.0.0",
		"anonymize_ip": false,
		"enrich_decisions": true,
		"visitors": [{
			"visitor_id": "u1",
			"attributes": [],
			"snapshots": [{
				"decisions": [{
					"campaign_id": "1886780700",
					"experiment_id": "1886780721",
					"variation_id": "1886780731",
					"metadata": {
						"flag_key": "checkout_redesign",
						"rule_key": "checkout_flow",
						"rule_type": "experiment",
						"variation_key": "treatment",
						"enabled": true
					}
				}],
				"events": [{
					"entity_id": "1886780700",
					"key": "campaign_activated",
					"timestamp": 1700000000000,
					"uuid": "u1-uuid"
				}]
			}]
		}]
	}`, string(raw))
}
