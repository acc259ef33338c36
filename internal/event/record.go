// Package event turns decisions and conversions into records, groups them into
// delivery batches and controls when batches are handed to a Transport.
package event

import "time"

// Kinds of records.
const (
	KindImpression = "impression"
	KindConversion = "conversion"
)

// Context is the dispatch context shared by every record of one batch.
// Records with different contexts (for example across a datafile revision change)
// never share a batch.
type Context struct {
	AccountID   string
	ProjectID   string
	Revision    string
	AnonymizeIP bool
	// BotFiltering is nil when the datafile does not configure it.
	BotFiltering *bool
}

type contextKey struct {
	accountID    string
	projectID    string
	revision     string
	anonymizeIP  bool
	botFiltering int8 // -1 unset
}

func (c Context) key() contextKey {
	k := contextKey{
		accountID:    c.AccountID,
		projectID:    c.ProjectID,
		revision:     c.Revision,
		anonymizeIP:  c.AnonymizeIP,
		botFiltering: -1,
	}
	if c.BotFiltering != nil {
		k.botFiltering = 0
		if *c.BotFiltering {
			k.botFiltering = 1
		}
	}
	return k
}

// UserEvent holds what every record carries.
type UserEvent struct {
	Context    Context
	VisitorID  string
	Attributes []VisitorAttribute
	UUID       string
	Timestamp  time.Time
}

// Impression records that a user was exposed to a decision.
type Impression struct {
	UserEvent

	LayerID       string
	ExperimentID  string
	ExperimentKey string
	VariationID   string
	VariationKey  string
	FlagKey       string
	RuleType      string
	Enabled       bool
}

// Conversion records a tracked event.
type Conversion struct {
	UserEvent

	EventID  string
	EventKey string
	Revenue  *int64
	Value    *float64
	Tags     map[string]any
}

// Record is an Impression or a Conversion.
type Record interface {
	User() *UserEvent
	Kind() string
	snapshot() Snapshot
}

func (e *UserEvent) User() *UserEvent { return e }

func (i *Impression) Kind() string { return KindImpression }

func (c *Conversion) Kind() string { return KindConversion }

func (i *Impression) snapshot() Snapshot {
	return Snapshot{
		Decisions: []SnapshotDecision{{
			CampaignID:   i.LayerID,
			ExperimentID: i.ExperimentID,
			VariationID:  i.VariationID,
			Metadata: DecisionMetadata{
				FlagKey:      i.FlagKey,
				RuleKey:      i.ExperimentKey,
				RuleType:     i.RuleType,
				VariationKey: i.VariationKey,
				Enabled:      i.Enabled,
			},
		}},
		Events: []SnapshotEvent{{
			EntityID:  i.LayerID,
			Key:       activateEventKey,
			Timestamp: i.Timestamp.UnixMilli(),
			UUID:      i.UUID,
		}},
	}
}

func (c *Conversion) snapshot() Snapshot {
	return Snapshot{
		Events: []SnapshotEvent{{
			EntityID:  c.EventID,
			Key:       c.EventKey,
			Timestamp: c.Timestamp.UnixMilli(),
			UUID:      c.UUID,
			Revenue:   c.Revenue,
			Value:     c.Value,
			Tags:      c.Tags,
		}},
	}
}
