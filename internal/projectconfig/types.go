package projectconfig

import "github.com/rafaeljc/bifrost/internal/ruleengine"

// Experiment statuses that allow bucketing.
const (
	StatusRunning  = "Running"
	StatusLaunched = "Launched"
)

// Group policies.
const (
	PolicyRandom      = "random"
	PolicyOverlapping = "overlapping"
)

// TrafficAllocation is one cumulative range of an allocation table.
// EntityID is a variation id, or an experiment id in a group table.
type TrafficAllocation struct {
	EntityID   string
	EndOfRange int
}

// Variation is one treatment of an experiment or rollout rule.
type Variation struct {
	ID             string
	Key            string
	FeatureEnabled bool

	// variable id -> string encoded value
	Variables map[string]string
}

// Experiment is an A/B test, a feature test or a rollout rule.
type Experiment struct {
	ID      string
	Key     string
	LayerID string
	GroupID string
	Status  string

	AudienceIDs []string
	// Audience is the compiled targeting expression; nil targets everyone.
	Audience ruleengine.Node

	TrafficAllocation []TrafficAllocation
	Variations        []*Variation

	// Whitelist maps user ids to variation keys.
	Whitelist map[string]string

	// RolloutID is set for rollout rules.
	RolloutID string

	variationsByID  map[string]*Variation
	variationsByKey map[string]*Variation
}

// IsRunning reports whether the experiment accepts traffic.
func (e *Experiment) IsRunning() bool {
	return e.Status == StatusRunning || e.Status == StatusLaunched
}

// IsRolloutRule reports whether the experiment belongs to a rollout.
func (e *Experiment) IsRolloutRule() bool {
	return e.RolloutID != ""
}

// VariationByID returns the variation with the given id.
func (e *Experiment) VariationByID(id string) (*Variation, bool) {
	v, ok := e.variationsByID[id]
	return v, ok
}

// VariationByKey returns the variation with the given key.
func (e *Experiment) VariationByKey(key string) (*Variation, bool) {
	v, ok := e.variationsByKey[key]
	return v, ok
}

// Group is a set of experiments sharing traffic.
type Group struct {
	ID                string
	Policy            string
	TrafficAllocation []TrafficAllocation
	ExperimentIDs     []string
}

// IsExclusive reports whether a user can be in at most one member experiment.
func (g *Group) IsExclusive() bool {
	return g.Policy != PolicyOverlapping
}

// Audience is a named condition tree.
type Audience struct {
	ID         string
	Name       string
	Conditions ruleengine.Node
}

// VariableType is the declared type of a feature variable.
type VariableType string

const (
	VariableBoolean VariableType = "boolean"
	VariableInteger VariableType = "integer"
	VariableDouble  VariableType = "double"
	VariableString  VariableType = "string"
	VariableJSON    VariableType = "json"
)

// Variable is a typed feature variable with its default value.
type Variable struct {
	ID           string
	Key          string
	Type         VariableType
	DefaultValue string
}

// Feature is a feature flag: feature tests first, then a rollout.
type Feature struct {
	ID            string
	Key           string
	RolloutID     string
	ExperimentIDs []string
	Variables     []*Variable

	variablesByKey map[string]*Variable
}

// VariableByKey returns the feature variable with the given key.
func (f *Feature) VariableByKey(key string) (*Variable, bool) {
	v, ok := f.variablesByKey[key]
	return v, ok
}

// Rollout is an ordered chain of targeted rules ending in an "everyone else" rule.
type Rollout struct {
	ID    string
	Rules []*Experiment
}

// Event is a conversion event declared in the datafile.
type Event struct {
	ID            string
	Key           string
	ExperimentIDs []string
}

// Attribute is a declared user attribute.
type Attribute struct {
	ID  string
	Key string
}
