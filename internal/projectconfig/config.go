package projectconfig

import (
	"sync/atomic"

	"github.com/rafaeljc/bifrost/internal/ruleengine"
)

// Config is an immutable, indexed snapshot of one datafile revision.
// It is never modified after Build; callers must treat returned values as read-only.
type Config struct {
	version           string
	revision          string
	accountID         string
	projectID         string
	anonymizeIP       bool
	botFiltering      *bool
	sendFlagDecisions bool
	sdkKey            string
	environmentKey    string

	experimentsByKey map[string]*Experiment
	experimentsByID  map[string]*Experiment
	features         []*Feature
	featuresByKey    map[string]*Feature
	featureByExpID   map[string]*Feature
	audiences        map[string]*Audience
	groups           map[string]*Group
	rollouts         map[string]*Rollout
	events           map[string]*Event
	attributes       map[string]*Attribute
}

func (c *Config) Version() string         { return c.version }
func (c *Config) Revision() string        { return c.revision }
func (c *Config) AccountID() string       { return c.accountID }
func (c *Config) ProjectID() string       { return c.projectID }
func (c *Config) AnonymizeIP() bool       { return c.anonymizeIP }
func (c *Config) SendFlagDecisions() bool { return c.sendFlagDecisions }
func (c *Config) SDKKey() string          { return c.sdkKey }
func (c *Config) EnvironmentKey() string  { return c.environmentKey }

// BotFiltering returns the bot filtering setting and whether the datafile declares one.
func (c *Config) BotFiltering() (enabled, ok bool) {
	if c.botFiltering == nil {
		return false, false
	}
	return *c.botFiltering, true
}

// ExperimentByKey returns an experiment (including group members) by key.
func (c *Config) ExperimentByKey(key string) (*Experiment, bool) {
	e, ok := c.experimentsByKey[key]
	return e, ok
}

// ExperimentByID returns an experiment or rollout rule by id.
func (c *Config) ExperimentByID(id string) (*Experiment, bool) {
	e, ok := c.experimentsByID[id]
	return e, ok
}

// FeatureByKey returns a feature flag by key.
func (c *Config) FeatureByKey(key string) (*Feature, bool) {
	f, ok := c.featuresByKey[key]
	return f, ok
}

// Features returns every feature flag in datafile order.
func (c *Config) Features() []*Feature {
	return c.features
}

// FeatureForExperiment returns the feature an experiment is a feature test of.
func (c *Config) FeatureForExperiment(experimentID string) (*Feature, bool) {
	f, ok := c.featureByExpID[experimentID]
	return f, ok
}

// AudienceByID returns an audience by id.
func (c *Config) AudienceByID(id string) (*Audience, bool) {
	a, ok := c.audiences[id]
	return a, ok
}

// AudienceConditions implements ruleengine.AudienceLookup.
func (c *Config) AudienceConditions(id string) (ruleengine.Node, bool) {
	a, ok := c.audiences[id]
	if !ok {
		return nil, false
	}
	return a.Conditions, true
}

// GroupByID returns a group by id.
func (c *Config) GroupByID(id string) (*Group, bool) {
	g, ok := c.groups[id]
	return g, ok
}

// RolloutByID returns a rollout by id.
func (c *Config) RolloutByID(id string) (*Rollout, bool) {
	r, ok := c.rollouts[id]
	return r, ok
}

// EventByKey returns a conversion event by key.
func (c *Config) EventByKey(key string) (*Event, bool) {
	e, ok := c.events[key]
	return e, ok
}

// AttributeByKey returns a declared attribute by key.
func (c *Config) AttributeByKey(key string) (*Attribute, bool) {
	a, ok := c.attributes[key]
	return a, ok
}

// Holder publishes the current Config. Readers keep the snapshot they loaded
// for the whole request; updates replace the reference atomically.
type Holder struct {
	current atomic.Pointer[Config]
}

// NewHolder returns a Holder publishing cfg (which may be nil).
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	if cfg != nil {
		h.current.Store(cfg)
	}
	return h
}

// Load returns the current Config, or nil before the first Store.
func (h *Holder) Load() *Config {
	return h.current.Load()
}

// Store publishes cfg and returns the previous Config.
func (h *Holder) Store(cfg *Config) *Config {
	return h.current.Swap(cfg)
}
