package projectconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/ruleengine"
)

// SupportedVersions lists the datafile versions Build accepts.
var SupportedVersions = []string{"2", "3", "4"}

type buildOptions struct {
	validator Validator
	logger    *slog.Logger
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithValidator replaces the default struct tag validator.
func WithValidator(v Validator) BuildOption {
	return func(o *buildOptions) { o.validator = v }
}

// WithSkipValidation builds without structural validation.
func WithSkipValidation() BuildOption {
	return func(o *buildOptions) { o.validator = nil }
}

// WithLogger sets the logger used for non fatal datafile problems.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build decodes a datafile and indexes it into an immutable Config.
// raw is never modified or retained.
func Build(raw []byte, opts ...BuildOption) (*Config, error) {
	o := buildOptions{
		validator: NewStructValidator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var doc Datafile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, configError("decode datafile", err)
	}

	if !isSupportedVersion(doc.Version) {
		return nil, configError(fmt.Sprintf("unsupported datafile version %q", doc.Version), nil)
	}

	if o.validator != nil {
		if err := o.validator.Validate(&doc); err != nil {
			return nil, configError("datafile failed validation", err)
		}
	} else {
		o.logger.Warn("building project config without datafile validation",
			"revision", doc.Revision,
		)
	}

	b := &builder{logger: o.logger}
	return b.build(&doc), nil
}

func isSupportedVersion(v string) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

type builder struct {
	logger *slog.Logger
}

func (b *builder) build(doc *Datafile) *Config {
	cfg := &Config{
		version:           doc.Version,
		revision:          doc.Revision,
		accountID:         doc.AccountID,
		projectID:         doc.ProjectID,
		anonymizeIP:       doc.AnonymizeIP,
		sendFlagDecisions: doc.SendFlagDecisions,
		sdkKey:            doc.SDKKey,
		environmentKey:    doc.EnvironmentKey,
		experimentsByKey:  make(map[string]*Experiment),
		experimentsByID:   make(map[string]*Experiment),
		featuresByKey:     make(map[string]*Feature, len(doc.FeatureFlags)),
		featureByExpID:    make(map[string]*Feature),
		audiences:         make(map[string]*Audience, len(doc.Audiences)+len(doc.TypedAudiences)),
		groups:            make(map[string]*Group, len(doc.Groups)),
		rollouts:          make(map[string]*Rollout, len(doc.Rollouts)),
		events:            make(map[string]*Event, len(doc.Events)),
		attributes:        make(map[string]*Attribute, len(doc.Attributes)),
	}
	if doc.BotFiltering != nil {
		botFiltering := *doc.BotFiltering
		cfg.botFiltering = &botFiltering
	}

	// typed audiences replace legacy audiences sharing an id
	for _, a := range doc.Audiences {
		cfg.audiences[a.ID] = b.audience(a)
	}
	for _, a := range doc.TypedAudiences {
		cfg.audiences[a.ID] = b.audience(a)
	}

	for _, raw := range doc.Experiments {
		exp := b.experiment(raw)
		cfg.experimentsByKey[exp.Key] = exp
		cfg.experimentsByID[exp.ID] = exp
	}

	for _, raw := range doc.Groups {
		group := &Group{
			ID:                raw.ID,
			Policy:            raw.Policy,
			TrafficAllocation: allocations(raw.TrafficAllocation),
			ExperimentIDs:     make([]string, 0, len(raw.Experiments)),
		}
		for _, rawExp := range raw.Experiments {
			exp := b.experiment(rawExp)
			exp.GroupID = group.ID
			group.ExperimentIDs = append(group.ExperimentIDs, exp.ID)
			cfg.experimentsByKey[exp.Key] = exp
			cfg.experimentsByID[exp.ID] = exp
		}
		cfg.groups[group.ID] = group
	}

	for _, raw := range doc.Rollouts {
		rollout := &Rollout{ID: raw.ID, Rules: make([]*Experiment, 0, len(raw.Experiments))}
		for _, rawRule := range raw.Experiments {
			rule := b.experiment(rawRule)
			rule.RolloutID = rollout.ID
			rollout.Rules = append(rollout.Rules, rule)
			if _, taken := cfg.experimentsByID[rule.ID]; !taken {
				cfg.experimentsByID[rule.ID] = rule
			}
		}
		cfg.rollouts[rollout.ID] = rollout
	}

	cfg.features = make([]*Feature, 0, len(doc.FeatureFlags))
	for _, raw := range doc.FeatureFlags {
		feature := featureFrom(raw)
		cfg.features = append(cfg.features, feature)
		cfg.featuresByKey[feature.Key] = feature
		for _, expID := range feature.ExperimentIDs {
			cfg.featureByExpID[expID] = feature
		}
	}

	for _, raw := range doc.Events {
		cfg.events[raw.Key] = &Event{
			ID:            raw.ID,
			Key:           raw.Key,
			ExperimentIDs: append([]string(nil), raw.ExperimentIDs...),
		}
	}

	for _, raw := range doc.Attributes {
		cfg.attributes[raw.Key] = &Attribute{ID: raw.ID, Key: raw.Key}
	}

	return cfg
}

// audience compiles the audience conditions. A malformed tree does not fail
// the build: the audience evaluates to Unknown and never matches.
func (b *builder) audience(raw DatafileAudience) *Audience {
	node, err := compileConditions(raw.Conditions)
	if err != nil {
		b.logger.Warn("audience conditions are invalid, audience will never match",
			"audience_id", raw.ID,
			"error", err,
		)
		node = &ruleengine.Not{}
	}
	return &Audience{ID: raw.ID, Name: raw.Name, Conditions: node}
}

func compileConditions(raw json.RawMessage) (ruleengine.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: missing conditions", ruleengine.ErrInvalidCondition)
	}

	// legacy audiences carry the tree as a JSON string
	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ruleengine.ErrInvalidCondition, err)
		}
		return ruleengine.CompileString(encoded)
	}

	var tree any
	if err := json.Unmarshal(trimmed, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ruleengine.ErrInvalidCondition, err)
	}
	return ruleengine.Compile(tree)
}

func (b *builder) experiment(raw DatafileExperiment) *Experiment {
	exp := &Experiment{
		ID:                raw.ID,
		Key:               raw.Key,
		LayerID:           raw.LayerID,
		Status:            raw.Status,
		AudienceIDs:       append([]string(nil), raw.AudienceIDs...),
		TrafficAllocation: allocations(raw.TrafficAllocation),
		Variations:        make([]*Variation, 0, len(raw.Variations)),
		Whitelist:         make(map[string]string, len(raw.ForcedVariations)),
		variationsByID:    make(map[string]*Variation, len(raw.Variations)),
		variationsByKey:   make(map[string]*Variation, len(raw.Variations)),
	}

	for userID, variationKey := range raw.ForcedVariations {
		exp.Whitelist[userID] = variationKey
	}

	for _, rawVar := range raw.Variations {
		v := &Variation{
			ID:             rawVar.ID,
			Key:            rawVar.Key,
			FeatureEnabled: rawVar.FeatureEnabled,
			Variables:      make(map[string]string, len(rawVar.Variables)),
		}
		for _, value := range rawVar.Variables {
			v.Variables[value.ID] = value.Value
		}
		exp.Variations = append(exp.Variations, v)
		exp.variationsByID[v.ID] = v
		exp.variationsByKey[v.Key] = v
	}

	exp.Audience = b.targeting(raw)
	return exp
}

// targeting prefers audienceConditions over the legacy audienceIds list.
func (b *builder) targeting(raw DatafileExperiment) ruleengine.Node {
	trimmed := bytes.TrimSpace(raw.AudienceConditions)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ruleengine.CompileAudienceIDs(raw.AudienceIDs)
	}

	var tree any
	err := json.Unmarshal(trimmed, &tree)
	var node ruleengine.Node
	if err == nil {
		node, err = ruleengine.CompileAudienceConditions(tree)
	}
	if err != nil {
		b.logger.Warn("audience conditions are invalid, experiment will never match",
			"experiment_key", raw.Key,
			"error", err,
		)
		return &ruleengine.Not{}
	}
	return node
}

func allocations(raw []DatafileTrafficAllocation) []TrafficAllocation {
	out := make([]TrafficAllocation, 0, len(raw))
	for _, a := range raw {
		out = append(out, TrafficAllocation{EntityID: a.EntityID, EndOfRange: a.EndOfRange})
	}
	return out
}

func featureFrom(raw DatafileFeature) *Feature {
	f := &Feature{
		ID:             raw.ID,
		Key:            raw.Key,
		RolloutID:      raw.RolloutID,
		ExperimentIDs:  append([]string(nil), raw.ExperimentIDs...),
		Variables:      make([]*Variable, 0, len(raw.Variables)),
		variablesByKey: make(map[string]*Variable, len(raw.Variables)),
	}
	for _, rawVar := range raw.Variables {
		v := &Variable{
			ID:           rawVar.ID,
			Key:          rawVar.Key,
			Type:         VariableType(rawVar.Type),
			DefaultValue: rawVar.DefaultValue,
		}
		if v.Type == VariableString && rawVar.SubType == string(VariableJSON) {
			v.Type = VariableJSON
		}
		f.Variables = append(f.Variables, v)
		f.variablesByKey[v.Key] = v
	}
	return f
}
