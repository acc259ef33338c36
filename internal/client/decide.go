package client

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
)

// DecideOption tunes Decide, DecideAll and DecideForKeys.
type DecideOption string

const (
	DisableDecisionEvent     DecideOption = "DISABLE_DECISION_EVENT"
	EnabledFlagsOnly         DecideOption = "ENABLED_FLAGS_ONLY"
	IgnoreUserProfileService DecideOption = "IGNORE_USER_PROFILE_SERVICE"
	IncludeReasons           DecideOption = "INCLUDE_REASONS"
	ExcludeVariables         DecideOption = "EXCLUDE_VARIABLES"
)

// UserContext is the user a decision is made for.
type UserContext = decision.UserContext

// DecideResult is the full outcome of a flag decision.
type DecideResult struct {
	VariationKey string
	Enabled      bool
	Variables    map[string]any
	RuleKey      string
	FlagKey      string
	Reasons      []string
	UserContext  UserContext
}

type decideOptions struct {
	disableEvent      bool
	enabledOnly       bool
	ignoreUserProfile bool
	includeReasons    bool
	excludeVariables  bool
}

func (c *Client) resolveOptions(opts []DecideOption) decideOptions {
	var o decideOptions
	for _, opt := range slices.Concat(c.defaultDecideOptions, opts) {
		switch opt {
		case DisableDecisionEvent:
			o.disableEvent = true
		case EnabledFlagsOnly:
			o.enabledOnly = true
		case IgnoreUserProfileService:
			o.ignoreUserProfile = true
		case IncludeReasons:
			o.includeReasons = true
		case ExcludeVariables:
			o.excludeVariables = true
		default:
			c.logger.Warn("ignoring unknown decide option", slog.String("option", string(opt)))
		}
	}
	return o
}

// Decide decides flagKey for the user. Problems are reported in Reasons and leave
// the result disabled.
func (c *Client) Decide(ctx context.Context, user UserContext, flagKey string, opts ...DecideOption) DecideResult {
	o := c.resolveOptions(opts)
	result := DecideResult{FlagKey: flagKey, UserContext: user}

	cfg, err := c.prepareDecide(user)
	if err != nil {
		result.Reasons = []string{err.Error()}
		return result
	}
	feature, ok := cfg.FeatureByKey(flagKey)
	if !ok {
		result.Reasons = []string{fmt.Sprintf("No flag was found for key %q.", flagKey)}
		return result
	}
	return c.decide(ctx, cfg, feature, user, o)
}

// DecideAll decides every flag of the current config.
func (c *Client) DecideAll(ctx context.Context, user UserContext, opts ...DecideOption) map[string]DecideResult {
	cfg, err := c.prepareDecide(user)
	if err != nil {
		return map[string]DecideResult{}
	}
	keys := make([]string, 0, len(cfg.Features()))
	for _, feature := range cfg.Features() {
		keys = append(keys, feature.Key)
	}
	return c.decideForKeys(ctx, cfg, user, keys, c.resolveOptions(opts))
}

// DecideForKeys decides the given flags. Unknown keys are skipped.
func (c *Client) DecideForKeys(ctx context.Context, user UserContext, keys []string, opts ...DecideOption) map[string]DecideResult {
	cfg, err := c.prepareDecide(user)
	if err != nil {
		return map[string]DecideResult{}
	}
	return c.decideForKeys(ctx, cfg, user, keys, c.resolveOptions(opts))
}

func (c *Client) decideForKeys(ctx context.Context, cfg *projectconfig.Config, user UserContext, keys []string, o decideOptions) map[string]DecideResult {
	results := make(map[string]DecideResult, len(keys))
	for _, key := range keys {
		feature, ok := cfg.FeatureByKey(key)
		if !ok {
			c.logger.Warn("skipping unknown flag", slog.String("flag_key", key))
			continue
		}
		result := c.decide(ctx, cfg, feature, user, o)
		if o.enabledOnly && !result.Enabled {
			continue
		}
		results[key] = result
	}
	return results
}

func (c *Client) prepareDecide(user UserContext) (*projectconfig.Config, error) {
	if err := validateUser(user.ID, user.Attributes); err != nil {
		c.reject("decide", err)
		return nil, err
	}
	cfg, err := c.config()
	if err != nil {
		c.reject("decide", err)
		return nil, err
	}
	return cfg, nil
}

func (c *Client) decide(ctx context.Context, cfg *projectconfig.Config, feature *projectconfig.Feature, user UserContext, o decideOptions) DecideResult {
	d, reasons := c.decisions.GetDecisionForFeature(ctx, cfg, feature, user, decision.Options{
		IgnoreUserProfile: o.ignoreUserProfile,
		IncludeReasons:    o.includeReasons,
	})

	result := DecideResult{
		Enabled:     d.Enabled(),
		FlagKey:     feature.Key,
		Reasons:     reasons,
		UserContext: user,
	}
	if d.Variation != nil {
		result.VariationKey = d.Variation.Key
	}
	if d.Experiment != nil {
		result.RuleKey = d.Experiment.Key
	}
	if !o.excludeVariables {
		result.Variables = make(map[string]any, len(feature.Variables))
		for _, variable := range feature.Variables {
			result.Variables[variable.Key] = c.variableValue(variable, d.Variation, result.Enabled)
		}
	}

	dispatched := false
	if !o.disableEvent && (d.Source == decision.SourceFeatureTest || cfg.SendFlagDecisions()) {
		c.enqueue(event.NewImpression(cfg, d, user, feature.Key, string(d.Source), result.Enabled))
		dispatched = true
	}

	c.notifyDecision(DecisionTypeFlag, user, map[string]any{
		"flagKey":                 feature.Key,
		"enabled":                 result.Enabled,
		"variables":               result.Variables,
		"variationKey":            result.VariationKey,
		"ruleKey":                 result.RuleKey,
		"reasons":                 result.Reasons,
		"decisionEventDispatched": dispatched,
	})
	return result
}
