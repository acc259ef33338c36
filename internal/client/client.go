// Package client is the surface callers use: typed decisions, feature variables,
// conversion tracking and forced variations over the current project config.
//
// Invalid input and a missing config never panic. They are logged and the call
// returns a safe value ("" / false / nil) together with the error.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/notification"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// Client makes decisions against the config currently held by its Holder.
// It is safe for concurrent use.
type Client struct {
	holder    *projectconfig.Holder
	decisions *decision.Service
	profiles  decision.ProfileStore
	events    EventSink
	notifier  *notification.Center
	logger    *slog.Logger

	defaultDecideOptions []DecideOption
}

// New creates a Client reading configs from holder.
// It panics if holder is nil.
func New(holder *projectconfig.Holder, opts ...Option) *Client {
	validation.AssertNotNil(holder, "project config holder")

	c := &Client{
		holder: holder,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = notification.NewCenter(c.logger)
	}

	serviceOpts := []decision.Option{decision.WithLogger(c.logger)}
	if c.profiles != nil {
		serviceOpts = append(serviceOpts, decision.WithProfileStore(c.profiles))
	}
	c.decisions = decision.NewService(serviceOpts...)

	if observed, ok := c.events.(interface{ OnDispatch(event.DispatchListener) }); ok {
		observed.OnDispatch(func(batch *event.Batch, err error) {
			c.notifier.Send(notification.TypeLogEvent, LogEventNotification{Batch: batch, Err: err})
		})
	}

	return c
}

// Notifications returns the notification center of the client.
func (c *Client) Notifications() *notification.Center {
	return c.notifier
}

// config returns the current snapshot. Every public call loads it once and uses
// that snapshot until it returns.
func (c *Client) config() (*projectconfig.Config, error) {
	cfg := c.holder.Load()
	if cfg == nil {
		return nil, ErrConfigNotReady
	}
	return cfg, nil
}

func (c *Client) reject(op string, err error) {
	c.logger.Warn("rejected call", slog.String("operation", op), slog.Any("error", err))
}

// Activate decides the variation of an experiment and records an impression.
func (c *Client) Activate(ctx context.Context, experimentKey, userID string, attrs map[string]any) (string, error) {
	cfg, exp, user, err := c.prepareExperiment("activate", experimentKey, userID, attrs)
	if err != nil {
		return "", err
	}

	variation, _ := c.decisions.GetVariation(ctx, cfg, exp, user, decision.Options{})
	if variation == nil {
		c.logger.Debug("not activating user",
			slog.String("experiment_key", exp.Key),
			slog.String("user_id", user.ID),
		)
		return "", nil
	}

	d := decision.Decision{Experiment: exp, Variation: variation, Source: decision.SourceExperiment}
	c.enqueue(event.NewImpression(cfg, d, user, "", string(decision.SourceExperiment), variation.FeatureEnabled))
	c.notifyDecision(DecisionTypeABTest, user, map[string]any{
		"experimentKey": exp.Key,
		"variationKey":  variation.Key,
	})
	return variation.Key, nil
}

// GetVariation decides the variation of an experiment without recording an impression.
func (c *Client) GetVariation(ctx context.Context, experimentKey, userID string, attrs map[string]any) (string, error) {
	cfg, exp, user, err := c.prepareExperiment("get_variation", experimentKey, userID, attrs)
	if err != nil {
		return "", err
	}

	variation, _ := c.decisions.GetVariation(ctx, cfg, exp, user, decision.Options{})
	key := ""
	if variation != nil {
		key = variation.Key
	}
	c.notifyDecision(DecisionTypeABTest, user, map[string]any{
		"experimentKey": exp.Key,
		"variationKey":  key,
	})
	return key, nil
}

func (c *Client) prepareExperiment(op, experimentKey, userID string, attrs map[string]any) (*projectconfig.Config, *projectconfig.Experiment, decision.UserContext, error) {
	user := decision.UserContext{ID: userID, Attributes: attrs}
	if err := validateKey("experiment_key", experimentKey); err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	if err := validateUser(userID, attrs); err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	cfg, err := c.config()
	if err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	exp, ok := cfg.ExperimentByKey(experimentKey)
	if !ok {
		err := fmt.Errorf("%w: %q", decision.ErrUnknownExperiment, experimentKey)
		c.reject(op, err)
		return nil, nil, user, err
	}
	return cfg, exp, user, nil
}

// IsFeatureEnabled reports whether the feature is on for the user. Feature test
// decisions record an impression; rollout decisions only when the datafile asks
// for flag decisions.
func (c *Client) IsFeatureEnabled(ctx context.Context, flagKey, userID string, attrs map[string]any) (bool, error) {
	cfg, feature, user, err := c.prepareFeature("is_feature_enabled", flagKey, userID, attrs)
	if err != nil {
		return false, err
	}
	return c.featureEnabled(ctx, cfg, feature, user), nil
}

func (c *Client) featureEnabled(ctx context.Context, cfg *projectconfig.Config, feature *projectconfig.Feature, user decision.UserContext) bool {
	d, _ := c.decisions.GetDecisionForFeature(ctx, cfg, feature, user, decision.Options{})
	enabled := d.Enabled()

	if d.Source == decision.SourceFeatureTest || (d.Variation != nil && cfg.SendFlagDecisions()) {
		c.enqueue(event.NewImpression(cfg, d, user, feature.Key, string(d.Source), enabled))
	}

	info := map[string]any{
		"featureKey":     feature.Key,
		"featureEnabled": enabled,
		"source":         string(d.Source),
	}
	if d.Source == decision.SourceFeatureTest {
		info["sourceInfo"] = map[string]string{
			"experimentKey": d.Experiment.Key,
			"variationKey":  d.Variation.Key,
		}
	}
	c.notifyDecision(DecisionTypeFeature, user, info)
	return enabled
}

// GetEnabledFeatures returns the keys of the features enabled for the user, in
// datafile order.
func (c *Client) GetEnabledFeatures(ctx context.Context, userID string, attrs map[string]any) ([]string, error) {
	user := decision.UserContext{ID: userID, Attributes: attrs}
	if err := validateUser(userID, attrs); err != nil {
		c.reject("get_enabled_features", err)
		return nil, err
	}
	cfg, err := c.config()
	if err != nil {
		c.reject("get_enabled_features", err)
		return nil, err
	}

	var enabled []string
	for _, feature := range cfg.Features() {
		if c.featureEnabled(ctx, cfg, feature, user) {
			enabled = append(enabled, feature.Key)
		}
	}
	return enabled, nil
}

// GetFeatureVariable returns the value of a feature variable typed by its declared
// type: bool, int, float64, string or a decoded JSON value. The variation value is
// used when the feature is enabled for the user, the default otherwise or when the
// variation value cannot be cast.
func (c *Client) GetFeatureVariable(ctx context.Context, flagKey, variableKey, userID string, attrs map[string]any) (any, error) {
	cfg, feature, user, err := c.prepareFeature("get_feature_variable", flagKey, userID, attrs)
	if err != nil {
		return nil, err
	}
	variable, ok := feature.VariableByKey(variableKey)
	if !ok {
		err := fmt.Errorf("%w: %q in feature %q", ErrUnknownVariable, variableKey, flagKey)
		c.reject("get_feature_variable", err)
		return nil, err
	}

	d, _ := c.decisions.GetDecisionForFeature(ctx, cfg, feature, user, decision.Options{})
	enabled := d.Enabled()
	value := c.variableValue(variable, d.Variation, enabled)

	c.notifyDecision(DecisionTypeFeatureVariable, user, map[string]any{
		"featureKey":     feature.Key,
		"featureEnabled": enabled,
		"source":         string(d.Source),
		"variableKey":    variable.Key,
		"variableType":   string(variable.Type),
		"variableValue":  value,
	})
	return value, nil
}

func (c *Client) variableValue(variable *projectconfig.Variable, variation *projectconfig.Variation, enabled bool) any {
	if enabled && variation != nil {
		if raw, ok := variation.Variables[variable.ID]; ok {
			if value, ok := projectconfig.Cast(raw, variable.Type); ok {
				return value
			}
			c.logger.Warn("variable value does not match its type, using default",
				slog.String("variable_key", variable.Key),
				slog.String("variable_type", string(variable.Type)),
				slog.String("value", raw),
			)
		}
	}
	value, ok := projectconfig.Cast(variable.DefaultValue, variable.Type)
	if !ok {
		c.logger.Error("variable default does not match its type",
			slog.String("variable_key", variable.Key),
			slog.String("variable_type", string(variable.Type)),
		)
		return nil
	}
	return value
}

func (c *Client) prepareFeature(op, flagKey, userID string, attrs map[string]any) (*projectconfig.Config, *projectconfig.Feature, decision.UserContext, error) {
	user := decision.UserContext{ID: userID, Attributes: attrs}
	if err := validateKey("flag_key", flagKey); err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	if err := validateUser(userID, attrs); err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	cfg, err := c.config()
	if err != nil {
		c.reject(op, err)
		return nil, nil, user, err
	}
	feature, ok := cfg.FeatureByKey(flagKey)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownFeature, flagKey)
		c.reject(op, err)
		return nil, nil, user, err
	}
	return cfg, feature, user, nil
}

// Track records a conversion of eventKey for the user.
func (c *Client) Track(ctx context.Context, eventKey, userID string, attrs, tags map[string]any) error {
	if err := validateKey("event_key", eventKey); err != nil {
		c.reject("track", err)
		return err
	}
	if err := validateUser(userID, attrs); err != nil {
		c.reject("track", err)
		return err
	}
	cfg, err := c.config()
	if err != nil {
		c.reject("track", err)
		return err
	}

	user := decision.UserContext{ID: userID, Attributes: attrs}
	conv, err := event.NewConversion(cfg, eventKey, user, tags)
	if err != nil {
		c.reject("track", err)
		return err
	}
	c.enqueue(conv)

	c.notifier.Send(notification.TypeTrack, TrackNotification{
		EventKey:   eventKey,
		UserID:     userID,
		Attributes: attrs,
		Tags:       conv.Tags,
	})
	return nil
}

// SetForcedVariation forces the user into variationKey of the experiment for the
// lifetime of the client. An empty variationKey clears the override.
func (c *Client) SetForcedVariation(experimentKey, userID, variationKey string) error {
	cfg, err := c.config()
	if err != nil {
		c.reject("set_forced_variation", err)
		return err
	}
	if err := c.decisions.ForcedVariations().Set(cfg, experimentKey, userID, variationKey); err != nil {
		c.reject("set_forced_variation", err)
		return err
	}
	return nil
}

// GetForcedVariation returns the forced variation key, or "" when none is set.
func (c *Client) GetForcedVariation(experimentKey, userID string) (string, error) {
	cfg, err := c.config()
	if err != nil {
		return "", err
	}
	if _, ok := cfg.ExperimentByKey(experimentKey); !ok {
		return "", fmt.Errorf("%w: %q", decision.ErrUnknownExperiment, experimentKey)
	}
	v, ok := c.decisions.ForcedVariations().Get(cfg, experimentKey, userID)
	if !ok {
		return "", nil
	}
	return v.Key, nil
}

func (c *Client) enqueue(r event.Record) {
	if c.events == nil {
		return
	}
	if err := c.events.Enqueue(r); err != nil {
		c.logger.Warn("event not enqueued",
			slog.String("kind", r.Kind()),
			slog.Any("error", err),
		)
	}
}

func (c *Client) notifyDecision(kind string, user decision.UserContext, info map[string]any) {
	c.notifier.Send(notification.TypeDecision, DecisionNotification{
		Type:       kind,
		UserID:     user.ID,
		Attributes: user.Attributes,
		Info:       info,
	})
}
