package decision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/bucketing"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
	"github.com/rafaeljc/bifrost/internal/ruleengine"
)

// Service runs the decision state machine. It is safe for concurrent use.
type Service struct {
	engine   *ruleengine.Engine
	bucketer *bucketing.Bucketer
	forced   *ForcedVariations
	profiles ProfileStore
	locks    *profileLocks
	logger   *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProfileStore enables sticky bucketing.
func WithProfileStore(store ProfileStore) Option {
	return func(s *Service) { s.profiles = store }
}

// NewService creates a Service with its own forced variation map.
func NewService(opts ...Option) *Service {
	s := &Service{
		forced: NewForcedVariations(),
		locks:  &profileLocks{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = ruleengine.New(s.logger)
	s.bucketer = bucketing.New(s.logger)
	return s
}

// ForcedVariations returns the runtime override map owned by this Service.
func (s *Service) ForcedVariations() *ForcedVariations {
	return s.forced
}

// GetVariation decides the variation of an experiment for the user.
// It returns nil when the user gets no variation, together with the decision reasons.
func (s *Service) GetVariation(ctx context.Context, cfg *projectconfig.Config, exp *projectconfig.Experiment, user UserContext, opts Options) (*projectconfig.Variation, []string) {
	reasons := newReasons(opts.IncludeReasons, s.logger)
	tracker := s.tracker(user, opts)

	variation := s.getVariation(ctx, cfg, exp, user, tracker, reasons)
	if tracker != nil {
		tracker.save(ctx)
	}

	source := SourceExperiment
	if variation == nil {
		source = SourceNone
	}
	observability.DecisionsTotal.WithLabelValues(string(source)).Inc()

	return variation, reasons.Messages()
}

// GetDecisionForFeature evaluates the feature tests in declared order and then the rollout.
// A user bucketed nowhere gets {nil, nil, rollout}, meaning the feature is disabled.
func (s *Service) GetDecisionForFeature(ctx context.Context, cfg *projectconfig.Config, feature *projectconfig.Feature, user UserContext, opts Options) (Decision, []string) {
	reasons := newReasons(opts.IncludeReasons, s.logger)
	tracker := s.tracker(user, opts)

	decision, ok := s.featureTestDecision(ctx, cfg, feature, user, tracker, reasons)
	if tracker != nil {
		tracker.save(ctx)
	}
	if !ok {
		decision = s.rolloutDecision(cfg, feature, user, reasons)
	}

	source := decision.Source
	if decision.Variation == nil {
		source = SourceNone
	}
	observability.DecisionsTotal.WithLabelValues(string(source)).Inc()

	return decision, reasons.Messages()
}

func (s *Service) tracker(user UserContext, opts Options) *profileTracker {
	if s.profiles == nil || opts.IgnoreUserProfile {
		return nil
	}
	return newProfileTracker(s.profiles, s.locks, user.ID, s.logger)
}

func (s *Service) getVariation(ctx context.Context, cfg *projectconfig.Config, exp *projectconfig.Experiment, user UserContext, tracker *profileTracker, reasons *Reasons) *projectconfig.Variation {
	if !exp.IsRunning() {
		reasons.Infof("Experiment %q is not running.", exp.Key)
		return nil
	}

	if v, ok := s.forced.lookup(exp, user.ID); ok {
		reasons.Infof("Variation %q is mapped to experiment %q and user %q in the forced variation map.", v.Key, exp.Key, user.ID)
		return v
	}

	if v := whitelisted(exp, user.ID, reasons); v != nil {
		return v
	}

	if !s.audienceMatch(cfg, exp, user, reasons, fmt.Sprintf("experiment %q", exp.Key)) {
		reasons.Infof("User %q does not meet conditions to be in experiment %q.", user.ID, exp.Key)
		return nil
	}

	if tracker != nil {
		tracker.load(ctx, reasons)
		if variationID, ok := tracker.variationID(exp.ID); ok {
			if v, ok := exp.VariationByID(variationID); ok {
				reasons.Infof("Returning previously activated variation %q of experiment %q for user %q from user profile.", v.Key, exp.Key, user.ID)
				return v
			}
			reasons.Infof("User %q was previously bucketed into variation id %q of experiment %q, which is no longer in the datafile.", user.ID, variationID, exp.Key)
		}
	}

	var group *projectconfig.Group
	if exp.GroupID != "" {
		if g, ok := cfg.GroupByID(exp.GroupID); ok {
			group = g
		} else {
			reasons.Errorf("Group %q of experiment %q is not in the datafile.", exp.GroupID, exp.Key)
		}
	}

	result := s.bucketer.Bucket(s.bucketingID(user, reasons), exp, group)
	reasons.Infof("%s", result.Reason)
	if result.Variation == nil {
		return nil
	}

	if tracker != nil {
		tracker.record(exp.ID, result.Variation.ID)
	}
	return result.Variation
}

func whitelisted(exp *projectconfig.Experiment, userID string, reasons *Reasons) *projectconfig.Variation {
	variationKey, ok := exp.Whitelist[userID]
	if !ok {
		return nil
	}
	v, ok := exp.VariationByKey(variationKey)
	if !ok {
		reasons.Infof("User %q is whitelisted into variation %q of experiment %q, which is not in the datafile.", userID, variationKey, exp.Key)
		return nil
	}
	reasons.Infof("User %q is forced in variation %q of experiment %q.", userID, variationKey, exp.Key)
	return v
}

func (s *Service) audienceMatch(cfg *projectconfig.Config, exp *projectconfig.Experiment, user UserContext, reasons *Reasons, subject string) bool {
	result := s.engine.Match(exp.Audience, cfg, user.Attributes)
	observability.AudienceEvaluationsTotal.WithLabelValues(result.String()).Inc()
	reasons.Infof("Audiences for %s collectively evaluated to %s.", subject, result)
	return result.Bool()
}

// bucketingID returns the $opt_bucketing_id attribute when it is a string, else the user id.
func (s *Service) bucketingID(user UserContext, reasons *Reasons) string {
	raw, ok := user.Attributes[BucketingIDAttribute]
	if !ok || raw == nil {
		return user.ID
	}
	id, ok := raw.(string)
	if !ok {
		reasons.Errorf("Bucketing ID attribute is not a string. Defaulted to user id %q.", user.ID)
		return user.ID
	}
	return id
}

func (s *Service) featureTestDecision(ctx context.Context, cfg *projectconfig.Config, feature *projectconfig.Feature, user UserContext, tracker *profileTracker, reasons *Reasons) (Decision, bool) {
	for _, expID := range feature.ExperimentIDs {
		exp, ok := cfg.ExperimentByID(expID)
		if !ok {
			reasons.Errorf("Experiment id %q of feature %q is not in the datafile.", expID, feature.Key)
			continue
		}
		if v := s.getVariation(ctx, cfg, exp, user, tracker, reasons); v != nil {
			reasons.Infof("User %q is in variation %q of experiment %q of feature %q.", user.ID, v.Key, exp.Key, feature.Key)
			return Decision{Experiment: exp, Variation: v, Source: SourceFeatureTest}, true
		}
	}
	if len(feature.ExperimentIDs) > 0 {
		reasons.Infof("User %q is not in any experiment of feature %q.", user.ID, feature.Key)
	}
	return Decision{}, false
}

// rolloutDecision walks the targeted rules in order. A rule whose audience fails is
// skipped; a rule whose audience matches but does not bucket the user sends the user
// straight to the last ("everyone else") rule.
func (s *Service) rolloutDecision(cfg *projectconfig.Config, feature *projectconfig.Feature, user UserContext, reasons *Reasons) Decision {
	none := Decision{Source: SourceRollout}

	if feature.RolloutID == "" {
		reasons.Infof("Feature %q is not used in a rollout.", feature.Key)
		return none
	}
	rollout, ok := cfg.RolloutByID(feature.RolloutID)
	if !ok {
		reasons.Errorf("Rollout %q of feature %q is not in the datafile.", feature.RolloutID, feature.Key)
		return none
	}
	if len(rollout.Rules) == 0 {
		reasons.Infof("Rollout %q of feature %q has no rules.", rollout.ID, feature.Key)
		return none
	}

	bucketingID := s.bucketingID(user, reasons)
	last := len(rollout.Rules) - 1

	for i, rule := range rollout.Rules[:last] {
		ruleName := ruleLabel(i)
		if !s.audienceMatch(cfg, rule, user, reasons, ruleName) {
			reasons.Infof("User %q does not meet conditions for %s.", user.ID, ruleName)
			continue
		}
		reasons.Infof("User %q meets conditions for %s.", user.ID, ruleName)

		result := s.bucketer.Bucket(bucketingID, rule, nil)
		if result.Variation != nil {
			reasons.Infof("User %q is in the traffic group of %s.", user.ID, ruleName)
			return Decision{Experiment: rule, Variation: result.Variation, Source: SourceRollout}
		}
		reasons.Infof("User %q is not in the traffic group of %s. Checking Everyone Else rule now.", user.ID, ruleName)
		break
	}

	everyoneElse := rollout.Rules[last]
	if !s.audienceMatch(cfg, everyoneElse, user, reasons, "rule Everyone Else") {
		reasons.Infof("User %q does not meet conditions for the Everyone Else rule.", user.ID)
		return none
	}

	result := s.bucketer.Bucket(bucketingID, everyoneElse, nil)
	if result.Variation == nil {
		reasons.Infof("User %q is not in the traffic group of the Everyone Else rule.", user.ID)
		return none
	}
	reasons.Infof("User %q is in the traffic group of the Everyone Else rule.", user.ID)
	return Decision{Experiment: everyoneElse, Variation: result.Variation, Source: SourceRollout}
}

func ruleLabel(index int) string {
	return fmt.Sprintf("rule %d", index+1)
}
