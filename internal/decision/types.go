// Package decision decides which variation a user receives.
//
// For an experiment the steps run in strict order and the first decisive one wins:
// status, forced variation, whitelist, audience, sticky lookup, bucketing, persistence.
// Feature decisions evaluate the feature tests first and then walk the rollout rules.
// Nothing in this package returns an error to the caller of a decision: problems
// resolve to "no decision" and are reported as reasons and logs.
package decision

import (
	"fmt"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/projectconfig"
)

// BucketingIDAttribute overrides the user id as bucketing key when it holds a string.
const BucketingIDAttribute = "$opt_bucketing_id"

// Source identifies what produced a decision. Values match the rule types
// reported in impression metadata.
type Source string

const (
	SourceNone        Source = "none"
	SourceExperiment  Source = "experiment"
	SourceFeatureTest Source = "feature-test"
	SourceRollout     Source = "rollout"
)

// UserContext is the user a decision is made for.
type UserContext struct {
	ID         string
	Attributes map[string]any
}

// Options tune a single decision.
type Options struct {
	// IgnoreUserProfile skips sticky bucketing lookup and persistence.
	IgnoreUserProfile bool
	// IncludeReasons keeps informational reasons. Errors are always kept.
	IncludeReasons bool
}

// Decision is the outcome of a feature decision. Experiment and Variation are nil
// when no rule bucketed the user.
type Decision struct {
	Experiment *projectconfig.Experiment
	Variation  *projectconfig.Variation
	Source     Source
}

// Enabled reports whether the decided variation turns the feature on.
func (d Decision) Enabled() bool {
	return d.Variation != nil && d.Variation.FeatureEnabled
}

// Reasons collects the human readable trace of a decision.
type Reasons struct {
	include  bool
	messages []string
	logger   *slog.Logger
}

func newReasons(include bool, logger *slog.Logger) *Reasons {
	return &Reasons{include: include, logger: logger}
}

// Infof records an informational step. It is kept only when reasons were requested.
func (r *Reasons) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Debug(msg)
	if r.include {
		r.messages = append(r.messages, msg)
	}
}

// Errorf records a problem. Problems are always reported.
func (r *Reasons) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(msg)
	r.messages = append(r.messages, msg)
}

// Messages returns the recorded reasons in order.
func (r *Reasons) Messages() []string {
	return r.messages
}
