package event

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
)

const (
	activateEventKey = "campaign_activated"

	// Reserved attribute prefix; such attributes are sent even when undeclared.
	reservedAttributePrefix = "$opt_"
	botFilteringAttribute   = "$opt_bot_filtering"
	customAttributeType     = "custom"

	revenueTag = "revenue"
	valueTag   = "value"
)

// NewContext captures the dispatch context of cfg.
func NewContext(cfg *projectconfig.Config) Context {
	ctx := Context{
		AccountID:   cfg.AccountID(),
		ProjectID:   cfg.ProjectID(),
		Revision:    cfg.Revision(),
		AnonymizeIP: cfg.AnonymizeIP(),
	}
	if enabled, ok := cfg.BotFiltering(); ok {
		ctx.BotFiltering = &enabled
	}
	return ctx
}

// NewImpression builds the impression of a decision. ruleType is the decision source
// ("experiment", "feature-test" or "rollout"). A decision without experiment yields an
// impression with empty ids, which is only sent when the datafile asks for flag decisions.
func NewImpression(cfg *projectconfig.Config, d decision.Decision, user decision.UserContext, flagKey, ruleType string, enabled bool) *Impression {
	imp := &Impression{
		UserEvent: newUserEvent(cfg, user),
		FlagKey:   flagKey,
		RuleType:  ruleType,
		Enabled:   enabled,
	}
	if d.Experiment != nil {
		imp.LayerID = d.Experiment.LayerID
		imp.ExperimentID = d.Experiment.ID
		imp.ExperimentKey = d.Experiment.Key
	}
	if d.Variation != nil {
		imp.VariationID = d.Variation.ID
		imp.VariationKey = d.Variation.Key
	}
	return imp
}

// NewConversion builds the conversion of eventKey. The "revenue" tag is extracted
// when it holds an integer and the "value" tag when it holds a finite number; both
// stay in Tags as well.
func NewConversion(cfg *projectconfig.Config, eventKey string, user decision.UserContext, tags map[string]any) (*Conversion, error) {
	ev, ok := cfg.EventByKey(eventKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventKey)
	}

	conv := &Conversion{
		UserEvent: newUserEvent(cfg, user),
		EventID:   ev.ID,
		EventKey:  ev.Key,
	}
	if len(tags) > 0 {
		conv.Tags = maps.Clone(tags)
		conv.Revenue = revenue(tags[revenueTag])
		conv.Value = numericValue(tags[valueTag])
	}
	return conv, nil
}

func newUserEvent(cfg *projectconfig.Config, user decision.UserContext) UserEvent {
	return UserEvent{
		Context:    NewContext(cfg),
		VisitorID:  user.ID,
		Attributes: visitorAttributes(cfg, user.Attributes),
		UUID:       uuid.NewString(),
		Timestamp:  time.Now(),
	}
}

// visitorAttributes keeps declared attributes and reserved ones, sorted by key.
// Values that are not strings, booleans or finite numbers are skipped.
func visitorAttributes(cfg *projectconfig.Config, attrs map[string]any) []VisitorAttribute {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []VisitorAttribute
	for _, key := range keys {
		value := attrs[key]
		if !sendable(value) {
			continue
		}
		entityID := ""
		if attr, ok := cfg.AttributeByKey(key); ok {
			entityID = attr.ID
		} else if strings.HasPrefix(key, reservedAttributePrefix) {
			entityID = key
		} else {
			continue
		}
		out = append(out, VisitorAttribute{
			EntityID: entityID,
			Key:      key,
			Type:     customAttributeType,
			Value:    value,
		})
	}
	return out
}

func sendable(value any) bool {
	switch v := value.(type) {
	case string, bool:
		return true
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func revenue(tag any) *int64 {
	var r int64
	switch v := tag.(type) {
	case int:
		r = int64(v)
	case int32:
		r = int64(v)
	case int64:
		r = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > 1<<53 {
			return nil
		}
		r = int64(v)
	default:
		return nil
	}
	return &r
}

func numericValue(tag any) *float64 {
	var f float64
	switch v := tag.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
