package projectconfig

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Datafile is the decoded configuration document.
// It is only used while building a Config and is never retained.
type Datafile struct {
	Version           string               `json:"version" validate:"required"`
	Revision          string               `json:"revision"`
	AccountID         string               `json:"accountId"`
	ProjectID         string               `json:"projectId"`
	AnonymizeIP       bool                 `json:"anonymizeIP"`
	BotFiltering      *bool                `json:"botFiltering"`
	SendFlagDecisions bool                 `json:"sendFlagDecisions"`
	SDKKey            string               `json:"sdkKey"`
	EnvironmentKey    string               `json:"environmentKey"`
	Attributes        []DatafileAttribute  `json:"attributes" validate:"dive"`
	Audiences         []DatafileAudience   `json:"audiences" validate:"dive"`
	TypedAudiences    []DatafileAudience   `json:"typedAudiences" validate:"dive"`
	Experiments       []DatafileExperiment `json:"experiments" validate:"dive"`
	Groups            []DatafileGroup      `json:"groups" validate:"dive"`
	FeatureFlags      []DatafileFeature    `json:"featureFlags" validate:"dive"`
	Rollouts          []DatafileRollout    `json:"rollouts" validate:"dive"`
	Events            []DatafileEvent      `json:"events" validate:"dive"`
}

type DatafileAttribute struct {
	ID  string `json:"id" validate:"required"`
	Key string `json:"key" validate:"required"`
}

// DatafileAudience holds conditions either as a JSON encoded string (audiences)
// or as an already decoded tree (typedAudiences).
type DatafileAudience struct {
	ID         string          `json:"id" validate:"required"`
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"`
}

type DatafileExperiment struct {
	ID                 string                      `json:"id" validate:"required"`
	Key                string                      `json:"key" validate:"required"`
	Status             string                      `json:"status"`
	LayerID            string                      `json:"layerId"`
	AudienceIDs        []string                    `json:"audienceIds"`
	AudienceConditions json.RawMessage             `json:"audienceConditions"`
	TrafficAllocation  []DatafileTrafficAllocation `json:"trafficAllocation" validate:"dive"`
	Variations         []DatafileVariation         `json:"variations" validate:"dive"`
	ForcedVariations   map[string]string           `json:"forcedVariations"`
}

type DatafileTrafficAllocation struct {
	EntityID   string `json:"entityId"`
	EndOfRange int    `json:"endOfRange" validate:"min=0,max=10000"`
}

type DatafileVariation struct {
	ID             string                  `json:"id" validate:"required"`
	Key            string                  `json:"key" validate:"required"`
	FeatureEnabled bool                    `json:"featureEnabled"`
	Variables      []DatafileVariableValue `json:"variables" validate:"dive"`
}

type DatafileVariableValue struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value"`
}

type DatafileGroup struct {
	ID                string                      `json:"id" validate:"required"`
	Policy            string                      `json:"policy" validate:"omitempty,oneof=random overlapping"`
	TrafficAllocation []DatafileTrafficAllocation `json:"trafficAllocation" validate:"dive"`
	Experiments       []DatafileExperiment        `json:"experiments" validate:"dive"`
}

type DatafileFeature struct {
	ID            string             `json:"id" validate:"required"`
	Key           string             `json:"key" validate:"required"`
	RolloutID     string             `json:"rolloutId"`
	ExperimentIDs []string           `json:"experimentIds"`
	Variables     []DatafileVariable `json:"variables" validate:"dive"`
}

type DatafileVariable struct {
	ID           string `json:"id" validate:"required"`
	Key          string `json:"key" validate:"required"`
	Type         string `json:"type" validate:"oneof=boolean integer double string json"`
	SubType      string `json:"subType"`
	DefaultValue string `json:"defaultValue"`
}

type DatafileRollout struct {
	ID          string               `json:"id" validate:"required"`
	Experiments []DatafileExperiment `json:"experiments" validate:"dive"`
}

type DatafileEvent struct {
	ID            string   `json:"id" validate:"required"`
	Key           string   `json:"key" validate:"required"`
	ExperimentIDs []string `json:"experimentIds"`
}

// Validator checks the structure of a decoded datafile before it is indexed.
type Validator interface {
	Validate(doc *Datafile) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(doc *Datafile) error

func (f ValidatorFunc) Validate(doc *Datafile) error { return f(doc) }

// StructValidator validates a datafile with go-playground/validator struct tags
// plus the ordering rules tags cannot express.
type StructValidator struct {
	validate *validator.Validate
}

// NewStructValidator returns the default datafile validator.
func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New()}
}

// Validate implements Validator.
func (v *StructValidator) Validate(doc *Datafile) error {
	if err := v.validate.Struct(doc); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	for _, exp := range doc.Experiments {
		if err := validateAllocation("experiment "+exp.Key, exp.TrafficAllocation); err != nil {
			return err
		}
	}
	for _, group := range doc.Groups {
		if err := validateAllocation("group "+group.ID, group.TrafficAllocation); err != nil {
			return err
		}
		for _, exp := range group.Experiments {
			if err := validateAllocation("experiment "+exp.Key, exp.TrafficAllocation); err != nil {
				return err
			}
		}
	}
	for _, rollout := range doc.Rollouts {
		for _, rule := range rollout.Experiments {
			if err := validateAllocation("rollout rule "+rule.ID, rule.TrafficAllocation); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAllocation requires cumulative ranges that never decrease.
func validateAllocation(owner string, allocations []DatafileTrafficAllocation) error {
	prev := 0
	for i, a := range allocations {
		if a.EndOfRange < prev {
			return fmt.Errorf("%s: traffic allocation %d ends at %d, before previous range end %d", owner, i, a.EndOfRange, prev)
		}
		prev = a.EndOfRange
	}
	return nil
}
