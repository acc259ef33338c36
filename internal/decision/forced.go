package decision

import (
	"fmt"
	"sync"

	"github.com/rafaeljc/bifrost/internal/projectconfig"
)

type forcedKey struct {
	experimentID string
	userID       string
}

// ForcedVariations holds variations set at runtime by the caller. They take
// precedence over every other step except the running status check.
// The map belongs to one Service instance and is safe for concurrent use.
type ForcedVariations struct {
	mu sync.RWMutex
	m  map[forcedKey]string // variation key
}

// NewForcedVariations returns an empty map.
func NewForcedVariations() *ForcedVariations {
	return &ForcedVariations{m: make(map[forcedKey]string)}
}

// Set forces userID into variationKey of the experiment. An empty variationKey clears the entry.
func (f *ForcedVariations) Set(cfg *projectconfig.Config, experimentKey, userID, variationKey string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	exp, ok := cfg.ExperimentByKey(experimentKey)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExperiment, experimentKey)
	}

	key := forcedKey{experimentID: exp.ID, userID: userID}

	if variationKey == "" {
		f.mu.Lock()
		delete(f.m, key)
		f.mu.Unlock()
		return nil
	}

	if _, ok := exp.VariationByKey(variationKey); !ok {
		return fmt.Errorf("%w: %q in experiment %q", ErrUnknownVariation, variationKey, experimentKey)
	}

	f.mu.Lock()
	f.m[key] = variationKey
	f.mu.Unlock()
	return nil
}

// Get returns the variation forced for userID in the experiment.
func (f *ForcedVariations) Get(cfg *projectconfig.Config, experimentKey, userID string) (*projectconfig.Variation, bool) {
	exp, ok := cfg.ExperimentByKey(experimentKey)
	if !ok {
		return nil, false
	}
	return f.lookup(exp, userID)
}

// lookup resolves the stored key against the experiment of the current config.
// A key that no longer exists is ignored.
func (f *ForcedVariations) lookup(exp *projectconfig.Experiment, userID string) (*projectconfig.Variation, bool) {
	f.mu.RLock()
	variationKey, ok := f.m[forcedKey{experimentID: exp.ID, userID: userID}]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return exp.VariationByKey(variationKey)
}
