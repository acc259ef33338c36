// Package bucketing places users into traffic allocation ranges.
//
// Placement is a pure function of the bucketing id, the entity id and the
// allocation table: MurmurHash3 (x86, 32 bit, seed 1) of bucketingID+entityID,
// scaled to [0, 10000). The constants are shared with every other SDK reading
// the same datafile and must never change.
package bucketing

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/bifrost/internal/projectconfig"
)

const (
	// HashSeed is the MurmurHash3 seed.
	HashSeed uint32 = 1

	// MaxTrafficValue is the size of the bucket space.
	MaxTrafficValue = 10000

	maxHashValue = float64(math.MaxUint32) + 1
)

// BucketValue maps a bucketing key to [0, MaxTrafficValue).
// float64 arithmetic matches the JavaScript and Python implementations bit for bit.
func BucketValue(bucketingKey string) int {
	h := murmur3.New32WithSeed(HashSeed)
	_, _ = h.Write([]byte(bucketingKey))
	hash := h.Sum32()
	ratio := float64(hash) / maxHashValue
	return int(math.Floor(ratio * MaxTrafficValue))
}

// FindBucket returns the entity of the first range ending after value.
// An empty entity id counts as not bucketed.
func FindBucket(value int, allocations []projectconfig.TrafficAllocation) (string, bool) {
	for _, a := range allocations {
		if value < a.EndOfRange {
			if a.EntityID == "" {
				return "", false
			}
			return a.EntityID, true
		}
	}
	return "", false
}

// Result is the outcome of Bucket. Variation is nil when the user is not bucketed.
type Result struct {
	Variation *projectconfig.Variation
	Reason    string
}

// Bucketer places users into experiment variations.
// It keeps no state besides its logger and is safe for concurrent use.
type Bucketer struct {
	logger *slog.Logger
}

// New creates a Bucketer. If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Bucketer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bucketer{logger: logger}
}

// Bucket places the user into a variation of exp. When exp belongs to an exclusive
// group, the user must first land on exp in the group's own allocation table.
func (b *Bucketer) Bucket(bucketingID string, exp *projectconfig.Experiment, group *projectconfig.Group) Result {
	if group != nil && group.IsExclusive() {
		groupValue := BucketValue(bucketingID + group.ID)
		chosen, ok := FindBucket(groupValue, group.TrafficAllocation)
		if !ok {
			return Result{Reason: fmt.Sprintf("User with bucketing id %q is not in any experiment of group %s.", bucketingID, group.ID)}
		}
		if chosen != exp.ID {
			return Result{Reason: fmt.Sprintf("User with bucketing id %q is not in experiment %s of group %s.", bucketingID, exp.Key, group.ID)}
		}
		b.logger.Debug("user bucketed into group experiment",
			"group_id", group.ID,
			"experiment_key", exp.Key,
			"bucket_value", groupValue,
		)
	}

	value := BucketValue(bucketingID + exp.ID)
	entityID, ok := FindBucket(value, exp.TrafficAllocation)
	if !ok {
		return Result{Reason: fmt.Sprintf("User with bucketing id %q is not in any variation of experiment %s.", bucketingID, exp.Key)}
	}

	variation, ok := exp.VariationByID(entityID)
	if !ok {
		b.logger.Warn("traffic allocation references an unknown variation",
			"experiment_key", exp.Key,
			"variation_id", entityID,
		)
		return Result{Reason: fmt.Sprintf("Bucketed into invalid variation id %s of experiment %s.", entityID, exp.Key)}
	}

	return Result{
		Variation: variation,
		Reason:    fmt.Sprintf("User with bucketing id %q is in variation %s of experiment %s.", bucketingID, variation.Key, exp.Key),
	}
}
