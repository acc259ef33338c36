package decision

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/bifrost/internal/observability"
)

// Bucket is a remembered bucketing result.
type Bucket struct {
	VariationID string `json:"variation_id"`
}

// UserProfile is the sticky bucketing memory of one user: experiment id -> bucket.
type UserProfile struct {
	UserID              string            `json:"user_id"`
	ExperimentBucketMap map[string]Bucket `json:"experiment_bucket_map"`
}

// ProfileStore persists user profiles. Implementations must be safe for concurrent use.
// A nil profile with a nil error means the user has no profile yet.
type ProfileStore interface {
	Lookup(ctx context.Context, userID string) (*UserProfile, error)
	Save(ctx context.Context, profile *UserProfile) error
}

const profileLockStripes = 64

// profileLocks serializes the lookup-to-save window of decisions for the same user.
type profileLocks struct {
	stripes [profileLockStripes]sync.Mutex
}

func (l *profileLocks) forUser(userID string) *sync.Mutex {
	h := murmur3.New32()
	_, _ = h.Write([]byte(userID))
	return &l.stripes[h.Sum32()%profileLockStripes]
}

// profileTracker loads a profile at most once per decision and saves it at most once.
// The user's stripe is held from load until save.
type profileTracker struct {
	store   ProfileStore
	locks   *profileLocks
	userID  string
	profile *UserProfile
	held    *sync.Mutex
	loaded  bool
	failed  bool
	dirty   bool
	logger  *slog.Logger
}

func newProfileTracker(store ProfileStore, locks *profileLocks, userID string, logger *slog.Logger) *profileTracker {
	return &profileTracker{store: store, locks: locks, userID: userID, logger: logger}
}

func (t *profileTracker) load(ctx context.Context, reasons *Reasons) {
	if t.loaded {
		return
	}
	t.loaded = true

	t.held = t.locks.forUser(t.userID)
	t.held.Lock()

	profile, err := t.store.Lookup(ctx, t.userID)
	if err != nil {
		// Sticky bucketing is off for the rest of this decision.
		observability.ProfileStoreErrorsTotal.WithLabelValues("lookup").Inc()
		reasons.Errorf("Error looking up user profile of user %q: %v.", t.userID, err)
		t.failed = true
		return
	}
	if profile == nil {
		profile = &UserProfile{UserID: t.userID}
	}
	if profile.ExperimentBucketMap == nil {
		profile.ExperimentBucketMap = make(map[string]Bucket)
	}
	t.profile = profile
}

func (t *profileTracker) variationID(experimentID string) (string, bool) {
	if t.failed {
		return "", false
	}
	bucket, ok := t.profile.ExperimentBucketMap[experimentID]
	if !ok || bucket.VariationID == "" {
		return "", false
	}
	return bucket.VariationID, true
}

func (t *profileTracker) record(experimentID, variationID string) {
	if t.failed {
		return
	}
	if current, ok := t.profile.ExperimentBucketMap[experimentID]; ok && current.VariationID == variationID {
		return
	}
	t.profile.ExperimentBucketMap[experimentID] = Bucket{VariationID: variationID}
	t.dirty = true
}

// save writes the profile back when it changed and releases the user's stripe.
func (t *profileTracker) save(ctx context.Context) {
	if t.held != nil {
		defer func() {
			t.held.Unlock()
			t.held = nil
		}()
	}
	if !t.dirty || t.failed {
		return
	}
	t.dirty = false

	if err := t.store.Save(ctx, t.profile); err != nil {
		observability.ProfileStoreErrorsTotal.WithLabelValues("save").Inc()
		t.logger.Warn("failed to save user profile",
			"user_id", t.userID,
			"error", err,
		)
		return
	}
	t.logger.Debug("saved user profile", "user_id", t.userID)
}
