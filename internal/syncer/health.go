package syncer

import (
	"context"
)

// HealthChecker reports ready once a datafile has been loaded.
type HealthChecker struct {
	svc *Service
}

func NewHealthChecker(svc *Service) *HealthChecker {
	return &HealthChecker{svc: svc}
}

func (h *HealthChecker) Name() string {
	return "datafile"
}

func (h *HealthChecker) Check(_ context.Context) error {
	if h.svc.Get() == nil {
		return ErrNotReady
	}
	return nil
}
