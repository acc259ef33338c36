package observability

import (
	"context"
	"fmt"
	"time"
)

// Checker reports the health of one dependency. Implementations must be safe for
// concurrent use and must respect the context deadline.
type Checker interface {
	// Name identifies the component in the readiness body ("redis", "postgres", "datafile").
	Name() string
	// Check returns nil when the component is healthy.
	Check(ctx context.Context) error
}

// PingFunc verifies a connection.
type PingFunc func(ctx context.Context) error

// PingChecker is a Checker backed by a connection ping bounded by its own timeout,
// so a slow dependency cannot hold the whole probe.
type PingChecker struct {
	name    string
	timeout time.Duration
	ping    PingFunc
}

// NewPingChecker creates a checker named name. A nil ping always fails.
func NewPingChecker(name string, timeout time.Duration, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, timeout: timeout, ping: ping}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) error {
	if c.ping == nil {
		return fmt.Errorf("%s connection is nil", c.name)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.ping(ctx)
}
