package profile

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/bifrost/internal/observability"
)

const pingTimeout = time.Second

// NewHealthChecker reports whether the Redis profile backend answers a ping.
func NewHealthChecker(client *redis.Client) *observability.PingChecker {
	var ping observability.PingFunc
	if client != nil {
		ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return observability.NewPingChecker("redis", pingTimeout, ping)
}
