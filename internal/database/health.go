package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/bifrost/internal/observability"
)

const pingTimeout = 2 * time.Second

// NewHealthChecker reports whether the event store database answers a ping.
func NewHealthChecker(pool *pgxpool.Pool) *observability.PingChecker {
	var ping observability.PingFunc
	if pool != nil {
		ping = pool.Ping
	}
	return observability.NewPingChecker("postgres", pingTimeout, ping)
}
