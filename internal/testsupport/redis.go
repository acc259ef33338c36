package testsupport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/profile"
)

// RedisContainer is an ephemeral Redis instance with a connected client.
type RedisContainer struct {
	Container testcontainers.Container
	Client    *redis.Client
	Endpoint  string
}

// Terminate closes the client and removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Client.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer runs a Redis 7-alpine container and connects to it
// the same way the application does.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := redisContainer.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis endpoint %q: %w", endpoint, err)
	}

	client, err := profile.NewRedisClient(ctx, &config.RedisConfig{
		Host:           host,
		Port:           port,
		PoolSize:       5,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PingMaxRetries: 5,
		PingBackoff:    time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return &RedisContainer{
		Container: redisContainer,
		Client:    client,
		Endpoint:  endpoint,
	}, nil
}
