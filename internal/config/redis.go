package config

import (
	"fmt"
	"strings"
	"time"
)

// RedisConfig contains the connection settings of the Redis profile store.
type RedisConfig struct {
	// URL takes precedence over Host/Port when set.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`

	TLSEnabled bool `envconfig:"TLS_ENABLED" default:"false"`

	PoolSize     int           `envconfig:"POOL_SIZE" default:"20" validate:"min=1"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2" validate:"min=0"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"500ms"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"500ms"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"1" validate:"min=0"`

	// Startup connectivity check.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"1s"`
}

// Address returns the Redis address in host:port format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Validate checks if the Redis configuration is valid.
func (c *RedisConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validateRedisURL(c.URL); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	} else {
		if err := validateHost(c.Host, "redis"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "redis"); err != nil {
			return err
		}
		if environment == EnvironmentProduction {
			if c.Password == "" {
				return fmt.Errorf("redis password is required in production environment")
			}
			if err := validatePasswordStrength(c.Password, "redis", environment); err != nil {
				return err
			}
			if !c.TLSEnabled {
				return fmt.Errorf("redis TLS must be enabled in production environment")
			}
		}
	}

	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("min_idle_conns (%d) cannot be greater than pool_size (%d)", c.MinIdleConns, c.PoolSize)
	}

	return nil
}

// IsConfigured returns true if Redis has enough configuration to connect.
func (c *RedisConfig) IsConfigured() bool {
	if c.URL != "" {
		return true
	}
	return c.Host != "" && c.Port != ""
}

// validateRedisURL validates Redis connection URL format
func validateRedisURL(redisURL string) error {
	parsed, err := parseAndValidateURL(redisURL, []string{"redis", "rediss"})
	if err != nil {
		return err
	}

	dbStr := strings.TrimPrefix(parsed.Path, "/")
	if dbStr == "" {
		return nil
	}
	var dbNum int
	if _, err := fmt.Sscanf(dbStr, "%d", &dbNum); err != nil {
		return fmt.Errorf("database number must be a valid integer: %s", dbStr)
	}
	if dbNum < 0 || dbNum > 15 {
		return fmt.Errorf("database number must be between 0 and 15, got %d", dbNum)
	}
	return nil
}
