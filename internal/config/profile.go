package config

import "time"

// Supported sticky bucketing backends.
const (
	ProfileBackendNone   = "none"
	ProfileBackendMemory = "memory"
	ProfileBackendRedis  = "redis"
)

// ProfileStoreConfig configures the user profile store used for sticky bucketing.
type ProfileStoreConfig struct {
	Backend   string        `envconfig:"BACKEND" default:"memory" validate:"oneof=none memory redis"`
	Capacity  int           `envconfig:"CAPACITY" default:"100000" validate:"min=1"`
	TTL       time.Duration `envconfig:"TTL" default:"720h" validate:"min=1m"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" default:"bifrost" validate:"required"`
}
