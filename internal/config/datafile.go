package config

import (
	"fmt"
	"time"
)

// DatafileConfig describes where the project configuration document comes from
// and how often it is refreshed.
type DatafileConfig struct {
	// URL of the datafile (CDN or control plane). Takes precedence over Path.
	URL string `envconfig:"URL"`
	// Path of a datafile on the local filesystem.
	Path string `envconfig:"FILE"`
	// SDKKey is sent as a bearer token when fetching from URL.
	SDKKey string `envconfig:"SDK_KEY"`

	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"5m" validate:"min=1s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s" validate:"min=100ms"`

	// SkipValidation builds configs without structural validation (a warning is logged).
	SkipValidation bool `envconfig:"SKIP_VALIDATION" default:"false"`
}

// Source returns a printable description of the datafile origin.
func (c *DatafileConfig) Source() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Path
}

// Validate checks that exactly one usable datafile origin is configured.
func (c *DatafileConfig) Validate() error {
	if c.URL == "" && c.Path == "" {
		return fmt.Errorf("datafile URL or path is required")
	}
	if c.URL != "" {
		if _, err := parseAndValidateURL(c.URL, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid datafile URL: %w", err)
		}
	}
	return nil
}
