package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig contains the PostgreSQL settings of the durable event sink.
type DatabaseConfig struct {
	// URL takes precedence over the individual components when set.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`

	SSLMode string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"5" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`
}

// ConnectionString builds a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	params := url.Values{}
	params.Add("sslmode", c.SSLMode)

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		url.PathEscape(c.User), url.PathEscape(c.Password), c.Host, c.Port, c.Name, params.Encode())
}

// Validate checks if the database configuration is valid.
func (c *DatabaseConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validatePostgresURL(c.URL); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	} else {
		if err := validateHost(c.Host, "database"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "database"); err != nil {
			return err
		}
		if err := validateNoWhitespace(c.Name, "database name"); err != nil {
			return err
		}
		if len(c.Name) > 63 {
			return fmt.Errorf("database name cannot exceed 63 characters")
		}
		if err := validateNoWhitespace(c.User, "database user"); err != nil {
			return err
		}
		if environment == EnvironmentProduction {
			if c.Password == "" {
				return fmt.Errorf("database password is required in production environment")
			}
			if err := validatePasswordStrength(c.Password, "database", environment); err != nil {
				return err
			}
			if !isSecureSSLMode(c.SSLMode) {
				return fmt.Errorf("database SSL mode must be 'require', 'verify-ca', or 'verify-full' in production environment")
			}
		}
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}

	return nil
}

// IsConfigured returns true if the database has enough configuration to connect.
func (c *DatabaseConfig) IsConfigured() bool {
	if c.URL != "" {
		return true
	}
	return c.Host != "" && c.Port != "" && c.Name != "" && c.User != ""
}

// validatePostgresURL validates PostgreSQL connection URL format
func validatePostgresURL(dbURL string) error {
	parsed, err := parseAndValidateURL(dbURL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	return nil
}
