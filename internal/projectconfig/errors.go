package projectconfig

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is the sentinel wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("invalid project config")

// ConfigError reports a datafile that cannot be turned into a Config.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid project config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid project config: %s: %v", e.Reason, e.Err)
}

// Unwrap exposes both ErrInvalidConfig and the underlying cause to errors.Is/As.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.Err}
}

func configError(reason string, err error) error {
	return &ConfigError{Reason: reason, Err: err}
}
