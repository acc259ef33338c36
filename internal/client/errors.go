package client

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped by every InputValidationError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigNotReady is returned while no project config has been loaded.
	ErrConfigNotReady = errors.New("project config not ready")

	// ErrUnknownFeature is returned when a flag key is not in the current config.
	ErrUnknownFeature = errors.New("feature not found")

	// ErrUnknownVariable is returned when a variable key is not part of the feature.
	ErrUnknownVariable = errors.New("feature variable not found")
)

// InputValidationError describes a rejected argument.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputValidationError) Unwrap() error {
	return ErrInvalidInput
}
