package ruleengine

import "errors"

var (
	// ErrInvalidCondition is returned when a condition tree cannot be compiled.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrUnsupportedValue means the condition value cannot be used with its match operator.
	ErrUnsupportedValue = errors.New("unsupported condition value")

	// ErrIncompatibleAttribute means the user attribute has the wrong type for the operator.
	ErrIncompatibleAttribute = errors.New("incompatible attribute value")

	// ErrInvalidVersion is returned for strings that are not comparable versions.
	ErrInvalidVersion = errors.New("invalid version")
)
