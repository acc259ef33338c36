package decision

import "errors"

var (
	// ErrUnknownExperiment is returned when an experiment key is not in the current config.
	ErrUnknownExperiment = errors.New("experiment not found")

	// ErrUnknownVariation is returned when a variation key is not part of the experiment.
	ErrUnknownVariation = errors.New("variation not found")

	// ErrEmptyUserID is returned when an operation requires a user id.
	ErrEmptyUserID = errors.New("user id cannot be empty")
)
