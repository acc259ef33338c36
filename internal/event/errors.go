package event

import "errors"

var (
	// ErrProcessorClosed is returned by Enqueue after Close.
	ErrProcessorClosed = errors.New("event processor is closed")

	// ErrUnknownEvent means the event key is not declared in the datafile.
	ErrUnknownEvent = errors.New("unknown event")
)
