package client

import "github.com/rafaeljc/bifrost/internal/event"

// Decision notification kinds.
const (
	DecisionTypeABTest          = "ab-test"
	DecisionTypeFeature         = "feature"
	DecisionTypeFeatureVariable = "feature-variable"
	DecisionTypeFlag            = "flag"
)

// DecisionNotification is the payload of notification.TypeDecision.
type DecisionNotification struct {
	Type       string
	UserID     string
	Attributes map[string]any
	Info       map[string]any
}

// TrackNotification is the payload of notification.TypeTrack.
type TrackNotification struct {
	EventKey   string
	UserID     string
	Attributes map[string]any
	Tags       map[string]any
}

// LogEventNotification is the payload of notification.TypeLogEvent.
type LogEventNotification struct {
	Batch *event.Batch
	Err   error
}
