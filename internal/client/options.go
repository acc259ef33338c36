package client

import (
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/decision"
	"github.com/rafaeljc/bifrost/internal/event"
	"github.com/rafaeljc/bifrost/internal/notification"
)

// EventSink receives impressions and conversions. *event.Processor implements it.
type EventSink interface {
	Enqueue(event.Record) error
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProfileStore enables sticky bucketing.
func WithProfileStore(store decision.ProfileStore) Option {
	return func(c *Client) { c.profiles = store }
}

// WithEventProcessor sets where impressions and conversions go. Without it events
// are built and discarded.
func WithEventProcessor(sink EventSink) Option {
	return func(c *Client) { c.events = sink }
}

// WithNotificationCenter sets the center notified of decisions, tracks and dispatches.
func WithNotificationCenter(center *notification.Center) Option {
	return func(c *Client) { c.notifier = center }
}

// WithDefaultDecideOptions applies opts to every Decide call.
func WithDefaultDecideOptions(opts ...DecideOption) Option {
	return func(c *Client) { c.defaultDecideOptions = append(c.defaultDecideOptions, opts...) }
}
