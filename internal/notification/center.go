// Package notification lets callers observe decisions, tracked events, dispatched
// batches and datafile updates. Listeners run synchronously, in registration order,
// and never influence the outcome of the call that notified them.
package notification

import (
	"log/slog"
	"slices"
	"sync"
)

// Type identifies a notification channel.
type Type string

const (
	TypeDecision     Type = "DECISION"
	TypeTrack        Type = "TRACK"
	TypeLogEvent     Type = "LOG_EVENT"
	TypeConfigUpdate Type = "CONFIG_UPDATE"
)

// Listener receives the payload of one notification.
type Listener func(payload any)

type registration struct {
	id       int
	typ      Type
	listener Listener
}

// Center dispatches notifications to registered listeners. Safe for concurrent use.
type Center struct {
	mu        sync.RWMutex
	nextID    int
	listeners []registration
	logger    *slog.Logger
}

// NewCenter creates an empty Center. If logger is nil, it defaults to slog.Default().
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{logger: logger}
}

// AddListener registers fn for typ and returns its id, or -1 when fn is nil.
func (c *Center) AddListener(typ Type, fn Listener) int {
	if fn == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, registration{id: c.nextID, typ: typ, listener: fn})
	return c.nextID
}

// RemoveListener unregisters the listener with id. It reports whether one was removed.
func (c *Center) RemoveListener(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.listeners)
	c.listeners = slices.DeleteFunc(c.listeners, func(r registration) bool { return r.id == id })
	return len(c.listeners) != before
}

// Clear removes every listener of typ.
func (c *Center) Clear(typ Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = slices.DeleteFunc(c.listeners, func(r registration) bool { return r.typ == typ })
}

// Send delivers payload to every listener of typ. A panicking listener is logged
// and skipped.
func (c *Center) Send(typ Type, payload any) {
	c.mu.RLock()
	var targets []registration
	for _, r := range c.listeners {
		if r.typ == typ {
			targets = append(targets, r)
		}
	}
	c.mu.RUnlock()

	for _, r := range targets {
		c.call(r, payload)
	}
}

func (c *Center) call(r registration, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("notification listener panicked",
				slog.String("type", string(r.typ)),
				slog.Int("listener_id", r.id),
				slog.Any("panic", rec),
			)
		}
	}()
	r.listener(payload)
}
