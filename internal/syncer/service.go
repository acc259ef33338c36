// Package syncer keeps the current project configuration fresh: it polls the
// datafile, builds a new immutable Config and swaps it into the Holder.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/notification"
	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/projectconfig"
	"github.com/rafaeljc/bifrost/internal/validation"
)

// ErrNotReady is returned by WaitReady when no datafile was loaded before ctx ended.
var ErrNotReady = errors.New("datafile not loaded")

// UpdateListener receives every new Config.
type UpdateListener func(cfg *projectconfig.Config)

// Service polls a Fetcher and publishes new configs. Safe for concurrent use.
type Service struct {
	logger    *slog.Logger
	fetcher   Fetcher
	holder    *projectconfig.Holder
	clock     clock.Clock
	interval  time.Duration
	timeout   time.Duration
	buildOpts []projectconfig.BuildOption
	notifier  *notification.Center

	mu        sync.Mutex
	etag      string
	nextID    int
	listeners map[int]UpdateListener

	readyOnce sync.Once
	ready     chan struct{}
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithInterval sets the poll interval. Values under one second keep the default.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= time.Second {
			s.interval = d
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBuildOptions are passed to projectconfig.Build on every update.
func WithBuildOptions(opts ...projectconfig.BuildOption) Option {
	return func(s *Service) { s.buildOpts = append(s.buildOpts, opts...) }
}

// WithNotificationCenter publishes CONFIG_UPDATE notifications.
func WithNotificationCenter(c *notification.Center) Option {
	return func(s *Service) { s.notifier = c }
}

// New creates a Service. It panics if fetcher or holder is nil.
func New(fetcher Fetcher, holder *projectconfig.Holder, opts ...Option) *Service {
	validation.AssertPresent(fetcher, "datafile fetcher")
	validation.AssertNotNil(holder, "config holder")

	s := &Service{
		logger:    slog.Default(),
		fetcher:   fetcher,
		holder:    holder,
		clock:     clock.New(),
		interval:  5 * time.Minute,
		timeout:   10 * time.Second,
		listeners: make(map[int]UpdateListener),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if holder.Load() != nil {
		s.markReady()
	}
	return s
}

// FromConfig builds a Service for the datafile settings of cfg.
func FromConfig(cfg *config.DatafileConfig, holder *projectconfig.Holder, logger *slog.Logger, opts ...Option) *Service {
	var fetcher Fetcher
	if cfg.URL != "" {
		fetcher = NewHTTPFetcher(cfg.URL, cfg.SDKKey, nil)
	} else {
		fetcher = NewFileFetcher(cfg.Path)
	}

	base := []Option{
		WithLogger(logger),
		WithInterval(cfg.PollInterval),
		WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.SkipValidation {
		base = append(base, WithBuildOptions(projectconfig.WithSkipValidation()))
	}
	base = append(base, WithBuildOptions(projectconfig.WithLogger(logger)))
	return New(fetcher, holder, append(base, opts...)...)
}

// Get returns the current Config, or nil before the first successful sync.
func (s *Service) Get() *projectconfig.Config {
	return s.holder.Load()
}

// Ready is closed once a Config is available.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until a Config is available or ctx ends.
func (s *Service) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrNotReady, ctx.Err())
	}
}

// OnUpdate registers fn and returns a function that unregisters it.
func (s *Service) OnUpdate(fn UpdateListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Run syncs immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting datafile syncer", slog.Duration("interval", s.interval))

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial datafile sync failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("datafile syncer stopping")
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error("datafile sync failed", slog.Any("error", err))
			}
		}
	}
}

// Sync runs one cycle. A datafile that fails to build leaves the current Config in
// place. A datafile carrying the current revision is ignored.
func (s *Service) Sync(ctx context.Context) error {
	start := s.clock.Now()
	defer func() {
		observability.DatafileSyncDuration.Observe(s.clock.Since(start).Seconds())
	}()

	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	raw, newETag, changed, err := s.fetcher.Fetch(fetchCtx, etag)
	cancel()
	if err != nil {
		observability.DatafileSyncsTotal.WithLabelValues("fail").Inc()
		return err
	}
	if !changed {
		observability.DatafileSyncsTotal.WithLabelValues("unchanged").Inc()
		return nil
	}

	cfg, err := projectconfig.Build(raw, s.buildOpts...)
	if err != nil {
		observability.DatafileSyncsTotal.WithLabelValues("fail").Inc()
		return err
	}

	s.mu.Lock()
	s.etag = newETag
	s.mu.Unlock()

	if current := s.holder.Load(); current != nil && current.Revision() == cfg.Revision() {
		observability.DatafileSyncsTotal.WithLabelValues("unchanged").Inc()
		s.logger.Debug("datafile revision unchanged", slog.String("revision", cfg.Revision()))
		return nil
	}

	previous := s.holder.Store(cfg)
	observability.DatafileSyncsTotal.WithLabelValues("updated").Inc()

	attrs := []any{slog.String("revision", cfg.Revision())}
	if previous != nil {
		attrs = append(attrs, slog.String("previous_revision", previous.Revision()))
	}
	s.logger.Info("datafile updated", attrs...)

	s.markReady()
	s.publish(cfg)
	return nil
}

func (s *Service) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Service) publish(cfg *projectconfig.Config) {
	s.mu.Lock()
	listeners := make([]UpdateListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	if s.notifier != nil {
		s.notifier.Send(notification.TypeConfigUpdate, cfg)
	}
}
