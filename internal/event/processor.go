package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rafaeljc/bifrost/internal/observability"
	"github.com/rafaeljc/bifrost/internal/validation"
)

const (
	DefaultBatchSize       = 10
	DefaultFlushInterval   = 30 * time.Second
	DefaultDispatchTimeout = 10 * time.Second
)

// Flush triggers, used as metric labels.
const (
	triggerSize     = "size"
	triggerInterval = "interval"
	triggerManual   = "manual"
	triggerClose    = "close"
)

// Transport delivers one batch. Implementations may block; the processor never
// calls them while holding its queue lock.
type Transport interface {
	Dispatch(ctx context.Context, batch *Batch) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, batch *Batch) error

func (f TransportFunc) Dispatch(ctx context.Context, batch *Batch) error {
	return f(ctx, batch)
}

// DispatchListener observes every dispatch outcome.
type DispatchListener func(batch *Batch, err error)

// Processor queues records and hands them to a Transport in batches, when the queue
// reaches the batch size, when the flush interval elapses or on Close.
// Failed dispatches are reported, never retried.
type Processor struct {
	transport       Transport
	clock           clock.Clock
	logger          *slog.Logger
	client          ClientInfo
	batchSize       int
	flushInterval   time.Duration
	dispatchTimeout time.Duration

	mu         sync.Mutex
	queue      []Record
	timer      *clock.Timer
	generation uint64
	closed     bool
	listeners  []DispatchListener

	inflight  sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Option customizes a Processor.
type Option func(*Processor)

func WithClock(c clock.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBatchSize sets the size trigger. Values below 1 mean 1.
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.batchSize = max(n, 1) }
}

// WithFlushInterval sets the interval trigger. Non-positive values keep the default.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithDispatchTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.dispatchTimeout = d
		}
	}
}

func WithClientInfo(name, version string) Option {
	return func(p *Processor) { p.client = ClientInfo{Name: name, Version: version} }
}

// NewProcessor creates a Processor delivering through transport.
// It panics if transport is nil.
func NewProcessor(transport Transport, opts ...Option) *Processor {
	validation.AssertPresent(transport, "event transport")

	p := &Processor{
		transport:       transport,
		clock:           clock.New(),
		logger:          slog.Default(),
		client:          ClientInfo{Name: "bifrost-go", Version: "dev"},
		batchSize:       DefaultBatchSize,
		flushInterval:   DefaultFlushInterval,
		dispatchTimeout: DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnDispatch registers a listener called after every dispatch attempt.
func (p *Processor) OnDispatch(fn DispatchListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Enqueue adds a record to the queue. Reaching the batch size hands the whole queue
// to the transport before Enqueue returns; the transport call itself runs in the
// background.
func (p *Processor) Enqueue(r Record) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		observability.EventsDroppedTotal.Inc()
		p.logger.Warn("dropping event enqueued after close",
			slog.String("kind", r.Kind()),
			slog.String("visitor_id", r.User().VisitorID),
		)
		return ErrProcessorClosed
	}

	p.queue = append(p.queue, r)
	observability.EventsEnqueuedTotal.WithLabelValues(r.Kind()).Inc()

	if len(p.queue) >= p.batchSize {
		p.flushLocked(triggerSize)
		return nil
	}
	if len(p.queue) == 1 {
		p.armTimerLocked()
	}
	observability.EventQueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()
	return nil
}

// Flush hands whatever is pending to the transport without waiting for delivery.
func (p *Processor) Flush() {
	p.mu.Lock()
	if p.closed || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	p.flushLocked(triggerManual)
}

// Close stops the timer, dispatches the remaining records and waits for in-flight
// dispatches until ctx is done. It returns the errors of the final dispatches and of
// the wait. Later calls return the same result.
func (p *Processor) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.stopTimerLocked()
		batches := BuildBatches(p.queue, p.client)
		p.queue = nil
		observability.EventQueueDepth.Set(0)
		p.mu.Unlock()

		var errs []error
		for _, b := range batches {
			if err := p.dispatch(ctx, b, triggerClose); err != nil {
				errs = append(errs, err)
			}
		}

		done := make(chan struct{})
		go func() {
			p.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for in-flight dispatches: %w", ctx.Err()))
		}

		p.closeErr = errors.Join(errs...)
		p.logger.Info("event processor closed", slog.Int("final_batches", len(batches)))
	})
	return p.closeErr
}

// flushLocked drains the queue and dispatches it in the background.
// It must be called with p.mu held and releases it.
func (p *Processor) flushLocked(trigger string) {
	records := p.queue
	p.queue = nil
	p.stopTimerLocked()
	observability.EventQueueDepth.Set(0)

	// Registered under the lock so Close never waits on a group that is still growing.
	p.inflight.Add(1)
	p.mu.Unlock()

	batches := BuildBatches(records, p.client)
	go func() {
		defer p.inflight.Done()
		for _, b := range batches {
			_ = p.dispatch(context.Background(), b, trigger)
		}
	}()
}

func (p *Processor) armTimerLocked() {
	generation := p.generation
	p.timer = p.clock.AfterFunc(p.flushInterval, func() {
		p.onTimer(generation)
	})
}

// stopTimerLocked cancels the pending timer. Bumping the generation makes a timer
// that already fired a no-op.
func (p *Processor) stopTimerLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Processor) onTimer(generation uint64) {
	p.mu.Lock()
	if p.closed || generation != p.generation || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.flushLocked(triggerInterval)
}

func (p *Processor) dispatch(ctx context.Context, batch *Batch, trigger string) error {
	ctx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()

	start := p.clock.Now()
	err := p.transport.Dispatch(ctx, batch)
	observability.EventDispatchDuration.Observe(p.clock.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "fail"
		p.logger.Error("event batch dispatch failed",
			slog.String("trigger", trigger),
			slog.Int("records", batch.Size()),
			slog.String("revision", batch.Revision),
			slog.Any("error", err),
		)
	} else {
		p.logger.Debug("event batch dispatched",
			slog.String("trigger", trigger),
			slog.Int("records", batch.Size()),
			slog.Int("visitors", len(batch.Visitors)),
		)
	}
	observability.EventBatchesTotal.WithLabelValues(trigger, status).Inc()

	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(batch, err)
	}

	if err != nil {
		return fmt.Errorf("dispatching batch of %d records: %w", batch.Size(), err)
	}
	return nil
}
