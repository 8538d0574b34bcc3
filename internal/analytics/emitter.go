package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brevy/brevy/internal/metrics"
)

// Publisher is the transport behind the emitter.
type Publisher interface {
	Publish(ctx context.Context, event ClickEventPayload) (string, error)
}

// EmitterOptions tunes the emitter's queue and retry behavior.
type EmitterOptions struct {
	QueueSize      int
	Workers        int
	PublishRetries int
	PublishTimeout time.Duration
}

// Emitter delivers click events to the publisher without ever blocking the
// redirect path. Events flow through a bounded queue into a small worker
// pool; a full queue drops the event with a logged warning, and publish
// failures are retried with backoff and then dropped. Analytics delivery is
// best-effort end to end.
type Emitter struct {
	pub     Publisher
	logger  *slog.Logger
	metrics metrics.Recorder

	queue          chan ClickEventPayload
	workers        int
	publishRetries int
	publishTimeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewEmitter creates an Emitter. Zero option fields fall back to safe
// defaults so tests can construct one tersely.
func NewEmitter(pub Publisher, logger *slog.Logger, recorder metrics.Recorder, opts EmitterOptions) *Emitter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.PublishRetries <= 0 {
		opts.PublishRetries = 3
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 200 * time.Millisecond
	}

	return &Emitter{
		pub:            pub,
		logger:         logger.With("component", "analytics.emitter"),
		metrics:        recorder,
		queue:          make(chan ClickEventPayload, opts.QueueSize),
		workers:        opts.Workers,
		publishRetries: opts.PublishRetries,
		publishTimeout: opts.PublishTimeout,
	}
}

// Start launches the worker pool.
func (e *Emitter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New("emitter already started")
	}
	e.started = true
	e.done = make(chan struct{})

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.logger.Info("click event emitter started",
		"workers", e.workers,
		"queue_size", cap(e.queue),
	)
	return nil
}

// Emit enqueues a click event. It never blocks: when the queue is full the
// event is dropped and counted. The event is logically detached from the
// originating request here; a client disconnect after this point does not
// reach it.
func (e *Emitter) Emit(event ClickEventPayload) {
	if err := ValidatePayload(event); err != nil {
		e.logger.Warn("discarding invalid click event", "error", err)
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	select {
	case e.queue <- event:
		e.mu.Unlock()
	default:
		e.mu.Unlock()
		e.metrics.IncEventDropped()
		e.logger.Warn("click event queue full, dropping event",
			"short_code", event.ShortCode,
			"queue_size", cap(e.queue),
		)
	}
}

// QueueDepth returns the number of events waiting to be published.
func (e *Emitter) QueueDepth() int {
	return len(e.queue)
}

// Shutdown stops accepting events, drains the queue, and waits for workers.
// Implements the server shutdown hook contract.
func (e *Emitter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	go func() {
		e.wg.Wait()
		close(e.done)
	}()

	select {
	case <-e.done:
		e.logger.Info("click event emitter drained")
		return nil
	case <-ctx.Done():
		e.logger.Warn("click event emitter shutdown timed out",
			"pending", len(e.queue),
		)
		return ctx.Err()
	}
}

// worker consumes the queue until it is closed and drained.
func (e *Emitter) worker() {
	defer e.wg.Done()

	for event := range e.queue {
		e.publishWithRetry(event)
	}
}

// publishWithRetry attempts delivery with exponential backoff, then drops.
// Each attempt gets its own timeout context: emission has a bounded lifetime
// of its own, not the lifetime of the HTTP request that produced it.
func (e *Emitter) publishWithRetry(event ClickEventPayload) {
	backoff := 100 * time.Millisecond

	for attempt := 1; attempt <= e.publishRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.publishTimeout)
		streamID, err := e.pub.Publish(ctx, event)
		cancel()

		if err == nil {
			e.metrics.IncEventPublished(metrics.PublishSuccess)
			e.logger.Debug("click event published",
				"short_code", event.ShortCode,
				"stream_id", streamID,
			)
			return
		}

		if attempt < e.publishRetries {
			e.logger.Debug("click event publish failed, retrying",
				"short_code", event.ShortCode,
				"attempt", attempt,
				"error", err,
			)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		e.metrics.IncEventPublished(metrics.PublishDropped)
		e.logger.Warn("failed to publish click event, dropping",
			"short_code", event.ShortCode,
			"attempts", attempt,
			"error", err,
		)
	}
}
