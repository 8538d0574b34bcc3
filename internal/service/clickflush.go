package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brevy/brevy/internal/cache"
	"github.com/brevy/brevy/internal/repository"
)

// ClickCounterSource exposes the buffered per-link click counters.
type ClickCounterSource interface {
	ScanClickKeys(ctx context.Context) ([]string, error)
	GetAndResetClicks(ctx context.Context, shortCode string) (int64, error)
	AddClicks(ctx context.Context, shortCode string, count int64) error
}

// ClickCountStore persists flushed click counts.
type ClickCountStore interface {
	IncrementClickCountByCode(ctx context.Context, shortCode string, count int64) error
}

// ClickFlusher periodically moves click counters from Redis into the
// database. Counters are read destructively; a failed database write puts
// the count back so no clicks are lost across a flush cycle.
type ClickFlusher struct {
	source   ClickCounterSource
	store    ClickCountStore
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewClickFlusher creates a new ClickFlusher.
func NewClickFlusher(source ClickCounterSource, store ClickCountStore, logger *slog.Logger, interval time.Duration) *ClickFlusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ClickFlusher{
		source:   source,
		store:    store,
		logger:   logger.With("component", "service.clickflush"),
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the flush loop in a background goroutine.
func (f *ClickFlusher) Start() {
	go f.run()
	f.logger.Info("click flusher started", "interval", f.interval)
}

func (f *ClickFlusher) run() {
	defer close(f.stopped)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), f.interval)
			f.Flush(ctx)
			cancel()
		}
	}
}

// Flush performs one pass over all pending counters.
func (f *ClickFlusher) Flush(ctx context.Context) {
	keys, err := f.source.ScanClickKeys(ctx)
	if err != nil {
		f.logger.Warn("failed to scan click counters", "error", err)
		return
	}

	var flushed, failed int
	for _, key := range keys {
		shortCode := cache.ShortCodeFromClickKey(key)
		if shortCode == "" {
			continue
		}

		count, err := f.source.GetAndResetClicks(ctx, shortCode)
		if err != nil {
			f.logger.Warn("failed to read click counter",
				"short_code", shortCode,
				"error", err,
			)
			failed++
			continue
		}
		if count == 0 {
			continue
		}

		if err := f.store.IncrementClickCountByCode(ctx, shortCode, count); err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				// Link is gone; its clicks have nowhere to live.
				continue
			}
			failed++
			// Put the count back so the next cycle retries it.
			if restoreErr := f.source.AddClicks(ctx, shortCode, count); restoreErr != nil {
				f.logger.Error("dropped click counts after failed flush",
					"short_code", shortCode,
					"count", count,
					"flush_error", err,
					"restore_error", restoreErr,
				)
				continue
			}
			f.logger.Warn("failed to flush click counter, restored",
				"short_code", shortCode,
				"count", count,
				"error", err,
			)
			continue
		}

		flushed++
	}

	if flushed > 0 || failed > 0 {
		f.logger.Info("click flush pass complete",
			"flushed", flushed,
			"failed", failed,
		)
	}
}

// Shutdown stops the flush loop and runs one final pass so buffered
// counts survive a restart.
func (f *ClickFlusher) Shutdown(ctx context.Context) error {
	close(f.done)

	select {
	case <-f.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.Flush(ctx)
	f.logger.Info("click flusher stopped")
	return nil
}
