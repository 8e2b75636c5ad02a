package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/store"
)

// Change event results reported to the [ChangeRecorder].
const (
	ResultAcked  = "acked"
	ResultFailed = "failed"
	ResultDead   = "dead"
)

// ChangeHandler consumes one change event. Handlers must be idempotent: an event
// is redelivered until every handler succeeds.
type ChangeHandler interface {
	HandleChange(ctx context.Context, ev models.ChangeEvent) error
}

// ChangeHandlerFunc adapts a function to [ChangeHandler].
type ChangeHandlerFunc func(ctx context.Context, ev models.ChangeEvent) error

func (f ChangeHandlerFunc) HandleChange(ctx context.Context, ev models.ChangeEvent) error {
	return f(ctx, ev)
}

// ChangeRecorder counts processed events.
type ChangeRecorder interface {
	ChangeProcessed(result string)
}

type nopChangeRecorder struct{}

func (nopChangeRecorder) ChangeProcessed(string) {}

// Watcher drains a [store.ChangeFeed] in commit order.
//
// A failing event blocks the events behind it until it succeeds or runs out of
// attempts, at which point it is acknowledged as dead and logged.
type Watcher struct {
	feed        store.ChangeFeed
	handlers    []ChangeHandler
	logger      *log.Logger
	recorder    ChangeRecorder
	progress    chan<- ProgressUpdate
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithBatchSize sets how many events are fetched per poll.
func WithBatchSize(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMaxAttempts sets the number of deliveries before an event is dropped.
func WithMaxAttempts(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithPollInterval sets the delay between polls in [Watcher.Run].
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithChangeRecorder sets the metrics recorder.
func WithChangeRecorder(r ChangeRecorder) WatcherOption {
	return func(w *Watcher) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithProgress reports every processed event on ch.
func WithProgress(ch chan<- ProgressUpdate) WatcherOption {
	return func(w *Watcher) { w.progress = ch }
}

// NewWatcher creates a Watcher delivering events from feed to handlers in order.
func NewWatcher(feed store.ChangeFeed, handlers []ChangeHandler, logger *log.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		feed:        feed,
		handlers:    handlers,
		logger:      logger,
		recorder:    nopChangeRecorder{},
		batchSize:   100,
		maxAttempts: 5,
		interval:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Drain processes pending events until the feed is empty or an event fails. It
// returns the number of events acknowledged.
func (w *Watcher) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		events, err := w.feed.PendingChanges(ctx, w.batchSize)
		if err != nil {
			return processed, err
		}
		if len(events) == 0 {
			return processed, nil
		}

		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			acked, err := w.process(ctx, ev)
			if acked {
				processed++
			}
			if err != nil {
				return processed, err
			}
		}
	}
}

// process delivers ev to every handler. A failure that leaves the event pending
// is returned so the caller stops at it.
func (w *Watcher) process(ctx context.Context, ev models.ChangeEvent) (bool, error) {
	var errs []error
	for _, h := range w.handlers {
		if err := h.HandleChange(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	handleErr := errors.Join(errs...)
	logger := shared.WithLogger(w.logger, "changeId", ev.ID, "songId", ev.SongID, "op", ev.Op())

	if handleErr == nil {
		if err := w.feed.AckChange(ctx, ev.ID); err != nil {
			return false, err
		}
		w.report(ev, ResultAcked)
		return true, nil
	}

	if ev.Attempts+1 >= w.maxAttempts {
		logger.Error("change event dropped", "attempts", ev.Attempts+1, "error", handleErr)
		if err := w.feed.AckChange(ctx, ev.ID); err != nil {
			return false, err
		}
		w.report(ev, ResultDead)
		return true, nil
	}

	logger.Warn("change event failed", "attempts", ev.Attempts+1, "error", handleErr)
	if err := w.feed.FailChange(ctx, ev.ID, handleErr); err != nil {
		return false, err
	}
	w.report(ev, ResultFailed)
	return false, handleErr
}

func (w *Watcher) report(ev models.ChangeEvent, result string) {
	w.recorder.ChangeProcessed(result)
	sendProgress(w.progress, changeUpdate(int(ev.ID), result, ev.SongID))
}

// Run drains the feed every poll interval until ctx is done. Drain errors are
// logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if n, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Debug("change feed drain stopped", "processed", n, "error", err)
		} else if n > 0 {
			w.logger.Debug("change feed drained", "processed", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
