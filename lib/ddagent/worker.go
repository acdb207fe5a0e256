// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/tracewire/lib/clock"
	"github.com/bureau-foundation/tracewire/lib/schema/trace"
)

// ErrWorkerStopped is returned by Submit and Flush after the worker's
// Run loop has exited.
var ErrWorkerStopped = errors.New("trace worker stopped")

// shutdownFlushTimeout bounds the final flush after Run's context is
// cancelled.
const shutdownFlushTimeout = 5 * time.Second

// Worker is the single goroutine that owns a Dispatcher. Producers
// hand it traces with Submit from any goroutine; only Run touches the
// dispatcher, its mapper, and its buffers.
type Worker struct {
	dispatcher *Dispatcher
	clock      clock.Clock
	interval   time.Duration
	logger     *slog.Logger

	queue   chan trace.Trace
	flushes chan chan error
	done    chan struct{}
}

// NewWorker creates a Worker that flushes every interval and buffers
// up to queueSize submitted traces. Call Run to start it.
func NewWorker(dispatcher *Dispatcher, clk clock.Clock, interval time.Duration, queueSize int, logger *slog.Logger) *Worker {
	if interval <= 0 {
		panic("ddagent: worker flush interval must be positive")
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		dispatcher: dispatcher,
		clock:      clk,
		interval:   interval,
		logger:     logger,
		queue:      make(chan trace.Trace, queueSize),
		flushes:    make(chan chan error),
		done:       make(chan struct{}),
	}
}

// Submit queues a trace, blocking while the queue is full.
func (w *Worker) Submit(ctx context.Context, spans trace.Trace) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.queue <- spans:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues a trace if there is room and reports whether it
// did.
func (w *Worker) TrySubmit(spans trace.Trace) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.queue <- spans:
		return true
	default:
		return false
	}
}

// Flush asks the worker to encode everything submitted so far and
// send it, and waits for the sink's result.
func (w *Worker) Flush(ctx context.Context) error {
	result := make(chan error, 1)
	select {
	case w.flushes <- result:
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run owns the dispatcher until ctx is cancelled. It encodes submitted
// traces, flushes on every tick of the interval, and on cancellation
// encodes whatever is still queued and makes one last flush bounded by
// a short timeout.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case spans := <-w.queue:
			w.add(ctx, spans)
		case <-ticker.C:
			w.drainQueue(ctx)
			w.flush(ctx)
		case result := <-w.flushes:
			w.drainQueue(ctx)
			result <- w.flush(ctx)
		case <-ctx.Done():
			w.shutdown()
			return
		}
	}
}

func (w *Worker) shutdown() {
	flushContext, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	w.drainQueue(flushContext)
	if err := w.dispatcher.Flush(flushContext); err != nil {
		w.logger.Warn("final flush failed", "error", err)
	}
}

// drainQueue encodes every trace already waiting in the queue.
func (w *Worker) drainQueue(ctx context.Context) {
	for {
		select {
		case spans := <-w.queue:
			w.add(ctx, spans)
		default:
			return
		}
	}
}

// add encodes one trace. Drops are logged and counted by the
// dispatcher.
func (w *Worker) add(ctx context.Context, spans trace.Trace) {
	_ = w.dispatcher.Add(ctx, spans)
}

func (w *Worker) flush(ctx context.Context) error {
	return w.dispatcher.Flush(ctx)
}
