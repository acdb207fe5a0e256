// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/tracewire/lib/clock"
)

const flushInterval = 10 * time.Second

func startWorker(t *testing.T, sink *recordingSink) (*Worker, *clock.FakeClock, context.CancelFunc) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	dispatcher := NewDispatcher(DispatcherConfig{
		Mapper: NewTraceMapperV05(64, 4096),
		Sink:   sink,
		Logger: testLogger(),
	})
	worker := NewWorker(dispatcher, fake, flushInterval, 16, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)
	fake.WaitForTickers(1)
	t.Cleanup(func() {
		cancel()
		<-worker.Done()
	})
	return worker, fake, cancel
}

func waitForSend(t *testing.T, sink *recordingSink) {
	t.Helper()
	select {
	case <-sink.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a payload")
	}
}

func TestWorkerFlushesOnTick(t *testing.T) {
	sink := newRecordingSink()
	worker, fake, _ := startWorker(t, sink)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := worker.Submit(ctx, smallTrace(i)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	fake.Advance(flushInterval)
	waitForSend(t, sink)

	payloads := sink.received()
	if len(payloads) != 1 || payloads[0].TraceCount() != 2 {
		t.Fatalf("received %d payloads, want one of two traces", len(payloads))
	}
	decodeCycle(t, payloads[0])
}

func TestWorkerExplicitFlush(t *testing.T) {
	sink := newRecordingSink()
	worker, _, _ := startWorker(t, sink)
	ctx := context.Background()

	if !worker.TrySubmit(smallTrace(1)) {
		t.Fatal("TrySubmit refused with an empty queue")
	}
	if err := worker.Submit(ctx, smallTrace(2)); err != nil {
		t.Fatal(err)
	}
	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	payloads := sink.received()
	if len(payloads) != 1 || payloads[0].TraceCount() != 2 {
		t.Fatalf("received %d payloads, want one of two traces", len(payloads))
	}

	// Nothing pending: Flush succeeds without sending.
	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if len(sink.received()) != 1 {
		t.Errorf("empty Flush sent a payload")
	}
}

func TestWorkerFlushReportsSinkError(t *testing.T) {
	sinkErr := errors.New("agent unavailable")
	sink := newRecordingSink()
	sink.err = sinkErr
	worker, _, _ := startWorker(t, sink)
	ctx := context.Background()

	if err := worker.Submit(ctx, smallTrace(1)); err != nil {
		t.Fatal(err)
	}
	if err := worker.Flush(ctx); !errors.Is(err, sinkErr) {
		t.Errorf("Flush err = %v, want the sink error", err)
	}
}

func TestWorkerFinalFlushOnCancel(t *testing.T) {
	sink := newRecordingSink()
	worker, fake, cancel := startWorker(t, sink)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := worker.Submit(ctx, smallTrace(i)); err != nil {
			t.Fatal(err)
		}
	}
	cancel()
	select {
	case <-worker.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	payloads := sink.received()
	if len(payloads) != 1 || payloads[0].TraceCount() != 3 {
		t.Fatalf("received %d payloads, want one of three traces", len(payloads))
	}
	if fake.ActiveTickers() != 0 {
		t.Errorf("ActiveTickers() = %d after stop, want 0", fake.ActiveTickers())
	}
	if err := worker.Submit(ctx, smallTrace(4)); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Submit after stop = %v, want ErrWorkerStopped", err)
	}
	if worker.TrySubmit(smallTrace(5)) {
		t.Error("TrySubmit after stop succeeded")
	}
	if err := worker.Flush(ctx); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Flush after stop = %v, want ErrWorkerStopped", err)
	}
}
