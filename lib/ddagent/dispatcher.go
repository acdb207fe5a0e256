// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// PayloadSink delivers finished payloads, typically to a trace agent.
// Send may block; it must honour ctx. The payload's segments stay
// valid after Send returns, so a sink may retain them, unless the
// dispatcher was configured with BorrowPayloads.
type PayloadSink interface {
	Send(ctx context.Context, payload Payload) error
}

// PayloadSinkFunc adapts an ordinary function to PayloadSink.
type PayloadSinkFunc func(ctx context.Context, payload Payload) error

// Send calls f(ctx, payload).
func (f PayloadSinkFunc) Send(ctx context.Context, payload Payload) error { return f(ctx, payload) }

// DispatcherConfig holds the collaborators of a Dispatcher.
type DispatcherConfig struct {
	// Mapper lays out traces. Required.
	Mapper TraceMapper

	// Sink receives each flushed payload. Required.
	Sink PayloadSink

	// Logger receives drop and failure reports. Nil discards them.
	Logger *slog.Logger

	// BorrowPayloads declares that Sink is done with each payload when
	// Send returns. The dispatcher then reuses its buffers for the next
	// cycle instead of allocating new ones, and the payload's segments
	// are overwritten by later traces.
	BorrowPayloads bool
}

// payloadReleaser is implemented by mappers whose payloads borrow
// per-cycle buffers.
type payloadReleaser interface {
	releasePayload()
}

// DispatcherStats is a snapshot of a Dispatcher's counters.
type DispatcherStats struct {
	TracesEncoded  uint64 `json:"traces_encoded"`
	TracesDropped  uint64 `json:"traces_dropped"`
	PayloadsSent   uint64 `json:"payloads_sent"`
	PayloadsFailed uint64 `json:"payloads_failed"`
}

// Dispatcher runs flush cycles: traces are encoded into a body buffer
// bounded by the mapper's MessageBufferSize, and Flush turns the cycle
// into a payload for the sink.
//
// A Dispatcher is not safe for concurrent use, except for Stats. Use a
// Worker to feed one from many goroutines.
type Dispatcher struct {
	mapper TraceMapper
	sink   PayloadSink
	logger *slog.Logger

	buffer *serialization.GrowableBuffer
	writer *serialization.MsgPackWriter
	borrow bool

	tracesEncoded  atomic.Uint64
	tracesDropped  atomic.Uint64
	payloadsSent   atomic.Uint64
	payloadsFailed atomic.Uint64
}

// NewDispatcher creates a Dispatcher. Panics if Mapper or Sink is nil.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Mapper == nil {
		panic("ddagent: DispatcherConfig.Mapper is required")
	}
	if config.Sink == nil {
		panic("ddagent: DispatcherConfig.Sink is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	size := config.Mapper.MessageBufferSize()
	buffer := serialization.NewGrowableBuffer(min(size, 64*1024), size)
	return &Dispatcher{
		mapper: config.Mapper,
		sink:   config.Sink,
		logger: logger.With("endpoint", config.Mapper.Endpoint()),
		buffer: buffer,
		writer: serialization.NewMsgPackWriter(buffer),
		borrow: config.BorrowPayloads,
	}
}

// Add encodes one trace into the current cycle.
//
// When the body buffer is full, the traces already encoded are flushed
// and the trace is retried once in the fresh cycle. A trace that does
// not fit an empty cycle is dropped: Add logs it and returns an error
// wrapping serialization.ErrCapacityExceeded.
func (d *Dispatcher) Add(ctx context.Context, spans trace.Trace) error {
	err := serialization.Format(d.writer, spans, d.mapper)
	if err == nil {
		d.tracesEncoded.Add(1)
		return nil
	}
	if !errors.Is(err, serialization.ErrCapacityExceeded) {
		return d.drop(spans, err)
	}

	if d.buffer.MessageCount() > 0 {
		d.logger.Debug("body buffer full, flushing before retry",
			"traces", d.buffer.MessageCount(),
			"bytes", d.buffer.Len(),
		)
		// A failed send is already counted and logged by Flush; the
		// retry goes ahead in the new cycle either way.
		_ = d.Flush(ctx)
		err = serialization.Format(d.writer, spans, d.mapper)
		if err == nil {
			d.tracesEncoded.Add(1)
			return nil
		}
	}
	return d.drop(spans, err)
}

func (d *Dispatcher) drop(spans trace.Trace, err error) error {
	d.tracesDropped.Add(1)
	// With no complete trace pending, the cycle holds only what the
	// dropped trace left in the mapper, so start over.
	if d.buffer.MessageCount() == 0 {
		d.reset()
	}
	d.logger.Warn("dropping trace",
		"spans", len(spans),
		"buffer_limit", d.buffer.Limit(),
		"error", err,
	)
	return fmt.Errorf("dropping trace of %d spans: %w", len(spans), err)
}

// Flush sends the current cycle to the sink and starts a new one. An
// empty cycle is not sent. The new cycle starts even when the sink
// fails; the failed payload's traces are counted as dropped.
func (d *Dispatcher) Flush(ctx context.Context) error {
	traceCount := d.buffer.MessageCount()
	if traceCount == 0 {
		d.reset()
		return nil
	}

	payload := d.mapper.NewPayload(traceCount, d.buffer.Slice())
	var err error
	if d.borrow {
		err = d.sink.Send(ctx, payload)
		d.buffer.Release()
		if releaser, ok := d.mapper.(payloadReleaser); ok {
			releaser.releasePayload()
		}
		d.reset()
	} else {
		d.reset()
		err = d.sink.Send(ctx, payload)
	}

	if err != nil {
		d.payloadsFailed.Add(1)
		d.tracesDropped.Add(uint64(traceCount))
		d.logger.Warn("payload send failed, dropping batch",
			"traces", traceCount,
			"bytes", payload.SizeInBytes(),
			"error", err,
		)
		return fmt.Errorf("sending %s payload of %d traces: %w", payload.Endpoint(), traceCount, err)
	}
	d.payloadsSent.Add(1)
	d.logger.Debug("payload sent",
		"traces", traceCount,
		"bytes", payload.SizeInBytes(),
	)
	return nil
}

// reset discards per-cycle state in the mapper and the body together.
func (d *Dispatcher) reset() {
	d.mapper.Reset()
	d.buffer.Reset()
}

// Pending returns the number of traces in the current cycle.
func (d *Dispatcher) Pending() int {
	return d.buffer.MessageCount()
}

// Stats returns the dispatcher's counters. Safe to call concurrently
// with Add and Flush.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		TracesEncoded:  d.tracesEncoded.Load(),
		TracesDropped:  d.tracesDropped.Load(),
		PayloadsSent:   d.payloadsSent.Load(),
		PayloadsFailed: d.payloadsFailed.Load(),
	}
}
