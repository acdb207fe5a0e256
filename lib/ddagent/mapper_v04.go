// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// TraceMapperV04 writes traces in the v0.4 format: each span is a map
// of 12 named fields with literal string values. It keeps no state
// between traces.
type TraceMapperV04 struct {
	meta       *metaWriter
	bufferSize int
}

var _ TraceMapper = (*TraceMapperV04)(nil)

// NewTraceMapperV04 returns a mapper with the given advisory message
// buffer size. A non-positive size selects DefaultBufferSize.
func NewTraceMapperV04(bufferSize int) *TraceMapperV04 {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &TraceMapperV04{
		meta:       newMetaWriter(writeLiteral),
		bufferSize: bufferSize,
	}
}

func (m *TraceMapperV04) Map(spans trace.Trace, writable serialization.Writable) {
	writable.StartArray(len(spans))
	for i := range spans {
		span := &spans[i]
		writable.StartMap(spanFieldCount)
		writable.WriteString("service")
		writable.WriteString(span.Service)
		writable.WriteString("name")
		writable.WriteString(span.Name)
		writable.WriteString("resource")
		writable.WriteString(span.Resource)
		writable.WriteString("trace_id")
		writable.WriteUint64(span.TraceID.Uint64())
		writable.WriteString("span_id")
		writable.WriteUint64(span.SpanID.Uint64())
		writable.WriteString("parent_id")
		writable.WriteUint64(span.ParentID.Uint64())
		writable.WriteString("start")
		writable.WriteLong(span.Start)
		writable.WriteString("duration")
		writable.WriteLong(span.Duration)
		writable.WriteString("error")
		writable.WriteInt(int(span.Error))
		// meta and metrics are adjacent map values, so the keys are
		// interleaved around the two maps the meta writer emits.
		writable.WriteString("meta")
		m.meta.write(&metricsKeyInjector{Writable: writable}, &span.Metadata)
		writable.WriteString("type")
		writable.WriteString(span.Type)
	}
}

// metricsKeyInjector writes the "metrics" key immediately before the
// second map header the meta writer starts.
type metricsKeyInjector struct {
	serialization.Writable
	maps int
}

func (w *metricsKeyInjector) StartMap(pairCount int) {
	w.maps++
	if w.maps == 2 {
		w.Writable.WriteString("metrics")
	}
	w.Writable.StartMap(pairCount)
}

// NewPayload wraps the encoded traces. v0.4 payloads carry no
// dictionary.
func (m *TraceMapperV04) NewPayload(traceCount int, body []byte) Payload {
	return &payloadV04{traceCount: traceCount, body: body}
}

// Reset is a no-op: v0.4 keeps no per-cycle state.
func (m *TraceMapperV04) Reset() {}

func (m *TraceMapperV04) Endpoint() string { return EndpointV04 }

func (m *TraceMapperV04) MessageBufferSize() int { return m.bufferSize }
