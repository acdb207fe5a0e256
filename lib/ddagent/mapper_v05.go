// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// TraceMapperV05 writes traces in the dictionary-compressed v0.5
// format. Each span is a 12-element array:
//
//	service, name, resource, trace_id, span_id, parent_id,
//	start, duration, error, meta, metrics, type
//
// service, name, resource and type, and every meta key and value and
// metrics key, are written as indices into the cycle's dictionary.
type TraceMapperV05 struct {
	dictionary *dictionary
	meta       *metaWriter
	bufferSize int
}

var _ TraceMapper = (*TraceMapperV05)(nil)

// NewTraceMapperV05 returns a mapper whose dictionary starts with
// dictionarySize bytes of capacity and whose advisory message buffer
// size is bufferSize. Non-positive sizes select DefaultBufferSize.
func NewTraceMapperV05(dictionarySize, bufferSize int) *TraceMapperV05 {
	if dictionarySize <= 0 {
		dictionarySize = DefaultBufferSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	mapper := &TraceMapperV05{
		dictionary: newDictionary(dictionarySize),
		bufferSize: bufferSize,
	}
	mapper.meta = newMetaWriter(mapper.dictionary.encode)
	return mapper
}

// Map writes one trace. Dictionary entries are always written before
// the index that refers to them, so a failure on writable leaves the
// dictionary consistent, possibly with entries nothing refers to.
func (m *TraceMapperV05) Map(spans trace.Trace, writable serialization.Writable) {
	writable.StartArray(len(spans))
	for i := range spans {
		span := &spans[i]
		writable.StartArray(spanFieldCount)
		/* 1 */ m.dictionary.encode(writable, span.Service)
		/* 2 */ m.dictionary.encode(writable, span.Name)
		/* 3 */ m.dictionary.encode(writable, span.Resource)
		/* 4 */ writable.WriteUint64(span.TraceID.Uint64())
		/* 5 */ writable.WriteUint64(span.SpanID.Uint64())
		/* 6 */ writable.WriteUint64(span.ParentID.Uint64())
		/* 7 */ writable.WriteLong(span.Start)
		/* 8 */ writable.WriteLong(span.Duration)
		/* 9 */ writable.WriteInt(int(span.Error))
		/* 10, 11 */ m.meta.write(writable, &span.Metadata)
		/* 12 */ m.dictionary.encode(writable, span.Type)
	}
}

// NewPayload snapshots the dictionary alongside the encoded traces.
func (m *TraceMapperV05) NewPayload(traceCount int, body []byte) Payload {
	dictionary, stringCount := m.dictionary.snapshot()
	return &payloadV05{
		dictionary:  dictionary,
		stringCount: stringCount,
		traceCount:  traceCount,
		body:        body,
	}
}

// Reset clears the dictionary and its index cache. The next value
// mapped gets index 0.
func (m *TraceMapperV05) Reset() {
	m.dictionary.reset()
}

// releasePayload lets the next Reset reuse the dictionary bytes of the
// last payload.
func (m *TraceMapperV05) releasePayload() {
	m.dictionary.release()
}

// DictionaryLen returns the number of strings in the current cycle's
// dictionary.
func (m *TraceMapperV05) DictionaryLen() int {
	return m.dictionary.len()
}

func (m *TraceMapperV05) Endpoint() string { return EndpointV05 }

func (m *TraceMapperV05) MessageBufferSize() int { return m.bufferSize }
