// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"fmt"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// TraceMapper lays out traces for one agent wire contract.
//
// Map writes one trace (an array of spans) and may record per-cycle
// state such as dictionary entries. NewPayload combines that state
// with the encoded traces of the cycle, and Reset starts the next
// cycle.
type TraceMapper interface {
	serialization.Mapper[trace.Trace]

	// NewPayload builds the payload of the current cycle from the
	// encoded body: traceCount top-level trace arrays written by Map.
	// Call it after the last trace of the cycle and before Reset.
	NewPayload(traceCount int, body []byte) Payload

	// Reset discards all per-cycle state.
	Reset()

	// Endpoint identifies the wire contract ("v0.5"), which the
	// transport uses to select the agent API path.
	Endpoint() string

	// MessageBufferSize is the advisory size of the buffer traces are
	// encoded into.
	MessageBufferSize() int
}

// NewTraceMapper returns the mapper for the given endpoint version.
func NewTraceMapper(endpoint string, dictionarySize, bufferSize int) (TraceMapper, error) {
	switch endpoint {
	case EndpointV05:
		return NewTraceMapperV05(dictionarySize, bufferSize), nil
	case EndpointV04:
		return NewTraceMapperV04(bufferSize), nil
	default:
		return nil, fmt.Errorf("unsupported agent endpoint %q (supported: %s, %s)", endpoint, EndpointV05, EndpointV04)
	}
}
