// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"testing"

	"github.com/tinylib/msgp/msgp"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// encodeCycle runs one flush cycle of mapper over traces in an
// unbounded body buffer and returns the cycle's payload.
func encodeCycle(t *testing.T, mapper TraceMapper, traces ...trace.Trace) Payload {
	t.Helper()
	buffer := serialization.NewGrowableBuffer(256, 0)
	writer := serialization.NewMsgPackWriter(buffer)
	for i, spans := range traces {
		if err := serialization.Format(writer, spans, mapper); err != nil {
			t.Fatalf("Format trace %d: %v", i, err)
		}
	}
	if buffer.MessageCount() != len(traces) {
		t.Fatalf("MessageCount = %d, want %d", buffer.MessageCount(), len(traces))
	}
	return mapper.NewPayload(buffer.MessageCount(), buffer.Slice())
}

func decodeCycle(t *testing.T, payload Payload) *DecodedPayload {
	t.Helper()
	decoded, err := DecodePayload(payload.Endpoint(), payload.Bytes())
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(decoded.Traces) != payload.TraceCount() {
		t.Fatalf("decoded %d traces, payload declares %d", len(decoded.Traces), payload.TraceCount())
	}
	return decoded
}

// rawSpanFieldsV05 returns the undecoded bytes of each field of each
// span in a v0.5 payload, flattened across traces.
func rawSpanFieldsV05(t *testing.T, data []byte) [][][]byte {
	t.Helper()
	var err error
	fail := func(what string) {
		if err != nil {
			t.Fatalf("%s: %v", what, err)
		}
	}

	_, data, err = msgp.ReadArrayHeaderBytes(data)
	fail("outer header")
	var stringCount uint32
	stringCount, data, err = msgp.ReadArrayHeaderBytes(data)
	fail("dictionary header")
	for range stringCount {
		data, err = msgp.Skip(data)
		fail("dictionary entry")
	}
	var traceCount uint32
	traceCount, data, err = msgp.ReadArrayHeaderBytes(data)
	fail("traces header")

	var spans [][][]byte
	for range traceCount {
		var spanCount uint32
		spanCount, data, err = msgp.ReadArrayHeaderBytes(data)
		fail("trace header")
		for range spanCount {
			var fieldCount uint32
			fieldCount, data, err = msgp.ReadArrayHeaderBytes(data)
			fail("span header")
			fields := make([][]byte, fieldCount)
			for i := range fields {
				var rest []byte
				rest, err = msgp.Skip(data)
				fail("span field")
				fields[i] = data[:len(data)-len(rest)]
				data = rest
			}
			spans = append(spans, fields)
		}
	}
	return spans
}

func rawIndex(t *testing.T, field []byte) int64 {
	t.Helper()
	if msgp.NextType(field) != msgp.IntType && msgp.NextType(field) != msgp.UintType {
		t.Fatalf("field %x is %v, want an integer dictionary index", field, msgp.NextType(field))
	}
	index, _, err := msgp.ReadInt64Bytes(field)
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	return index
}

func indexOf(dictionary []string, value string) int {
	for i, entry := range dictionary {
		if entry == value {
			return i
		}
	}
	return -1
}

// checkoutTrace is two spans of one service with different operations.
func checkoutTrace() trace.Trace {
	return trace.Trace{
		{
			TraceID: 1001, SpanID: 1, Start: 1_700_000_000_000_000_000, Duration: 2_500_000,
			Service: "checkout-svc", Name: "GET /cart", Resource: "GET /cart",
		},
		{
			TraceID: 1001, SpanID: 2, ParentID: 1, Start: 1_700_000_000_001_000_000, Duration: 900_000,
			Service: "checkout-svc", Name: "POST /pay", Resource: "POST /pay",
		},
	}
}
