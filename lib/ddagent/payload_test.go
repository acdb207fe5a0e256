// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

func TestEmptyCyclePayload(t *testing.T) {
	tests := []struct {
		mapper TraceMapper
		want   []byte
	}{
		{NewTraceMapperV05(64, 1024), []byte{0x92, 0x90, 0x90}},
		{NewTraceMapperV04(1024), []byte{0x90}},
	}
	for _, test := range tests {
		t.Run(test.mapper.Endpoint(), func(t *testing.T) {
			payload := test.mapper.NewPayload(0, nil)
			if payload.TraceCount() != 0 {
				t.Errorf("TraceCount() = %d", payload.TraceCount())
			}
			if payload.SizeInBytes() != len(test.want) {
				t.Errorf("SizeInBytes() = %d, want %d", payload.SizeInBytes(), len(test.want))
			}
			if !bytes.Equal(payload.Bytes(), test.want) {
				t.Errorf("Bytes() = %x, want %x", payload.Bytes(), test.want)
			}
			decoded := decodeCycle(t, payload)
			if len(decoded.Traces) != 0 || len(decoded.Dictionary) != 0 {
				t.Errorf("decoded %+v, want empty", decoded)
			}
		})
	}
}

// manyTraces returns count single-span traces with distinct services,
// enough to push both dictionary and trace headers past the fixarray
// range.
func manyTraces(count int) []trace.Trace {
	traces := make([]trace.Trace, count)
	for i := range traces {
		traces[i] = trace.Trace{{
			TraceID:  trace.ID(i + 1),
			SpanID:   trace.ID(i + 1),
			Service:  fmt.Sprintf("service-%03d", i),
			Name:     "op",
			Resource: "res",
			Metadata: trace.Metadata{Tags: map[string]any{"index": i}},
		}}
	}
	return traces
}

func TestPayloadSizeMatchesBytesWritten(t *testing.T) {
	for _, count := range []int{1, 2, 15, 16, 40, 70000} {
		for _, endpoint := range []string{EndpointV05, EndpointV04} {
			t.Run(fmt.Sprintf("%s/%d", endpoint, count), func(t *testing.T) {
				if count > 1000 && testing.Short() {
					t.Skip("large payload")
				}
				mapper, err := NewTraceMapper(endpoint, 1024, 1<<20)
				if err != nil {
					t.Fatal(err)
				}
				payload := encodeCycle(t, mapper, manyTraces(count)...)

				var out bytes.Buffer
				n, err := payload.WriteTo(&out)
				if err != nil {
					t.Fatalf("WriteTo: %v", err)
				}
				if int(n) != payload.SizeInBytes() || out.Len() != payload.SizeInBytes() {
					t.Errorf("WriteTo wrote %d (buffer %d), SizeInBytes() = %d", n, out.Len(), payload.SizeInBytes())
				}
				if !bytes.Equal(out.Bytes(), payload.Bytes()) {
					t.Error("WriteTo and Bytes disagree")
				}
				read, err := io.ReadAll(payload.Reader())
				if err != nil || !bytes.Equal(read, out.Bytes()) {
					t.Errorf("Reader disagrees with WriteTo (err=%v)", err)
				}
				decoded := decodeCycle(t, payload)
				if decoded.SpanCount() != count {
					t.Errorf("decoded %d spans, want %d", decoded.SpanCount(), count)
				}
			})
		}
	}
}

func TestPayloadSegmentsConcatenateToBytes(t *testing.T) {
	payload := encodeCycle(t, NewTraceMapperV05(64, 1024), checkoutTrace())
	segments := payload.Segments()
	if len(segments) != 5 {
		t.Fatalf("v0.5 segments = %d, want 5", len(segments))
	}
	if !bytes.Equal(segments[0], []byte{0x92}) {
		t.Errorf("first segment = %x, want 92", segments[0])
	}
	if got := bytes.Join(segments, nil); !bytes.Equal(got, payload.Bytes()) {
		t.Error("joined segments differ from Bytes()")
	}
}

// shortWriter accepts at most limit bytes per call.
type shortWriter struct {
	out   bytes.Buffer
	limit int
	calls int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	return w.out.Write(p)
}

func TestWriteToRetriesShortWrites(t *testing.T) {
	payload := encodeCycle(t, NewTraceMapperV05(64, 1024), checkoutTrace(), trace.Trace{fullSpan()})
	writer := &shortWriter{limit: 3}
	n, err := payload.WriteTo(writer)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if int(n) != payload.SizeInBytes() {
		t.Errorf("wrote %d, SizeInBytes() = %d", n, payload.SizeInBytes())
	}
	if !bytes.Equal(writer.out.Bytes(), payload.Bytes()) {
		t.Error("short-write output differs from Bytes()")
	}
	if writer.calls <= len(payload.Segments()) {
		t.Errorf("only %d Write calls; short writes were not exercised", writer.calls)
	}
}

type failingWriter struct {
	allowed int
	err     error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.allowed <= 0 {
		return 0, w.err
	}
	n := min(len(p), w.allowed)
	w.allowed -= n
	return n, nil
}

type stalledWriter struct{}

func (stalledWriter) Write([]byte) (int, error) { return 0, nil }

func TestWriteToWrapsFailures(t *testing.T) {
	payload := encodeCycle(t, NewTraceMapperV05(64, 1024), checkoutTrace())
	sinkErr := errors.New("connection reset")

	n, err := payload.WriteTo(&failingWriter{allowed: 4, err: sinkErr})
	if !errors.Is(err, serialization.ErrIOFailure) || !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want ErrIOFailure wrapping the sink error", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4 bytes before the failure", n)
	}

	_, err = payload.WriteTo(stalledWriter{})
	if !errors.Is(err, serialization.ErrIOFailure) || !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("stalled writer err = %v, want ErrIOFailure wrapping io.ErrShortWrite", err)
	}
}
