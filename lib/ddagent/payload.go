// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// Payload is the finished rendering of one flush cycle, ready to be
// sent to an agent. A payload is immutable. Its segments borrow the
// buffers of the cycle that produced it, which stay valid after the
// mapper and body buffer are reset.
type Payload interface {
	// TraceCount is the number of traces in the payload.
	TraceCount() int

	// SizeInBytes is the exact number of bytes WriteTo writes.
	SizeInBytes() int

	// Segments returns the payload as an ordered list of byte slices
	// whose concatenation is the encoded payload. Callers must not
	// modify them.
	Segments() [][]byte

	// WriteTo writes every segment to w in order. Write failures are
	// wrapped with serialization.ErrIOFailure.
	WriteTo(w io.Writer) (int64, error)

	// Bytes returns a contiguous copy of the payload.
	Bytes() []byte

	// Reader returns a reader over the payload without copying it.
	Reader() io.Reader

	// Endpoint is the wire version the payload is encoded for.
	Endpoint() string
}

// outerArrayHeader is the 2-element array that wraps a v0.5 payload.
var outerArrayHeader = []byte{0x92}

// payloadV05 frames a v0.5 cycle as [dictionary, traces].
type payloadV05 struct {
	dictionary  []byte
	stringCount int
	traceCount  int
	body        []byte
}

func (p *payloadV05) TraceCount() int  { return p.traceCount }
func (p *payloadV05) Endpoint() string { return EndpointV05 }

func (p *payloadV05) SizeInBytes() int {
	return len(outerArrayHeader) +
		serialization.ArrayHeaderSize(p.stringCount) + len(p.dictionary) +
		serialization.ArrayHeaderSize(p.traceCount) + len(p.body)
}

func (p *payloadV05) Segments() [][]byte {
	return [][]byte{
		outerArrayHeader,
		serialization.ArrayHeader(p.stringCount),
		p.dictionary,
		serialization.ArrayHeader(p.traceCount),
		p.body,
	}
}

func (p *payloadV05) WriteTo(w io.Writer) (int64, error) { return writeSegments(w, p.Segments()) }
func (p *payloadV05) Bytes() []byte                      { return joinSegments(p.Segments(), p.SizeInBytes()) }
func (p *payloadV05) Reader() io.Reader                  { return segmentReader(p.Segments()) }

// payloadV04 frames a v0.4 cycle as a bare traces array.
type payloadV04 struct {
	traceCount int
	body       []byte
}

func (p *payloadV04) TraceCount() int  { return p.traceCount }
func (p *payloadV04) Endpoint() string { return EndpointV04 }

func (p *payloadV04) SizeInBytes() int {
	return serialization.ArrayHeaderSize(p.traceCount) + len(p.body)
}

func (p *payloadV04) Segments() [][]byte {
	return [][]byte{serialization.ArrayHeader(p.traceCount), p.body}
}

func (p *payloadV04) WriteTo(w io.Writer) (int64, error) { return writeSegments(w, p.Segments()) }
func (p *payloadV04) Bytes() []byte                      { return joinSegments(p.Segments(), p.SizeInBytes()) }
func (p *payloadV04) Reader() io.Reader                  { return segmentReader(p.Segments()) }

// writeSegments drains each segment into w, retrying after short
// writes. A writer that accepts nothing without an error is treated as
// failed.
func writeSegments(w io.Writer, segments [][]byte) (int64, error) {
	var total int64
	for index, segment := range segments {
		for len(segment) > 0 {
			n, err := w.Write(segment)
			total += int64(n)
			segment = segment[n:]
			if err == nil && n == 0 {
				err = io.ErrShortWrite
			}
			if err != nil {
				return total, fmt.Errorf("%w: segment %d: %w", serialization.ErrIOFailure, index, err)
			}
		}
	}
	return total, nil
}

func joinSegments(segments [][]byte, size int) []byte {
	joined := make([]byte, 0, size)
	for _, segment := range segments {
		joined = append(joined, segment...)
	}
	return joined
}

func segmentReader(segments [][]byte) io.Reader {
	readers := make([]io.Reader, len(segments))
	for i, segment := range segments {
		readers[i] = bytes.NewReader(segment)
	}
	return io.MultiReader(readers...)
}
