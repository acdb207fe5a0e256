// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ddagent encodes batches of finished spans into the msgpack
// payloads accepted by a local trace agent.
//
// Two wire contracts are implemented, selected by the agent endpoint
// they target:
//
//   - v0.5 ([TraceMapperV05]): a payload of [dictionary, traces]. Every
//     service, operation, resource and type name, and every meta key
//     and string value, is written once into the dictionary and
//     referenced from spans by its integer index. Each span is a
//     fixed 12-element array.
//   - v0.4 ([TraceMapperV04]): a payload of [traces] where each span is
//     a 12-entry map with literal strings.
//
// # Flush cycles
//
// A mapper is reused across flush cycles. One cycle is:
//
//	mapper.Reset()
//	for _, trace := range traces {
//	    serialization.Format(bodyWriter, trace, mapper)
//	}
//	payload := mapper.NewPayload(body.MessageCount(), body.Slice())
//
// Within a cycle, dictionary indices are assigned in strict
// first-occurrence order across every span of every trace, and the
// same value always maps to the same index. Reset empties the
// dictionary and its index cache together; the first value mapped
// afterwards gets index 0.
//
// [Dispatcher] runs this cycle against a body buffer bounded by the
// mapper's message buffer size and hands finished payloads to a
// [PayloadSink]. [Worker] owns a Dispatcher on a single goroutine.
//
// # Meta and metrics
//
// Span tags are split into two msgpack maps: string-valued "meta" and
// numeric "metrics". Msgpack writes a map's element count before its
// content, so both counts are computed in a first pass over the tags
// and the entries are emitted in a second. The declared counts always
// equal the emitted pairs; a mismatch panics with
// serialization.ErrInconsistentState.
//
// # Concurrency
//
// Mappers, dispatchers and their buffers are not safe for concurrent
// use. Run one per goroutine; parallel flushing uses one mapper per
// flushing goroutine. Payloads are immutable once built and may be
// handed to another goroutine.
package ddagent
