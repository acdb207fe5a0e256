// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trace defines the span records handed to the trace wire
// encoders: finished spans with their identity, timing, and a snapshot
// of their tag, baggage, and thread metadata.
//
// The encoders only read these records. A span is fully populated by
// the tracing subsystem before it reaches a flush cycle and is never
// mutated afterwards.
//
// JSON struct tags are used so that the fxamacker/cbor library's
// json-tag fallback provides the same field naming for span batches
// stored as JSON and as CBOR (see lib/codec).
package trace
