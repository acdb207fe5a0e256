// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

// Well-known meta and metrics keys the mappers add to every span.
const (
	ThreadNameKey       = "thread.name"
	ThreadIDKey         = "thread.id"
	HTTPStatusKey       = "http.status_code"
	SamplingPriorityKey = "_sampling_priority_v1"
	MeasuredKey         = "_dd.measured"
	TopLevelKey         = "_dd.top_level"
)

// Agent endpoint versions.
const (
	EndpointV04 = "v0.4"
	EndpointV05 = "v0.5"
)

// spanFieldCount is the number of fields of an encoded span in both
// wire versions: array elements in v0.5, map entries in v0.4.
const spanFieldCount = 12

// DefaultBufferSize is the default message buffer size and initial
// dictionary capacity.
const DefaultBufferSize = 2 << 20
