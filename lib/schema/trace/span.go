// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

// Sampling priorities, as understood by the agent.
const (
	PriorityUserReject = -1
	PriorityAutoReject = 0
	PriorityAutoKeep   = 1
	PriorityUserKeep   = 2
)

// Span is one finished unit of traced work.
type Span struct {
	// TraceID is shared by every span of a distributed trace.
	TraceID ID `json:"trace_id"`

	// SpanID identifies this span within its trace.
	SpanID ID `json:"span_id"`

	// ParentID is the SpanID of this span's parent, zero for a root.
	ParentID ID `json:"parent_id"`

	// Start is when the work began, as Unix nanoseconds.
	Start int64 `json:"start"`

	// Duration is how long the work took, in nanoseconds.
	Duration int64 `json:"duration"`

	// Error is non-zero when the work failed.
	Error int32 `json:"error"`

	// Service names the service that performed the work
	// ("checkout-svc").
	Service string `json:"service"`

	// Name is the operation name ("http.request", "GET /cart").
	Name string `json:"name"`

	// Resource is the resource the operation acted on, typically a
	// normalized route or query.
	Resource string `json:"resource"`

	// Type classifies the span ("web", "db", "cache"). The empty
	// string means no type.
	Type string `json:"type,omitempty"`

	// Metadata is the tag, baggage, and thread snapshot taken when the
	// span finished.
	Metadata Metadata `json:"metadata"`
}

// Trace is the ordered list of spans flushed together for one trace.
type Trace []Span

// Batch is a file-level collection of traces, the input format of the
// tracewire command.
type Batch struct {
	Traces []Trace `json:"traces"`
}

// SpanCount returns the total number of spans across all traces.
func (b *Batch) SpanCount() int {
	count := 0
	for _, trace := range b.Traces {
		count += len(trace)
	}
	return count
}

// Metadata is the tag and context snapshot of a finished span.
type Metadata struct {
	// Tags are the span's key/value tags. Values whose type has an
	// integer or float kind, named types such as time.Duration
	// included, are numeric and travel in the metrics map; every other
	// value travels in the meta map as a string.
	Tags map[string]any `json:"tags,omitempty"`

	// Baggage is the propagated baggage visible to this span. Baggage
	// always travels in the meta map.
	Baggage map[string]string `json:"baggage,omitempty"`

	// ThreadName names the thread (or goroutine role) that finished
	// the span.
	ThreadName string `json:"thread_name"`

	// ThreadID identifies that thread.
	ThreadID int64 `json:"thread_id"`

	// SamplingPriority is the trace's sampling decision, nil when no
	// decision has been made.
	SamplingPriority *int `json:"sampling_priority,omitempty"`

	// Measured requests trace metrics for a span that is not top-level.
	Measured bool `json:"measured,omitempty"`

	// TopLevel marks the entry span of a service.
	TopLevel bool `json:"top_level,omitempty"`

	// HTTPStatusCode is the response status of an HTTP span, zero when
	// absent.
	HTTPStatusCode int `json:"http_status_code,omitempty"`
}

// HasSamplingPriority reports whether a sampling decision is recorded.
func (m *Metadata) HasSamplingPriority() bool {
	return m.SamplingPriority != nil
}

// HasHTTPStatusCode reports whether an HTTP status is recorded.
func (m *Metadata) HasHTTPStatusCode() bool {
	return m.HTTPStatusCode != 0
}

// Priority returns a pointer to p, for populating
// Metadata.SamplingPriority.
func Priority(p int) *int {
	return &p
}

// UTF8Bytes is a string value that is already UTF-8 encoded. Encoders
// write it verbatim instead of converting it from a Go string.
type UTF8Bytes []byte

// String returns the value as a Go string.
func (b UTF8Bytes) String() string { return string(b) }
