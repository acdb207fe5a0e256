// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// stringEncoder writes a meta key, meta value, or metrics key.
type stringEncoder func(writable serialization.Writable, value any)

// metaWriter writes a span's meta and metrics maps.
//
// Tag and baggage keys are visited in sorted order so that the same
// span always produces the same bytes and dictionary indices. Baggage
// entries and tags that share a key are both written; downstream
// readers fold them into one map in write order.
type metaWriter struct {
	encode stringEncoder

	// Scratch slices reused across spans.
	tagKeys     []string
	baggageKeys []string
}

func newMetaWriter(encode stringEncoder) *metaWriter {
	return &metaWriter{encode: encode}
}

// write emits the meta map followed by the metrics map.
func (m *metaWriter) write(writable serialization.Writable, metadata *trace.Metadata) {
	m.tagKeys = sortedKeys(m.tagKeys[:0], metadata.Tags)
	m.baggageKeys = sortedKeys(m.baggageKeys[:0], metadata.Baggage)

	// Sizing pass.
	metaSize := len(metadata.Baggage) + 1
	if metadata.HasHTTPStatusCode() {
		metaSize++
	}
	metricsSize := 1
	if metadata.HasSamplingPriority() {
		metricsSize++
	}
	if metadata.Measured {
		metricsSize++
	}
	if metadata.TopLevel {
		metricsSize++
	}
	for _, key := range m.tagKeys {
		if serialization.IsNumber(metadata.Tags[key]) {
			metricsSize++
		} else {
			metaSize++
		}
	}

	// Emission pass. The order here must cover exactly what the sizing
	// pass counted.
	writable.StartMap(metaSize)
	written := 0
	for _, key := range m.baggageKeys {
		m.encode(writable, key)
		m.encode(writable, metadata.Baggage[key])
		written++
	}
	m.encode(writable, ThreadNameKey)
	m.encode(writable, metadata.ThreadName)
	written++
	if metadata.HasHTTPStatusCode() {
		m.encode(writable, HTTPStatusKey)
		m.encode(writable, metadata.HTTPStatusCode)
		written++
	}
	for _, key := range m.tagKeys {
		if value := metadata.Tags[key]; !serialization.IsNumber(value) {
			m.encode(writable, key)
			m.encode(writable, value)
			written++
		}
	}
	checkMapSize("meta", metaSize, written)

	writable.StartMap(metricsSize)
	written = 0
	if metadata.HasSamplingPriority() {
		m.encode(writable, SamplingPriorityKey)
		writable.WriteInt(*metadata.SamplingPriority)
		written++
	}
	if metadata.Measured {
		m.encode(writable, MeasuredKey)
		writable.WriteInt(1)
		written++
	}
	if metadata.TopLevel {
		m.encode(writable, TopLevelKey)
		writable.WriteInt(1)
		written++
	}
	m.encode(writable, ThreadIDKey)
	writable.WriteLong(metadata.ThreadID)
	written++
	for _, key := range m.tagKeys {
		if value := metadata.Tags[key]; serialization.IsNumber(value) {
			m.encode(writable, key)
			writable.WriteObject(value, nil)
			written++
		}
	}
	checkMapSize("metrics", metricsSize, written)
}

func checkMapSize(name string, declared, written int) {
	if declared != written {
		panic(fmt.Errorf("%w: %s map declared %d entries but %d were written",
			serialization.ErrInconsistentState, name, declared, written))
	}
}

func sortedKeys[V any](keys []string, values map[string]V) []string {
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
