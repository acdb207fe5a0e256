// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"errors"
	"fmt"
	"math"

	"github.com/tinylib/msgp/msgp"
)

// ErrMalformedPayload is returned by DecodePayload when the bytes do
// not form a complete payload of the requested endpoint version.
var ErrMalformedPayload = errors.New("malformed trace payload")

// DecodedPayload is a payload read back into plain values, with every
// dictionary reference resolved.
type DecodedPayload struct {
	Endpoint string `json:"endpoint"`

	// Dictionary is the v0.5 string table in index order. It is nil
	// for v0.4 payloads.
	Dictionary []string `json:"dictionary,omitempty"`

	Traces [][]DecodedSpan `json:"traces"`
}

// SpanCount returns the number of spans across all traces.
func (p *DecodedPayload) SpanCount() int {
	count := 0
	for _, spans := range p.Traces {
		count += len(spans)
	}
	return count
}

// DecodedSpan is one span as an agent sees it.
type DecodedSpan struct {
	Service  string             `json:"service"`
	Name     string             `json:"name"`
	Resource string             `json:"resource"`
	TraceID  uint64             `json:"trace_id"`
	SpanID   uint64             `json:"span_id"`
	ParentID uint64             `json:"parent_id"`
	Start    int64              `json:"start"`
	Duration int64              `json:"duration"`
	Error    int32              `json:"error"`
	Meta     map[string]string  `json:"meta"`
	Metrics  map[string]float64 `json:"metrics"`
	Type     string             `json:"type"`
}

// DecodePayload parses a complete payload encoded for endpoint. It
// fails if any container's declared size disagrees with its content,
// if a dictionary index is out of range, or if bytes remain after the
// payload.
func DecodePayload(endpoint string, data []byte) (*DecodedPayload, error) {
	decoder := &payloadDecoder{remaining: data}
	payload := &DecodedPayload{Endpoint: endpoint}

	var err error
	switch endpoint {
	case EndpointV05:
		err = decoder.decodeV05(payload)
	case EndpointV04:
		err = decoder.decodeV04(payload)
	default:
		return nil, fmt.Errorf("unsupported agent endpoint %q", endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s at offset %d: %w", ErrMalformedPayload, endpoint, len(data)-len(decoder.remaining), err)
	}
	if len(decoder.remaining) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, len(decoder.remaining))
	}
	return payload, nil
}

// payloadDecoder consumes msgpack values from the front of remaining.
type payloadDecoder struct {
	remaining  []byte
	dictionary []string
}

func (d *payloadDecoder) decodeV05(payload *DecodedPayload) error {
	outer, err := d.readArrayHeader()
	if err != nil {
		return err
	}
	if outer != 2 {
		return fmt.Errorf("outer array has %d elements, want 2", outer)
	}

	stringCount, err := d.readArrayHeader()
	if err != nil {
		return fmt.Errorf("dictionary header: %w", err)
	}
	d.dictionary = make([]string, 0, stringCount)
	for i := 0; i < stringCount; i++ {
		text, err := d.readString()
		if err != nil {
			return fmt.Errorf("dictionary entry %d: %w", i, err)
		}
		d.dictionary = append(d.dictionary, text)
	}
	payload.Dictionary = d.dictionary

	return d.traces(payload, d.spanV05)
}

func (d *payloadDecoder) decodeV04(payload *DecodedPayload) error {
	return d.traces(payload, d.spanV04)
}

func (d *payloadDecoder) traces(payload *DecodedPayload, span func(*DecodedSpan) error) error {
	traceCount, err := d.readArrayHeader()
	if err != nil {
		return fmt.Errorf("traces header: %w", err)
	}
	payload.Traces = make([][]DecodedSpan, 0, traceCount)
	for traceIndex := 0; traceIndex < traceCount; traceIndex++ {
		spanCount, err := d.readArrayHeader()
		if err != nil {
			return fmt.Errorf("trace %d: %w", traceIndex, err)
		}
		spans := make([]DecodedSpan, spanCount)
		for spanIndex := range spans {
			if err := span(&spans[spanIndex]); err != nil {
				return fmt.Errorf("trace %d span %d: %w", traceIndex, spanIndex, err)
			}
		}
		payload.Traces = append(payload.Traces, spans)
	}
	return nil
}

func (d *payloadDecoder) spanV05(span *DecodedSpan) error {
	fields, err := d.readArrayHeader()
	if err != nil {
		return err
	}
	if fields != spanFieldCount {
		return fmt.Errorf("span has %d fields, want %d", fields, spanFieldCount)
	}
	steps := []func() error{
		func() (err error) { span.Service, err = d.readIndexedString(); return },
		func() (err error) { span.Name, err = d.readIndexedString(); return },
		func() (err error) { span.Resource, err = d.readIndexedString(); return },
		func() (err error) { span.TraceID, err = d.readUint64(); return },
		func() (err error) { span.SpanID, err = d.readUint64(); return },
		func() (err error) { span.ParentID, err = d.readUint64(); return },
		func() (err error) { span.Start, err = d.readInt64(); return },
		func() (err error) { span.Duration, err = d.readInt64(); return },
		func() (err error) { span.Error, err = d.readInt32(); return },
		func() (err error) { span.Meta, err = d.meta(d.readIndexedString); return },
		func() (err error) { span.Metrics, err = d.metrics(d.readIndexedString); return },
		func() (err error) { span.Type, err = d.readIndexedString(); return },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *payloadDecoder) spanV04(span *DecodedSpan) error {
	pairs, err := d.readMapHeader()
	if err != nil {
		return err
	}
	if pairs != spanFieldCount {
		return fmt.Errorf("span has %d fields, want %d", pairs, spanFieldCount)
	}
	seen := make(map[string]bool, spanFieldCount)
	for range pairs {
		key, err := d.readString()
		if err != nil {
			return err
		}
		if seen[key] {
			return fmt.Errorf("duplicate span field %q", key)
		}
		seen[key] = true
		switch key {
		case "service":
			span.Service, err = d.readString()
		case "name":
			span.Name, err = d.readString()
		case "resource":
			span.Resource, err = d.readString()
		case "trace_id":
			span.TraceID, err = d.readUint64()
		case "span_id":
			span.SpanID, err = d.readUint64()
		case "parent_id":
			span.ParentID, err = d.readUint64()
		case "start":
			span.Start, err = d.readInt64()
		case "duration":
			span.Duration, err = d.readInt64()
		case "error":
			span.Error, err = d.readInt32()
		case "meta":
			span.Meta, err = d.meta(d.readString)
		case "metrics":
			span.Metrics, err = d.metrics(d.readString)
		case "type":
			span.Type, err = d.readString()
		default:
			return fmt.Errorf("unknown span field %q", key)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

func (d *payloadDecoder) meta(text func() (string, error)) (map[string]string, error) {
	pairs, err := d.readMapHeader()
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string, pairs)
	for range pairs {
		key, err := text()
		if err != nil {
			return nil, err
		}
		value, err := text()
		if err != nil {
			return nil, fmt.Errorf("meta %q: %w", key, err)
		}
		meta[key] = value
	}
	return meta, nil
}

func (d *payloadDecoder) metrics(text func() (string, error)) (map[string]float64, error) {
	pairs, err := d.readMapHeader()
	if err != nil {
		return nil, err
	}
	metrics := make(map[string]float64, pairs)
	for range pairs {
		key, err := text()
		if err != nil {
			return nil, err
		}
		value, err := d.readNumber()
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", key, err)
		}
		metrics[key] = value
	}
	return metrics, nil
}

func (d *payloadDecoder) readArrayHeader() (int, error) {
	size, rest, err := msgp.ReadArrayHeaderBytes(d.remaining)
	if err != nil {
		return 0, err
	}
	// Every element takes at least one byte.
	if uint64(size) > uint64(len(rest)) {
		return 0, fmt.Errorf("array declares %d elements but only %d bytes remain", size, len(rest))
	}
	d.remaining = rest
	return int(size), nil
}

func (d *payloadDecoder) readMapHeader() (int, error) {
	size, rest, err := msgp.ReadMapHeaderBytes(d.remaining)
	if err != nil {
		return 0, err
	}
	// Every pair takes at least two bytes.
	if 2*uint64(size) > uint64(len(rest)) {
		return 0, fmt.Errorf("map declares %d pairs but only %d bytes remain", size, len(rest))
	}
	d.remaining = rest
	return int(size), nil
}

func (d *payloadDecoder) readString() (string, error) {
	text, rest, err := msgp.ReadStringBytes(d.remaining)
	if err != nil {
		return "", err
	}
	d.remaining = rest
	return text, nil
}

// readIndexedString reads a dictionary index and resolves it.
func (d *payloadDecoder) readIndexedString() (string, error) {
	index, err := d.readInt64()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= int64(len(d.dictionary)) {
		return "", fmt.Errorf("dictionary index %d out of range [0, %d)", index, len(d.dictionary))
	}
	return d.dictionary[index], nil
}

// readInt64 reads any msgpack integer that fits in an int64. msgpack
// writers choose the smallest encoding, so a non-negative value may
// arrive in either the signed or the unsigned family.
func (d *payloadDecoder) readInt64() (int64, error) {
	switch msgp.NextType(d.remaining) {
	case msgp.UintType:
		value, err := d.readUint64()
		if err != nil {
			return 0, err
		}
		if value > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", value)
		}
		return int64(value), nil
	default:
		value, rest, err := msgp.ReadInt64Bytes(d.remaining)
		if err != nil {
			return 0, err
		}
		d.remaining = rest
		return value, nil
	}
}

func (d *payloadDecoder) readUint64() (uint64, error) {
	if msgp.NextType(d.remaining) == msgp.IntType {
		value, rest, err := msgp.ReadInt64Bytes(d.remaining)
		if err != nil {
			return 0, err
		}
		if value < 0 {
			return 0, fmt.Errorf("integer %d is negative", value)
		}
		d.remaining = rest
		return uint64(value), nil
	}
	value, rest, err := msgp.ReadUint64Bytes(d.remaining)
	if err != nil {
		return 0, err
	}
	d.remaining = rest
	return value, nil
}

func (d *payloadDecoder) readInt32() (int32, error) {
	value, err := d.readInt64()
	if err != nil {
		return 0, err
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, fmt.Errorf("integer %d overflows int32", value)
	}
	return int32(value), nil
}

// readNumber reads a metric value of any numeric msgpack type.
func (d *payloadDecoder) readNumber() (float64, error) {
	switch msgp.NextType(d.remaining) {
	case msgp.Float64Type:
		value, rest, err := msgp.ReadFloat64Bytes(d.remaining)
		if err != nil {
			return 0, err
		}
		d.remaining = rest
		return value, nil
	case msgp.Float32Type:
		value, rest, err := msgp.ReadFloat32Bytes(d.remaining)
		if err != nil {
			return 0, err
		}
		d.remaining = rest
		return float64(value), nil
	case msgp.UintType:
		value, err := d.readUint64()
		return float64(value), err
	default:
		value, err := d.readInt64()
		return float64(value), err
	}
}
