// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serialization

import (
	"fmt"
	"reflect"

	"github.com/tinylib/msgp/msgp"
)

// Writable is the write contract shared by every value sink the trace
// mappers emit into.
//
// StartArray(n) and StartMap(n) commit the caller to writing exactly n
// further values (n key/value pairs for a map). Writable
// implementations do not verify this; a mismatch produces a payload
// that no reader can parse.
//
// Errors are sticky. After the first failed write every later write is
// a no-op and Err returns the original failure.
type Writable interface {
	WriteNil()
	WriteBool(value bool)
	WriteInt(value int)
	WriteLong(value int64)
	WriteUint64(value uint64)
	WriteFloat64(value float64)
	WriteString(value string)

	// WriteRawBytesString writes value as a msgpack string without
	// re-encoding it. The bytes must already be valid UTF-8.
	WriteRawBytesString(value []byte)

	StartArray(elementCount int)
	StartMap(pairCount int)

	// WriteObject writes value using its native msgpack form when its
	// kind is known, and otherwise hands it to encoder. A nil encoder
	// falls back to the value's string form.
	WriteObject(value any, encoder ObjectEncoder)

	// Err returns the first write failure, or nil.
	Err() error
}

// ObjectEncoder writes a value whose kind the writer does not know
// natively.
type ObjectEncoder func(value any, writable Writable)

// Mapper lays out a value of type T as a sequence of writes.
type Mapper[T any] interface {
	Map(value T, writable Writable)
}

// MapperFunc adapts an ordinary function to the Mapper interface.
type MapperFunc[T any] func(value T, writable Writable)

// Map calls f(value, writable).
func (f MapperFunc[T]) Map(value T, writable Writable) { f(value, writable) }

// MsgPackWriter encodes values as msgpack onto a GrowableBuffer. Each
// value is encoded into a reusable scratch slice and appended to the
// buffer in one call, so a value is either written whole or not at
// all.
type MsgPackWriter struct {
	buffer  *GrowableBuffer
	scratch []byte
	err     error
}

var _ Writable = (*MsgPackWriter)(nil)

// NewMsgPackWriter returns a writer that appends to buffer.
func NewMsgPackWriter(buffer *GrowableBuffer) *MsgPackWriter {
	return &MsgPackWriter{
		buffer:  buffer,
		scratch: make([]byte, 0, 64),
	}
}

// Buffer returns the buffer this writer appends to.
func (w *MsgPackWriter) Buffer() *GrowableBuffer {
	return w.buffer
}

// Err returns the first write failure since the last successful
// Format, or nil.
func (w *MsgPackWriter) Err() error {
	return w.err
}

// emit appends an encoded value to the buffer. The encoded slice
// becomes the new scratch so that growth is kept across calls.
func (w *MsgPackWriter) emit(encoded []byte) {
	w.scratch = encoded[:0]
	if _, err := w.buffer.Append(encoded); err != nil {
		w.err = err
	}
}

func (w *MsgPackWriter) WriteNil() {
	if w.err == nil {
		w.emit(msgp.AppendNil(w.scratch[:0]))
	}
}

func (w *MsgPackWriter) WriteBool(value bool) {
	if w.err == nil {
		w.emit(msgp.AppendBool(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteInt(value int) {
	if w.err == nil {
		w.emit(msgp.AppendInt(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteLong(value int64) {
	if w.err == nil {
		w.emit(msgp.AppendInt64(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteUint64(value uint64) {
	if w.err == nil {
		w.emit(msgp.AppendUint64(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteFloat64(value float64) {
	if w.err == nil {
		w.emit(msgp.AppendFloat64(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteString(value string) {
	if w.err == nil {
		w.emit(msgp.AppendString(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) WriteRawBytesString(value []byte) {
	if w.err == nil {
		w.emit(msgp.AppendStringFromBytes(w.scratch[:0], value))
	}
}

func (w *MsgPackWriter) StartArray(elementCount int) {
	if w.err == nil {
		w.emit(msgp.AppendArrayHeader(w.scratch[:0], uint32(elementCount)))
	}
}

func (w *MsgPackWriter) StartMap(pairCount int) {
	if w.err == nil {
		w.emit(msgp.AppendMapHeader(w.scratch[:0], uint32(pairCount)))
	}
}

func (w *MsgPackWriter) WriteObject(value any, encoder ObjectEncoder) {
	if w.err != nil {
		return
	}
	switch typed := value.(type) {
	case nil:
		w.WriteNil()
	case bool:
		w.WriteBool(typed)
	case int:
		w.WriteLong(int64(typed))
	case int8:
		w.WriteLong(int64(typed))
	case int16:
		w.WriteLong(int64(typed))
	case int32:
		w.WriteLong(int64(typed))
	case int64:
		w.WriteLong(typed)
	case uint:
		w.WriteUint64(uint64(typed))
	case uint8:
		w.WriteUint64(uint64(typed))
	case uint16:
		w.WriteUint64(uint64(typed))
	case uint32:
		w.WriteUint64(uint64(typed))
	case uint64:
		w.WriteUint64(typed)
	case float32:
		w.emit(msgp.AppendFloat32(w.scratch[:0], typed))
	case float64:
		w.WriteFloat64(typed)
	case string:
		w.WriteString(typed)
	case []byte:
		w.WriteRawBytesString(typed)
	default:
		if w.writeNumberKind(value) {
			return
		}
		if encoder != nil {
			encoder(value, w)
			return
		}
		w.WriteString(fmt.Sprint(value))
	}
}

// writeNumberKind writes value as a number if its type is a named
// integer or float type such as time.Duration, and reports whether it
// did.
func (w *MsgPackWriter) writeNumberKind(value any) bool {
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.WriteLong(reflected.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.WriteUint64(reflected.Uint())
	case reflect.Float32:
		w.emit(msgp.AppendFloat32(w.scratch[:0], float32(reflected.Float())))
	case reflect.Float64:
		w.WriteFloat64(reflected.Float())
	default:
		return false
	}
	return true
}

// Format writes value as one top-level message using mapper. On
// success the message is marked in the writer's buffer. On failure the
// partially written message is rolled back, the writer's error is
// cleared so it can be reused, and the failure is returned.
func Format[T any](writer *MsgPackWriter, value T, mapper Mapper[T]) error {
	mapper.Map(value, writer)
	if err := writer.err; err != nil {
		writer.buffer.Rollback()
		writer.err = nil
		return err
	}
	writer.buffer.Mark()
	return nil
}

// IsNumber reports whether value's dynamic type is an integer or
// floating point type. Named types count by their underlying kind, so
// time.Duration is a number.
func IsNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	case nil, bool, string, []byte:
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
