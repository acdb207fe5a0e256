// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ddagent

import (
	"fmt"
	"strconv"

	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/serialization"
)

// dictionary is the v0.5 string table of one flush cycle: a buffer of
// msgpack strings plus the index assigned to each distinct value.
//
// Index i is always the i-th string in the buffer. An index is only
// cached after its string has been written, so indices never refer
// past the end of the dictionary.
type dictionary struct {
	buffer  *serialization.GrowableBuffer
	writer  *serialization.MsgPackWriter
	indices map[string]int
}

// newDictionary returns an empty dictionary. The dictionary buffer is
// unbounded: its growth is limited by the body buffer the indices are
// written into.
func newDictionary(initialCapacity int) *dictionary {
	buffer := serialization.NewGrowableBuffer(initialCapacity, 0)
	return &dictionary{
		buffer:  buffer,
		writer:  serialization.NewMsgPackWriter(buffer),
		indices: make(map[string]int),
	}
}

type dictionaryEntry struct {
	text string
	raw  []byte
}

var dictionaryEntryMapper = serialization.MapperFunc[dictionaryEntry](
	func(entry dictionaryEntry, writable serialization.Writable) {
		if entry.raw != nil {
			writable.WriteRawBytesString(entry.raw)
			return
		}
		writable.WriteString(entry.text)
	})

// encode writes the dictionary index of value to writable, first
// appending value to the dictionary if this cycle has not seen it.
// Nil is encoded as the empty string; values that are not strings are
// encoded as their string form.
func (d *dictionary) encode(writable serialization.Writable, value any) {
	if writable.Err() != nil {
		return
	}
	switch typed := value.(type) {
	case string:
		d.encodeString(writable, typed, nil)
	case trace.UTF8Bytes:
		d.encodeBytes(writable, typed)
	case []byte:
		d.encodeBytes(writable, typed)
	default:
		d.encodeString(writable, stringForm(value), nil)
	}
}

func (d *dictionary) encodeBytes(writable serialization.Writable, raw []byte) {
	if index, ok := d.indices[string(raw)]; ok {
		writable.WriteInt(index)
		return
	}
	d.encodeString(writable, string(raw), raw)
}

func (d *dictionary) encodeString(writable serialization.Writable, text string, raw []byte) {
	if index, ok := d.indices[text]; ok {
		writable.WriteInt(index)
		return
	}
	if err := serialization.Format(d.writer, dictionaryEntry{text: text, raw: raw}, dictionaryEntryMapper); err != nil {
		panic(fmt.Errorf("%w: unbounded dictionary rejected a write: %w", serialization.ErrInconsistentState, err))
	}
	index := d.buffer.MessageCount() - 1
	d.indices[text] = index
	// If this write fails the dictionary keeps an unreferenced entry,
	// which readers ignore.
	writable.WriteInt(index)
}

// len returns the number of strings in the dictionary.
func (d *dictionary) len() int {
	return d.buffer.MessageCount()
}

// snapshot returns the encoded strings and their count. The bytes stay
// valid after reset.
func (d *dictionary) snapshot() ([]byte, int) {
	return d.buffer.Slice(), d.buffer.MessageCount()
}

// release allows the next reset to reuse the bytes handed out by
// snapshot.
func (d *dictionary) release() {
	d.buffer.Release()
}

// reset empties the buffer and the index cache together.
func (d *dictionary) reset() {
	d.buffer.Reset()
	clear(d.indices)
}

// stringForm returns the string a non-numeric tag value travels as.
func stringForm(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case trace.UTF8Bytes:
		return string(typed)
	case []byte:
		return string(typed)
	case int:
		return strconv.Itoa(typed)
	case bool:
		return strconv.FormatBool(typed)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(value)
	}
}

// writeLiteral writes value as a msgpack string. Pre-encoded values
// are written without conversion.
func writeLiteral(writable serialization.Writable, value any) {
	switch typed := value.(type) {
	case string:
		writable.WriteString(typed)
	case trace.UTF8Bytes:
		writable.WriteRawBytesString(typed)
	case []byte:
		writable.WriteRawBytesString(typed)
	default:
		writable.WriteString(stringForm(value))
	}
}
