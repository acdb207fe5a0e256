// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serialization

import "fmt"

// GrowableBuffer is an append-only byte store that tracks how many
// top-level messages have been written into it. It grows by doubling
// its backing array (copying existing content) and can be reset for
// reuse across flush cycles.
//
// A buffer may carry a hard limit on its total content. Appends that
// would cross the limit fail with [ErrCapacityExceeded] and leave the
// buffer unchanged. A limit of zero means the buffer is unbounded.
//
// The bytes returned by [GrowableBuffer.Slice] are never written again
// by the buffer: a Reset after Slice moves the buffer onto a fresh
// backing array rather than truncating the one the view refers to.
type GrowableBuffer struct {
	data []byte

	// mark is the offset just past the last complete message.
	mark         int
	messageCount int
	limit        int

	// shared is set once Slice has handed out a view of data.
	shared bool
}

// NewGrowableBuffer creates a buffer with the given initial capacity
// and hard limit. initialCapacity must be positive and limit must not
// be negative; a non-zero limit caps the initial capacity.
func NewGrowableBuffer(initialCapacity, limit int) *GrowableBuffer {
	if initialCapacity <= 0 {
		panic(fmt.Sprintf("serialization: initial capacity must be positive, got %d", initialCapacity))
	}
	if limit < 0 {
		panic(fmt.Sprintf("serialization: limit must not be negative, got %d", limit))
	}
	if limit > 0 && initialCapacity > limit {
		initialCapacity = limit
	}
	return &GrowableBuffer{
		data:  make([]byte, 0, initialCapacity),
		limit: limit,
	}
}

// Append copies p onto the end of the buffer and returns the offset at
// which p starts. If the result would exceed the buffer's limit, Append
// returns an error wrapping ErrCapacityExceeded and writes nothing.
func (b *GrowableBuffer) Append(p []byte) (int, error) {
	position := len(b.data)
	required := position + len(p)
	if b.limit > 0 && required > b.limit {
		return position, fmt.Errorf("%w: %d bytes at offset %d would exceed limit of %d bytes",
			ErrCapacityExceeded, len(p), position, b.limit)
	}
	if required > cap(b.data) {
		b.grow(required)
	}
	b.data = append(b.data, p...)
	return position, nil
}

// grow reallocates the backing array to at least required bytes,
// doubling from the current capacity.
func (b *GrowableBuffer) grow(required int) {
	capacity := max(cap(b.data), 64)
	for capacity < required {
		capacity *= 2
	}
	if b.limit > 0 && capacity > b.limit {
		capacity = b.limit
	}
	grown := make([]byte, len(b.data), capacity)
	copy(grown, b.data)
	b.data = grown
	// Any outstanding view now refers exclusively to the old array.
	b.shared = false
}

// Mark records the end of one complete top-level message.
func (b *GrowableBuffer) Mark() {
	b.mark = len(b.data)
	b.messageCount++
}

// Rollback discards everything written since the last Mark.
func (b *GrowableBuffer) Rollback() {
	b.data = b.data[:b.mark]
}

// MessageCount returns the number of messages marked since the last
// Reset. This counts top-level values, not bytes.
func (b *GrowableBuffer) MessageCount() int {
	return b.messageCount
}

// Len returns the number of bytes currently held.
func (b *GrowableBuffer) Len() int {
	return len(b.data)
}

// Limit returns the hard limit configured at construction, or zero if
// the buffer is unbounded.
func (b *GrowableBuffer) Limit() int {
	return b.limit
}

// Slice returns a view of the buffer's content. The view's capacity is
// clipped to its length, and its bytes stay valid after Reset. Take
// the view at a message boundary: bytes after the last Mark may still
// be rolled back and overwritten.
func (b *GrowableBuffer) Slice() []byte {
	b.shared = true
	return b.data[:len(b.data):len(b.data)]
}

// Release declares that no view returned by Slice is still in use, so
// the next Reset may truncate and reuse the backing array.
func (b *GrowableBuffer) Release() {
	b.shared = false
}

// Reset empties the buffer and sets MessageCount back to zero. The
// backing array is reused unless a view of it is still outstanding.
func (b *GrowableBuffer) Reset() {
	if b.shared {
		b.data = make([]byte, 0, cap(b.data))
		b.shared = false
	} else {
		b.data = b.data[:0]
	}
	b.mark = 0
	b.messageCount = 0
}
