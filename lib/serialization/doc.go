// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package serialization provides the low-level building blocks of the
// trace wire encoders: a growable byte buffer that counts top-level
// messages, and a msgpack value writer that appends onto it.
//
// The writer follows the msgpack spec
// (https://github.com/msgpack/msgpack/blob/master/spec.md): every value
// carries a leading type/length tag, integers use the smallest form
// that fits, and strings, arrays and maps carry explicit lengths. A
// reader never scans for a terminator.
//
// Messages are written through [Format], which runs a [Mapper] against
// a [MsgPackWriter] and marks the end of one top-level value in the
// underlying [GrowableBuffer]. A failed message is rolled back so the
// buffer only ever contains whole values:
//
//	buffer := serialization.NewGrowableBuffer(64<<10, 2<<20)
//	writer := serialization.NewMsgPackWriter(buffer)
//	if err := serialization.Format(writer, trace, mapper); err != nil {
//	    // buffer still holds every previously marked message
//	}
//
// Nothing in this package is safe for concurrent use. A buffer and the
// writers over it belong to exactly one goroutine at a time.
package serialization
