// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serialization

import "github.com/tinylib/msgp/msgp"

// Msgpack container header sizes: fixarray/fixmap up to 15 elements,
// the 16-bit form up to 65535, the 32-bit form above that.
const (
	fixContainerMax = 15
	container16Max  = 1<<16 - 1
)

// ArrayHeaderSize returns the number of bytes msgpack uses for the
// header of an array with elementCount elements.
func ArrayHeaderSize(elementCount int) int {
	switch {
	case elementCount <= fixContainerMax:
		return 1
	case elementCount <= container16Max:
		return 3
	default:
		return 5
	}
}

// MapHeaderSize returns the number of bytes msgpack uses for the
// header of a map with pairCount key/value pairs. Map headers have the
// same size classes as array headers.
func MapHeaderSize(pairCount int) int {
	return ArrayHeaderSize(pairCount)
}

// ArrayHeader returns the encoded msgpack header of an array with
// elementCount elements.
func ArrayHeader(elementCount int) []byte {
	return msgp.AppendArrayHeader(make([]byte, 0, ArrayHeaderSize(elementCount)), uint32(elementCount))
}
