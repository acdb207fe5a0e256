// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bureau-foundation/tracewire/lib/codec"
)

// ID is a 64-bit trace or span identifier in its canonical numeric
// form. The agent wire formats carry IDs as msgpack unsigned integers.
//
// Encoding: text and JSON use the decimal form; text input also
// accepts a 0x-prefixed hex form. JSON input accepts either a number
// or a string. CBOR uses an unsigned integer.
type ID uint64

// Uint64 returns the canonical numeric value of the ID.
func (id ID) Uint64() uint64 { return uint64(id) }

// IsZero reports whether the ID is unset. Root spans have a zero
// parent ID.
func (id ID) IsZero() bool { return id == 0 }

// String returns the decimal representation.
func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(id), 10), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// yields the zero ID.
func (id *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = 0
		return nil
	}
	parsed, err := strconv.ParseUint(string(data), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid trace ID %q: %w", data, err)
	}
	*id = ID(parsed)
	return nil
}

// UnmarshalJSON accepts both JSON numbers and JSON strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("invalid trace ID: %w", err)
		}
		return id.UnmarshalText([]byte(text))
	}
	return id.UnmarshalText(data)
}

// MarshalCBOR implements cbor.Marshaler. Encodes as an unsigned
// integer (major type 0), never as text.
func (id ID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(uint64(id))
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (id *ID) UnmarshalCBOR(data []byte) error {
	var value uint64
	if err := codec.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("invalid trace ID CBOR: %w", err)
	}
	*id = ID(value)
	return nil
}
