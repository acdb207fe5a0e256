// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is the 32-byte BLAKE3 digest that names a spooled payload.
type Hash [32]byte

// payloadDomainKey separates spool hashes from any other BLAKE3 use of
// the same bytes: the ASCII domain name, zero-padded to 32 bytes.
var payloadDomainKey = [32]byte{
	't', 'r', 'a', 'c', 'e', 'w', 'i', 'r', 'e', '.', 's', 'p', 'o', 'o', 'l', '.',
	'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashPayload returns the keyed hash of an encoded payload.
func HashPayload(data []byte) Hash {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		// Only a key of the wrong length is rejected.
		panic("spool: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// String returns the lowercase hex form used in file names.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses the hex form returned by String.
func ParseHash(text string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return hash, fmt.Errorf("parsing payload hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("parsing payload hash: got %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}
