// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration.
//
// tracewire speaks msgpack to the agent, because that is the agent's
// wire contract, but keeps CBOR for everything it owns: span batch
// files handed to the encode command, and the header records of
// spooled payloads. This package holds the one encoder and decoder
// configuration those paths share.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. A spool header for the same payload therefore always encodes
// to the same bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types carry `json` struct tags; fxamacker/cbor reads them as a
// fallback when `cbor` tags are absent, so one tag controls naming for
// both formats. Use `cbor` tags only on types that are never
// serialized as JSON.
package codec
