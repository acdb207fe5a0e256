// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Tracewire encodes span batches into trace agent payloads and reads
// them back.
//
//	tracewire encode --input spans.json --output payload.msgpack
//	tracewire encode --input spans.yaml --endpoint v0.4 --spool
//	tracewire inspect payload.msgpack
//	tracewire spool list
//
// Span batches may be JSON, JSONC, YAML, or CBOR. Encoder settings
// come from the file named by --config or TRACEWIRE_CONFIG, with flags
// taking precedence.
package main
