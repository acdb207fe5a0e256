// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spool stores finished trace payloads as files, for offline
// delivery or later inspection.
//
// Each payload becomes one file named by the BLAKE3 hash of its
// uncompressed bytes, so spooling the same payload twice produces a
// single file. A file holds a CBOR [Header] followed immediately by
// the payload, compressed as the header describes:
//
//	<dir>/<hash>.twp = CBOR(Header) || compress(payload)
//
// [Spool] implements ddagent.PayloadSink, so a Dispatcher can flush
// straight to disk.
package spool
