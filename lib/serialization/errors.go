// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serialization

import "errors"

// Error kinds surfaced by the encoders. Callers match them with
// errors.Is; the returned errors wrap them with call-site context.
var (
	// ErrCapacityExceeded is returned when a value cannot be appended
	// to a buffer without crossing the buffer's configured hard limit.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInconsistentState marks an internal invariant violation, such
	// as a map whose declared element count differs from the number of
	// entries written. It indicates a programming error and is raised
	// with panic, never returned.
	ErrInconsistentState = errors.New("inconsistent encoder state")

	// ErrIOFailure wraps failures of the sink a finished payload is
	// written to. It is the only error kind that involves I/O.
	ErrIOFailure = errors.New("payload write failed")
)
