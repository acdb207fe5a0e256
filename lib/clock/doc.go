// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the flush
// worker.
//
// Production code takes a Clock instead of calling time.Now or
// time.NewTicker directly. Real() is backed by the time package; Fake()
// returns a clock that only moves when a test calls Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go worker.Run(ctx)
//	fake.WaitForTickers(1)        // the worker has created its ticker
//	fake.Advance(time.Second)     // deterministically fires one tick
package clock
