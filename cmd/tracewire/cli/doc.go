// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the tracewire
// binary: a tree of [Command] values with pflag flag sets, help
// output, "did you mean" suggestions for mistyped commands and flags,
// and the structured logger commands report progress through.
package cli
