// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for tracewire.
//
// Configuration is loaded from a single file specified by either the
// TRACEWIRE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. Without
// either, callers use [Default].
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// spools default to zstd compression.
//
// ${HOME} and ${VAR:-default} patterns in spool.dir are expanded after
// loading. No other environment variables override config values.
//
// This package depends on no other tracewire packages.
package config
