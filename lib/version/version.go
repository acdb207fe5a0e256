// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info returns a formatted version string suitable for --version output.
func Info() string {
	commit, dirty, buildTime := Commit(), GitDirty == "true", BuildTime
	if GitCommit == "unknown" {
		if settings, ok := vcsSettings(); ok {
			dirty = settings["vcs.modified"] == "true"
			if value := settings["vcs.time"]; value != "" && buildTime == "unknown" {
				buildTime = value
			}
		}
	}
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, buildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA, falling back to the toolchain's
// recorded VCS revision shortened to 12 characters.
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if settings, ok := vcsSettings(); ok {
		if revision := settings["vcs.revision"]; revision != "" {
			return revision[:min(len(revision), 12)]
		}
	}
	return GitCommit
}

func vcsSettings() (map[string]string, bool) {
	info, ok := readBuildInfo()
	if !ok {
		return nil, false
	}
	settings := make(map[string]string)
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	return settings, true
}
