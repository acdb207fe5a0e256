// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tracewire/cmd/tracewire/cli"
	"github.com/bureau-foundation/tracewire/lib/config"
	"github.com/bureau-foundation/tracewire/lib/version"
)

func newRootCommand(env *environment) *cli.Command {
	var showVersion bool
	return &cli.Command{
		Name:        "tracewire",
		Description: "Encode span batches into trace agent payloads and inspect the results.",
		HelpOutput:  env.stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tracewire", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			encodeCommand(env),
			inspectCommand(env),
			spoolCommand(env),
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintf(env.stdout, "tracewire %s\n", version.Info())
				return nil
			}
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q\n\nRun 'tracewire --help' for usage.", args[0])
			}
			return fmt.Errorf("command required\n\nRun 'tracewire --help' for usage.")
		},
	}
}

// commonFlags are shared by every command that reads configuration.
type commonFlags struct {
	configPath string
	verbose    bool
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log debug detail")
}

// loadConfig loads the config named by --config, else by
// TRACEWIRE_CONFIG, else the defaults, and validates it.
func (f *commonFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case f.configPath != "":
		cfg, err = config.LoadFile(f.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.ExpandVariables()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (f *commonFlags) logger(env *environment) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return cli.NewCommandLogger(env.stderr, level)
}
