// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tracewire/cmd/tracewire/cli"
	"github.com/bureau-foundation/tracewire/lib/spool"
)

func spoolCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "spool",
		Summary: "List and remove spooled payloads",
		Description: `Manage the payload spool.

Payloads written by "encode --spool" are stored one per file, named by
the keyed BLAKE3 hash of the uncompressed payload.`,
		Subcommands: []*cli.Command{
			spoolListCommand(env),
			spoolRemoveCommand(env),
		},
	}
}

type spoolParams struct {
	commonFlags
	dir string
}

func (p *spoolParams) register(flagSet *pflag.FlagSet) {
	p.commonFlags.register(flagSet)
	flagSet.StringVar(&p.dir, "dir", "", "spool directory (default: from config)")
}

// open returns the spool named by --dir or by the config.
func (p *spoolParams) open(env *environment) (*spool.Spool, error) {
	dir := p.dir
	if dir == "" {
		cfg, err := p.loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.Spool.Dir
	}
	return spool.New(dir, spool.CompressionNone, p.logger(env))
}

// spoolListing is one row of "spool list --json".
type spoolListing struct {
	Hash string `json:"hash"`
	spool.Entry
}

func spoolListCommand(env *environment) *cli.Command {
	var (
		params     spoolParams
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List spooled payloads",
		Usage:   "tracewire spool list [--dir DIR] [--json]",
		Flags: func() *pflag.FlagSet {
			params = spoolParams{}
			jsonOutput = false
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			params.register(flagSet)
			flagSet.BoolVar(&jsonOutput, "json", false, "print entries as a JSON array")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			store, err := params.open(env)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}

			if jsonOutput {
				listings := make([]spoolListing, len(entries))
				for i, entry := range entries {
					listings[i] = spoolListing{Hash: entry.Hash.String(), Entry: entry}
				}
				encoder := json.NewEncoder(env.stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(listings)
			}

			writer := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "HASH\tENDPOINT\tTRACES\tCOMPRESSION\tSIZE\tSTORED")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%d\t%d\n",
					entry.Hash.String()[:16],
					entry.Header.Endpoint,
					entry.Header.TraceCount,
					entry.Header.Compression,
					entry.Header.UncompressedSize,
					entry.StoredSize,
				)
			}
			return writer.Flush()
		},
	}
}

func spoolRemoveCommand(env *environment) *cli.Command {
	var params spoolParams
	return &cli.Command{
		Name:    "rm",
		Summary: "Remove spooled payloads by hash",
		Description: `Remove spooled payloads.

Each HASH may be the full hex hash or any unique prefix of it, as shown
by "spool list".`,
		Usage: "tracewire spool rm [--dir DIR] HASH...",
		Flags: func() *pflag.FlagSet {
			params = spoolParams{}
			flagSet := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			params.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return errors.New("at least one HASH is required")
			}
			store, err := params.open(env)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			logger := params.logger(env)
			for _, prefix := range args {
				if prefix == "" {
					return errors.New("empty HASH")
				}
				entry, err := matchEntry(entries, prefix)
				if err != nil {
					return err
				}
				if err := store.Remove(entry); err != nil {
					return err
				}
				logger.Info("removed spooled payload", "path", filepath.Base(entry.Path))
			}
			return nil
		},
	}
}

func matchEntry(entries []spool.Entry, prefix string) (spool.Entry, error) {
	var matches []spool.Entry
	for _, entry := range entries {
		if strings.HasPrefix(entry.Hash.String(), prefix) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return spool.Entry{}, fmt.Errorf("no spooled payload matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return spool.Entry{}, fmt.Errorf("%q matches %d spooled payloads", prefix, len(matches))
	}
}
