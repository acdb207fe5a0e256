// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tracewire/cmd/tracewire/cli"
	"github.com/bureau-foundation/tracewire/lib/clock"
	"github.com/bureau-foundation/tracewire/lib/config"
	"github.com/bureau-foundation/tracewire/lib/ddagent"
	"github.com/bureau-foundation/tracewire/lib/schema/trace"
	"github.com/bureau-foundation/tracewire/lib/spool"
)

// spoolFromConfig is the value --spool takes when given without a
// directory.
const spoolFromConfig = "@config"

type encodeParams struct {
	commonFlags
	input          string
	format         string
	endpoint       string
	output         string
	spoolDir       string
	compression    string
	dictionarySize int
	bufferSize     int
	force          bool
}

func encodeCommand(env *environment) *cli.Command {
	var params encodeParams
	return &cli.Command{
		Name:    "encode",
		Summary: "Encode a span batch into agent payloads",
		Description: `Encode a span batch into trace agent payloads.

Traces are encoded in order. When the encoded traces reach the message
buffer size, the payload is cut and a new one started, so one batch may
produce several payloads. With --output, the first payload is written
to the named file and later ones to FILE.1, FILE.2, and so on. With
--spool, each payload is stored in the spool directory under its hash.`,
		Usage: "tracewire encode --input FILE (--output FILE | --spool[=DIR]) [flags]",
		Examples: []cli.Example{
			{Description: "Encode a JSON batch for the v0.5 endpoint", Command: "tracewire encode --input spans.json --output payload.msgpack"},
			{Description: "Spool zstd-compressed v0.4 payloads", Command: "tracewire encode --input spans.yaml --endpoint v0.4 --spool=/var/spool/tracewire --compression zstd"},
			{Description: "Pipe a payload to another tool", Command: "cat spans.cbor | tracewire encode --input - --format cbor --output - | xxd"},
		},
		Flags: func() *pflag.FlagSet {
			params = encodeParams{}
			flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			params.register(flagSet)
			flagSet.StringVarP(&params.input, "input", "i", "", "span batch file, or - for stdin (required)")
			flagSet.StringVar(&params.format, "format", "", "input format: json, jsonc, yaml, cbor (default: from extension)")
			flagSet.StringVar(&params.endpoint, "endpoint", "", "agent endpoint version: v0.5 or v0.4 (default: from config)")
			flagSet.StringVarP(&params.output, "output", "o", "", "payload output file, or - for stdout")
			flagSet.StringVar(&params.spoolDir, "spool", "", "spool payloads into DIR (default DIR: from config)")
			flagSet.Lookup("spool").NoOptDefVal = spoolFromConfig
			flagSet.StringVar(&params.compression, "compression", "", "spool compression: none, lz4, zstd (default: from config)")
			flagSet.IntVar(&params.dictionarySize, "dictionary-size", 0, "initial dictionary capacity in bytes (default: from config)")
			flagSet.IntVar(&params.bufferSize, "buffer-size", 0, "maximum encoded traces per payload in bytes (default: from config)")
			flagSet.BoolVar(&params.force, "force", false, "write binary output to a terminal")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			return runEncode(env, &params)
		},
	}
}

func runEncode(env *environment, params *encodeParams) error {
	if params.input == "" {
		return errors.New("--input is required")
	}
	if (params.output == "") == (params.spoolDir == "") {
		return errors.New("exactly one of --output or --spool is required")
	}
	if params.output == "-" && cli.IsTerminal(env.stdout) && !params.force {
		return errors.New("refusing to write a binary payload to a terminal; redirect stdout or pass --force")
	}

	cfg, err := params.loadConfig()
	if err != nil {
		return err
	}
	params.applyTo(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	logger := params.logger(env).With("command", "encode")

	batch, err := readBatch(params.input, params.format, env.stdin)
	if err != nil {
		return err
	}

	mapper, err := ddagent.NewTraceMapper(cfg.Encoder.Endpoint, cfg.Encoder.DictionarySize, cfg.Encoder.MessageBufferSize)
	if err != nil {
		return err
	}

	var sink ddagent.PayloadSink
	if params.spoolDir != "" {
		dir := params.spoolDir
		if dir == spoolFromConfig {
			dir = cfg.Spool.Dir
		}
		compression, err := spool.ParseCompression(cfg.Spool.Compression)
		if err != nil {
			return err
		}
		store, err := spool.New(dir, compression, logger)
		if err != nil {
			return err
		}
		sink = store
	} else {
		sink = &outputSink{path: params.output, stdout: env.stdout, logger: logger}
	}

	interval, err := cfg.Encoder.FlushIntervalDuration()
	if err != nil {
		return err
	}
	dispatcher := ddagent.NewDispatcher(ddagent.DispatcherConfig{
		Mapper: mapper,
		Sink:   sink,
		Logger: logger,
		// Both sinks finish writing before Send returns.
		BorrowPayloads: true,
	})
	stats, err := encodeBatch(dispatcher, clock.Real(), interval, cfg.Encoder.QueueSize, batch, logger)
	if err != nil {
		return err
	}

	logger.Info("span batch encoded",
		"endpoint", mapper.Endpoint(),
		"traces", stats.TracesEncoded,
		"spans", batch.SpanCount(),
		"payloads", stats.PayloadsSent,
	)
	if stats.TracesDropped > 0 {
		return fmt.Errorf("%d of %d traces were dropped", stats.TracesDropped, len(batch.Traces))
	}
	return nil
}

// applyTo overrides config values with the flags that were given.
func (p *encodeParams) applyTo(cfg *config.Config) {
	if p.endpoint != "" {
		cfg.Encoder.Endpoint = p.endpoint
	}
	if p.dictionarySize != 0 {
		cfg.Encoder.DictionarySize = p.dictionarySize
	}
	if p.bufferSize != 0 {
		cfg.Encoder.MessageBufferSize = p.bufferSize
	}
	if p.compression != "" {
		cfg.Spool.Compression = p.compression
	}
}

// encodeBatch feeds every trace of batch through a Worker and waits
// for the final flush.
func encodeBatch(dispatcher *ddagent.Dispatcher, clk clock.Clock, interval time.Duration, queueSize int, batch *trace.Batch, logger *slog.Logger) (ddagent.DispatcherStats, error) {
	worker := ddagent.NewWorker(dispatcher, clk, interval, queueSize, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-worker.Done()
	}()
	go worker.Run(ctx)

	for _, spans := range batch.Traces {
		if err := worker.Submit(ctx, spans); err != nil {
			return dispatcher.Stats(), err
		}
	}
	if err := worker.Flush(ctx); err != nil {
		return dispatcher.Stats(), err
	}
	return dispatcher.Stats(), nil
}

// outputSink writes payloads to a file, numbering the files after the
// first, or to stdout.
type outputSink struct {
	path   string
	stdout io.Writer
	logger *slog.Logger
	count  int
}

func (s *outputSink) Send(ctx context.Context, payload ddagent.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.path == "-" {
		_, err := payload.WriteTo(s.stdout)
		return err
	}

	path := s.path
	if s.count > 0 {
		path = fmt.Sprintf("%s.%d", s.path, s.count)
	}
	s.count++

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating payload file: %w", err)
	}
	if _, err := payload.WriteTo(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing payload file: %w", err)
	}
	s.logger.Debug("payload written",
		"path", path,
		"traces", payload.TraceCount(),
		"bytes", payload.SizeInBytes(),
	)
	return nil
}
