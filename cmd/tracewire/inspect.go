// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tracewire/cmd/tracewire/cli"
	"github.com/bureau-foundation/tracewire/lib/codec"
	"github.com/bureau-foundation/tracewire/lib/ddagent"
	"github.com/bureau-foundation/tracewire/lib/spool"
)

type inspectParams struct {
	endpoint string
	diagnose bool
}

// inspectResult is the JSON document printed by inspect.
type inspectResult struct {
	Path             string                  `json:"path"`
	Header           *spool.Header           `json:"header,omitempty"`
	HeaderDiagnostic string                  `json:"header_diagnostic,omitempty"`
	Payload          *ddagent.DecodedPayload `json:"payload"`
}

func inspectCommand(env *environment) *cli.Command {
	var params inspectParams
	return &cli.Command{
		Name:    "inspect",
		Summary: "Decode a payload or spool file as JSON",
		Description: `Decode a trace agent payload and print it as JSON.

FILE may be a raw payload written by "encode --output" or a spool file.
Spool files are recognized by their extension or their CBOR header, and
their hash is verified before decoding. For raw payloads without
--endpoint, v0.5 is tried first and then v0.4.`,
		Usage: "tracewire inspect [flags] FILE",
		Examples: []cli.Example{
			{Description: "Decode a raw v0.5 payload", Command: "tracewire inspect payload.msgpack"},
			{Description: "Show a spool file with its header in CBOR diagnostic notation", Command: "tracewire inspect --diagnose ~/.cache/tracewire/spool/3f2a...e1.twp"},
		},
		Flags: func() *pflag.FlagSet {
			params = inspectParams{}
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.StringVar(&params.endpoint, "endpoint", "", "endpoint version of a raw payload: v0.5 or v0.4")
			flagSet.BoolVar(&params.diagnose, "diagnose", false, "include the spool header in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: tracewire inspect [flags] FILE")
			}
			result, err := inspectFile(args[0], &params)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(env.stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}
}

func inspectFile(path string, params *inspectParams) (*inspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result := &inspectResult{Path: path}

	if isSpoolFile(path, data) {
		header, body, err := spool.Read(path)
		if err != nil {
			return nil, err
		}
		result.Header = &header
		if params.diagnose {
			result.HeaderDiagnostic, err = codec.Diagnose(data)
			if err != nil {
				return nil, fmt.Errorf("diagnosing header: %w", err)
			}
		}
		result.Payload, err = ddagent.DecodePayload(header.Endpoint, body)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if params.diagnose {
		return nil, fmt.Errorf("%s is not a spool file; --diagnose needs a spool header", path)
	}
	result.Payload, err = decodeRaw(data, params.endpoint)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isSpoolFile reports whether data starts with a spool header. Raw
// payloads begin with a msgpack array, spool files with a CBOR map.
func isSpoolFile(path string, data []byte) bool {
	if filepath.Ext(path) == spool.FileExtension {
		return true
	}
	return len(data) > 0 && data[0] >= 0xa0 && data[0] <= 0xbf
}

func decodeRaw(data []byte, endpoint string) (*ddagent.DecodedPayload, error) {
	if endpoint != "" {
		return ddagent.DecodePayload(endpoint, data)
	}
	payload, errV05 := ddagent.DecodePayload(ddagent.EndpointV05, data)
	if errV05 == nil {
		return payload, nil
	}
	payload, errV04 := ddagent.DecodePayload(ddagent.EndpointV04, data)
	if errV04 == nil {
		return payload, nil
	}
	return nil, fmt.Errorf("not a v0.5 or v0.4 payload: %w", errors.Join(errV05, errV04))
}
