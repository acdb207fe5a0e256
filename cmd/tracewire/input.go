// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/tracewire/lib/codec"
	"github.com/bureau-foundation/tracewire/lib/schema/trace"
)

// Span batch input formats.
const (
	formatJSON  = "json"
	formatJSONC = "jsonc"
	formatYAML  = "yaml"
	formatCBOR  = "cbor"
)

// detectFormat picks the input format from a file extension.
func detectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".jsonc":
		return formatJSONC, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".cbor":
		return formatCBOR, nil
	default:
		return "", fmt.Errorf("cannot tell the format of %q from its extension; use --format (json, jsonc, yaml, cbor)", path)
	}
}

// readBatch reads a span batch from path, or from stdin when path is
// "-". An empty format is detected from the extension.
func readBatch(path, format string, stdin io.Reader) (*trace.Batch, error) {
	if format == "" {
		if path == "-" {
			return nil, fmt.Errorf("--format is required when reading from stdin")
		}
		detected, err := detectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading span batch: %w", err)
	}

	batch, err := parseBatch(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s span batch %s: %w", format, path, err)
	}
	return batch, nil
}

// parseBatch decodes a batch document. Each format accepts either an
// object with a "traces" field or a bare array of traces.
func parseBatch(data []byte, format string) (*trace.Batch, error) {
	switch format {
	case formatJSON:
		return parseJSONBatch(data)
	case formatJSONC:
		return parseJSONBatch(jsonc.ToJSON(data))
	case formatYAML:
		// YAML is converted to JSON so that both share the JSON
		// unmarshalers of the trace types.
		var document any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, err
		}
		converted, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("converting YAML to JSON: %w", err)
		}
		return parseJSONBatch(converted)
	case formatCBOR:
		return parseCBORBatch(data)
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: json, jsonc, yaml, cbor)", format)
	}
}

func parseJSONBatch(data []byte) (*trace.Batch, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	// Tag values keep their literal form so integers stay integers.
	decoder.UseNumber()

	batch := &trace.Batch{}
	var err error
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = decoder.Decode(&batch.Traces)
	} else {
		err = decoder.Decode(batch)
	}
	if err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected data after the span batch")
	}
	for _, spans := range batch.Traces {
		for i := range spans {
			normalizeNumbers(spans[i].Metadata.Tags)
		}
	}
	return batch, nil
}

func parseCBORBatch(data []byte) (*trace.Batch, error) {
	batch := &trace.Batch{}
	// Major type 4 is an array.
	if len(data) > 0 && data[0]>>5 == 4 {
		if err := codec.Unmarshal(data, &batch.Traces); err != nil {
			return nil, err
		}
		return batch, nil
	}
	if err := codec.Unmarshal(data, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// normalizeNumbers replaces json.Number tag values with int64 when
// they are integers that fit, uint64 for larger integers, and float64
// otherwise.
func normalizeNumbers(tags map[string]any) {
	for key, value := range tags {
		number, ok := value.(json.Number)
		if !ok {
			continue
		}
		text := number.String()
		if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
			tags[key] = integer
		} else if unsigned, err := strconv.ParseUint(text, 10, 64); err == nil {
			tags[key] = unsigned
		} else if float, err := strconv.ParseFloat(text, 64); err == nil {
			tags[key] = float
		} else {
			tags[key] = text
		}
	}
}
