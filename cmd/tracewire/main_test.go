// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/tracewire/lib/codec"
	"github.com/bureau-foundation/tracewire/lib/config"
	"github.com/bureau-foundation/tracewire/lib/ddagent"
)

const batchJSON = `{
  "traces": [
    [
      {
        "trace_id": 1001, "span_id": 1, "parent_id": 0,
        "start": 1700000000000000000, "duration": 2500000,
        "service": "checkout-svc", "name": "GET /cart", "resource": "GET /cart",
        "type": "web",
        "metadata": {
          "tags": {"component": "net/http", "retries": 2, "ratio": 0.5},
          "thread_name": "main", "thread_id": 7,
          "sampling_priority": 1, "top_level": true, "http_status_code": 200
        }
      },
      {
        "trace_id": "1001", "span_id": 2, "parent_id": 1,
        "start": 1700000000000100000, "duration": 900000,
        "service": "checkout-svc", "name": "POST /pay", "resource": "POST /pay",
        "metadata": {"baggage": {"user": "u-42"}, "thread_name": "main", "thread_id": 7}
      }
    ]
  ]
}
`

const batchJSONC = `// Checkout trace captured from staging.
[
  [
    {
      "trace_id": 1001, "span_id": 1, "parent_id": 0,
      "start": 1700000000000000000, "duration": 2500000,
      "service": "checkout-svc", "name": "GET /cart", "resource": "GET /cart",
      "type": "web",
      "metadata": {
        "tags": {"component": "net/http", "retries": 2, "ratio": 0.5,},
        "thread_name": "main", "thread_id": 7,
        "sampling_priority": 1, "top_level": true, "http_status_code": 200,
      },
    },
    {
      /* child span */
      "trace_id": 1001, "span_id": 2, "parent_id": 1,
      "start": 1700000000000100000, "duration": 900000,
      "service": "checkout-svc", "name": "POST /pay", "resource": "POST /pay",
      "metadata": {"baggage": {"user": "u-42"}, "thread_name": "main", "thread_id": 7},
    },
  ],
]
`

const batchYAML = `traces:
  - - trace_id: 1001
      span_id: 1
      parent_id: 0
      start: 1700000000000000000
      duration: 2500000
      service: checkout-svc
      name: GET /cart
      resource: GET /cart
      type: web
      metadata:
        tags:
          component: net/http
          retries: 2
          ratio: 0.5
        thread_name: main
        thread_id: 7
        sampling_priority: 1
        top_level: true
        http_status_code: 200
    - trace_id: 1001
      span_id: 2
      parent_id: 1
      start: 1700000000000100000
      duration: 900000
      service: checkout-svc
      name: POST /pay
      resource: POST /pay
      metadata:
        baggage:
          user: u-42
        thread_name: main
        thread_id: 7
`

func batchCBOR(t *testing.T) []byte {
	t.Helper()
	document := map[string]any{
		"traces": []any{
			[]any{
				map[string]any{
					"trace_id": uint64(1001), "span_id": uint64(1), "parent_id": uint64(0),
					"start": int64(1700000000000000000), "duration": int64(2500000),
					"service": "checkout-svc", "name": "GET /cart", "resource": "GET /cart",
					"type": "web",
					"metadata": map[string]any{
						"tags":        map[string]any{"component": "net/http", "retries": 2, "ratio": 0.5},
						"thread_name": "main", "thread_id": 7,
						"sampling_priority": 1, "top_level": true, "http_status_code": 200,
					},
				},
				map[string]any{
					"trace_id": uint64(1001), "span_id": uint64(2), "parent_id": uint64(1),
					"start": int64(1700000000000100000), "duration": int64(900000),
					"service": "checkout-svc", "name": "POST /pay", "resource": "POST /pay",
					"metadata": map[string]any{
						"baggage":     map[string]any{"user": "u-42"},
						"thread_name": "main", "thread_id": 7,
					},
				},
			},
		},
	}
	data, err := codec.Marshal(document)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	return data
}

type testEnvironment struct {
	*environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	// Keep a developer's config out of the tests.
	t.Setenv(config.EnvironmentVariable, "")
	t.Setenv("HOME", t.TempDir())
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &testEnvironment{
		environment: &environment{stdin: strings.NewReader(""), stdout: stdout, stderr: stderr},
		stdout:      stdout,
		stderr:      stderr,
	}
}

// run executes the command line and returns its stdout, failing the
// test on error.
func (e *testEnvironment) run(t *testing.T, args ...string) string {
	t.Helper()
	e.stdout.Reset()
	if err := newRootCommand(e.environment).Execute(args); err != nil {
		t.Fatalf("tracewire %s: %v\nstderr:\n%s", strings.Join(args, " "), err, e.stderr)
	}
	return e.stdout.String()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func decodeInspect(t *testing.T, output string) inspectResult {
	t.Helper()
	var result inspectResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, output)
	}
	if result.Payload == nil {
		t.Fatalf("inspect output has no payload:\n%s", output)
	}
	return result
}

func TestEncodeThenInspect(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "spans.json", []byte(batchJSON))
	output := filepath.Join(dir, "payload.msgpack")

	env.run(t, "encode", "--input", input, "--output", output)
	result := decodeInspect(t, env.run(t, "inspect", output))

	payload := result.Payload
	if payload.Endpoint != ddagent.EndpointV05 {
		t.Errorf("Endpoint = %q, want %q", payload.Endpoint, ddagent.EndpointV05)
	}
	if result.Header != nil {
		t.Errorf("raw payload reported a spool header: %+v", result.Header)
	}
	if len(payload.Traces) != 1 || len(payload.Traces[0]) != 2 {
		t.Fatalf("decoded shape = %d traces, want 1 trace of 2 spans", len(payload.Traces))
	}

	root := payload.Traces[0][0]
	if root.Service != "checkout-svc" || root.Name != "GET /cart" || root.Type != "web" {
		t.Errorf("root span = %+v", root)
	}
	if root.TraceID != 1001 || root.SpanID != 1 || root.ParentID != 0 {
		t.Errorf("root IDs = %d/%d/%d, want 1001/1/0", root.TraceID, root.SpanID, root.ParentID)
	}
	if root.Meta["component"] != "net/http" || root.Meta["http.status_code"] != "200" {
		t.Errorf("root meta = %v", root.Meta)
	}
	if root.Metrics["retries"] != 2 || root.Metrics["ratio"] != 0.5 || root.Metrics["_sampling_priority_v1"] != 1 {
		t.Errorf("root metrics = %v", root.Metrics)
	}

	child := payload.Traces[0][1]
	if child.TraceID != 1001 || child.ParentID != 1 {
		t.Errorf("child IDs = %d/%d, want trace 1001 parent 1", child.TraceID, child.ParentID)
	}
	if child.Meta["user"] != "u-42" {
		t.Errorf("child meta = %v, want baggage user=u-42", child.Meta)
	}
	if child.Type != "" {
		t.Errorf("child Type = %q, want empty", child.Type)
	}
}

func TestInputFormatsEncodeAlike(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	inputs := map[string][]byte{
		"spans.json":  []byte(batchJSON),
		"spans.jsonc": []byte(batchJSONC),
		"spans.yaml":  []byte(batchYAML),
		"spans.cbor":  batchCBOR(t),
	}

	var reference *ddagent.DecodedPayload
	var referenceName string
	for name, data := range inputs {
		input := writeFile(t, dir, name, data)
		output := filepath.Join(dir, name+".msgpack")
		env.run(t, "encode", "--input", input, "--output", output)
		result := decodeInspect(t, env.run(t, "inspect", "--endpoint", "v0.5", output))
		if reference == nil {
			reference, referenceName = result.Payload, name
			continue
		}
		if !reflect.DeepEqual(result.Payload.Traces, reference.Traces) {
			t.Errorf("%s decodes to\n%+v\n%s decodes to\n%+v", name, result.Payload.Traces, referenceName, reference.Traces)
		}
	}
}

func TestEncodeToStdout(t *testing.T) {
	env := newTestEnvironment(t)
	env.stdin = strings.NewReader(batchYAML)

	raw := env.run(t, "encode", "--input", "-", "--format", "yaml", "--output", "-", "--endpoint", "v0.4")
	decoded, err := ddagent.DecodePayload(ddagent.EndpointV04, []byte(raw))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.SpanCount() != 2 {
		t.Errorf("SpanCount = %d, want 2", decoded.SpanCount())
	}
}

func TestInspectDetectsEndpoint(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "spans.json", []byte(batchJSON))
	output := filepath.Join(dir, "payload.v04")

	env.run(t, "encode", "--input", input, "--output", output, "--endpoint", "v0.4")
	result := decodeInspect(t, env.run(t, "inspect", output))
	if result.Payload.Endpoint != ddagent.EndpointV04 {
		t.Errorf("Endpoint = %q, want %q", result.Payload.Endpoint, ddagent.EndpointV04)
	}
	if result.Payload.Dictionary != nil {
		t.Errorf("v0.4 payload has a dictionary: %v", result.Payload.Dictionary)
	}
}

func TestEncodeSpoolListRemove(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	spoolDir := filepath.Join(dir, "spool")
	input := writeFile(t, dir, "spans.json", []byte(batchJSON))

	env.run(t, "encode", "--input", input, "--spool="+spoolDir, "--compression", "zstd")

	var listings []spoolListing
	if err := json.Unmarshal([]byte(env.run(t, "spool", "list", "--dir", spoolDir, "--json")), &listings); err != nil {
		t.Fatalf("spool list --json: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("spool holds %d payloads, want 1", len(listings))
	}
	listing := listings[0]
	if listing.Header.Endpoint != ddagent.EndpointV05 || listing.Header.TraceCount != 1 {
		t.Errorf("header = %+v", listing.Header)
	}
	if filepath.Base(listing.Path) != listing.Hash+".twp" {
		t.Errorf("Path %q does not match Hash %q", listing.Path, listing.Hash)
	}

	result := decodeInspect(t, env.run(t, "inspect", "--diagnose", listing.Path))
	// A payload this small may not shrink, in which case it is stored
	// uncompressed.
	if result.Header == nil || result.Header.Compression != listing.Header.Compression {
		t.Errorf("inspect header = %+v, want %+v", result.Header, listing.Header)
	}
	if !strings.Contains(result.HeaderDiagnostic, `"endpoint"`) {
		t.Errorf("HeaderDiagnostic = %q, want the endpoint key", result.HeaderDiagnostic)
	}
	if result.Payload.SpanCount() != 2 {
		t.Errorf("SpanCount = %d, want 2", result.Payload.SpanCount())
	}

	table := env.run(t, "spool", "list", "--dir", spoolDir)
	if !strings.Contains(table, listing.Hash[:16]) {
		t.Errorf("table output does not name %s:\n%s", listing.Hash[:16], table)
	}

	env.run(t, "spool", "rm", "--dir", spoolDir, listing.Hash[:8])
	if output := env.run(t, "spool", "list", "--dir", spoolDir, "--json"); strings.TrimSpace(output) != "[]" {
		t.Errorf("spool list after rm = %s, want []", output)
	}
}

func TestEncodeSplitsOutputFiles(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "spans.json", []byte(`[
		[{"trace_id": 1, "span_id": 1, "service": "a", "name": "op", "resource": "r1", "metadata": {"thread_name": "main"}}],
		[{"trace_id": 2, "span_id": 2, "service": "a", "name": "op", "resource": "r2", "metadata": {"thread_name": "main"}}],
		[{"trace_id": 3, "span_id": 3, "service": "a", "name": "op", "resource": "r3", "metadata": {"thread_name": "main"}}]
	]`))
	output := filepath.Join(dir, "payload")

	// One trace fits in 200 bytes but two do not.
	env.run(t, "encode", "--input", input, "--output", output, "--buffer-size", "200", "--endpoint", "v0.4")

	total := 0
	for _, path := range []string{output, output + ".1", output + ".2"} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("payload file %s: %v", path, err)
		}
		decoded, err := ddagent.DecodePayload(ddagent.EndpointV04, data)
		if err != nil {
			t.Fatalf("DecodePayload %s: %v", path, err)
		}
		total += len(decoded.Traces)
	}
	if total != 3 {
		t.Errorf("payload files hold %d traces, want 3", total)
	}
}

func TestEncodeReportsDroppedTraces(t *testing.T) {
	env := newTestEnvironment(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "spans.json", []byte(batchJSON))

	err := newRootCommand(env.environment).Execute([]string{
		"encode", "--input", input, "--output", filepath.Join(dir, "out"), "--buffer-size", "16",
	})
	if err == nil || !strings.Contains(err.Error(), "dropped") {
		t.Fatalf("Execute = %v, want a dropped-traces error", err)
	}
}

func TestEncodeFlagErrors(t *testing.T) {
	env := newTestEnvironment(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"encode", "--output", "x"}, "--input is required"},
		{"no destination", []string{"encode", "--input", "x.json"}, "exactly one of --output or --spool"},
		{"both destinations", []string{"encode", "--input", "x.json", "--output", "x", "--spool"}, "exactly one of --output or --spool"},
		{"stdin without format", []string{"encode", "--input", "-", "--output", "x"}, "--format is required"},
		{"bad endpoint", []string{"encode", "--input", "x.json", "--output", "x", "--endpoint", "v0.3"}, "endpoint must be one of"},
		{"misspelled flag", []string{"encode", "--inptu", "x.json"}, "did you mean --input"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := newRootCommand(env.environment).Execute(test.args)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Execute(%v) = %v, want error containing %q", test.args, err, test.want)
			}
		})
	}
}

func TestVersionFlag(t *testing.T) {
	env := newTestEnvironment(t)
	output := env.run(t, "--version")
	if !strings.HasPrefix(output, "tracewire ") {
		t.Errorf("--version output = %q", output)
	}
}
