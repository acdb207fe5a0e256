// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/tracewire/lib/codec"
	"github.com/bureau-foundation/tracewire/lib/ddagent"
)

// FileExtension is the suffix of every spooled payload file.
const FileExtension = ".twp"

// ErrCorrupt is returned by Read when a file's content does not match
// its header or its name.
var ErrCorrupt = errors.New("corrupt spool file")

// Header is the CBOR record at the start of a spool file.
type Header struct {
	// Endpoint is the agent wire version of the payload ("v0.5").
	Endpoint string `cbor:"endpoint" json:"endpoint"`

	// TraceCount is the number of traces in the payload.
	TraceCount int `cbor:"trace_count" json:"trace_count"`

	// Compression is the algorithm applied to the payload bytes that
	// follow the header.
	Compression Compression `cbor:"compression" json:"compression"`

	// UncompressedSize is the payload's encoded size in bytes.
	UncompressedSize int `cbor:"uncompressed_size" json:"uncompressed_size"`
}

// Entry describes one spooled payload.
type Entry struct {
	Path   string `json:"path"`
	Hash   Hash   `json:"-"`
	Header Header `json:"header"`

	// StoredSize is the file's size on disk.
	StoredSize int64 `json:"stored_size"`
}

// Spool writes payloads into one directory.
type Spool struct {
	dir         string
	compression Compression
	logger      *slog.Logger
}

var _ ddagent.PayloadSink = (*Spool)(nil)

// New returns a Spool writing to dir, creating it if necessary.
func New(dir string, compression Compression, logger *slog.Logger) (*Spool, error) {
	if dir == "" {
		return nil, errors.New("spool directory is required")
	}
	if _, err := ParseCompression(string(compression)); err != nil {
		return nil, err
	}
	if compression == "" {
		compression = CompressionNone
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Spool{dir: dir, compression: compression, logger: logger}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Send writes payload to the spool. It implements ddagent.PayloadSink.
func (s *Spool) Send(ctx context.Context, payload ddagent.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Write(payload)
	return err
}

// Write stores payload and returns the path of its file. Writing a
// payload that is already spooled replaces the file with identical
// content.
func (s *Spool) Write(payload ddagent.Payload) (string, error) {
	data := payload.Bytes()
	hash := HashPayload(data)

	compression := s.compression
	body, err := compress(data, compression)
	if errors.Is(err, errIncompressible) {
		compression, body = CompressionNone, data
	} else if err != nil {
		return "", err
	}

	header, err := codec.Marshal(Header{
		Endpoint:         payload.Endpoint(),
		TraceCount:       payload.TraceCount(),
		Compression:      compression,
		UncompressedSize: len(data),
	})
	if err != nil {
		return "", fmt.Errorf("encoding spool header: %w", err)
	}

	finalPath := filepath.Join(s.dir, hash.String()+FileExtension)

	// Atomic write: temp file + rename.
	tmpFile, err := os.CreateTemp(s.dir, "payload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp spool file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(header); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("writing spool header: %w", err)
	}
	if _, err := tmpFile.Write(body); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("writing spool payload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("closing temp spool file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming spool file: %w", err)
	}
	success = true

	s.logger.Debug("payload spooled",
		"path", finalPath,
		"endpoint", payload.Endpoint(),
		"traces", payload.TraceCount(),
		"bytes", len(data),
		"stored_bytes", len(header)+len(body),
		"compression", compression,
	)
	return finalPath, nil
}

// Read returns the header and the uncompressed payload of a spool
// file. When the file name carries a payload hash, the payload is
// checked against it.
func Read(path string) (Header, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("reading spool file: %w", err)
	}
	header, offset, err := decodeHeader(data)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	payload, err := decompress(data[offset:], header.Compression, header.UncompressedSize)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	if name, ok := strings.CutSuffix(filepath.Base(path), FileExtension); ok {
		if expected, err := ParseHash(name); err == nil && HashPayload(payload) != expected {
			return Header{}, nil, fmt.Errorf("%w: %s: payload hash does not match file name", ErrCorrupt, path)
		}
	}
	return header, payload, nil
}

// ReadHeader returns only the header of a spool file.
func ReadHeader(path string) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("opening spool file: %w", err)
	}
	defer file.Close()
	var header Header
	if err := codec.NewDecoder(file).Decode(&header); err != nil {
		return Header{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	return header, nil
}

// decodeHeader reads the header record from the front of data and
// returns the offset of the payload that follows it.
func decodeHeader(data []byte) (Header, int, error) {
	var header Header
	decoder := codec.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&header); err != nil {
		return Header{}, 0, fmt.Errorf("decoding header: %w", err)
	}
	if header.UncompressedSize < 0 {
		return Header{}, 0, fmt.Errorf("negative uncompressed size %d", header.UncompressedSize)
	}
	if _, err := ParseCompression(string(header.Compression)); err != nil {
		return Header{}, 0, err
	}
	return header, decoder.NumBytesRead(), nil
}

// List returns every payload in the spool, ordered by file name.
// Files whose headers cannot be read are skipped and logged.
func (s *Spool) List() ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+FileExtension))
	if err != nil {
		return nil, fmt.Errorf("listing spool directory: %w", err)
	}
	slices.Sort(matches)

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		hash, err := ParseHash(strings.TrimSuffix(filepath.Base(path), FileExtension))
		if err != nil {
			s.logger.Warn("skipping spool file with unexpected name", "path", path, "error", err)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat spool file: %w", err)
		}
		header, err := ReadHeader(path)
		if err != nil {
			s.logger.Warn("skipping unreadable spool file", "path", path, "error", err)
			continue
		}
		entries = append(entries, Entry{
			Path:       path,
			Hash:       hash,
			Header:     header,
			StoredSize: info.Size(),
		})
	}
	return entries, nil
}

// Remove deletes a spooled payload, typically after it has been
// delivered.
func (s *Spool) Remove(entry Entry) error {
	if err := os.Remove(entry.Path); err != nil {
		return fmt.Errorf("removing spool file: %w", err)
	}
	return nil
}
