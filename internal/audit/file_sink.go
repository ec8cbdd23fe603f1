// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/orderdesk/orderdesk/internal/xdg"
)

// File sink retry policy.
const (
	fileSinkRetries      = 3
	fileSinkRetryBackoff = 10 * time.Millisecond
)

// FileSink appends entries to a file as JSON lines.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// DefaultFilePath returns audit.jsonl in the XDG state directory.
func DefaultFilePath() (string, error) {
	stateDir, err := xdg.StateDir()
	if err != nil {
		return "", oops.Code("AUDIT_SINK_PATH_FAILED").Wrap(err)
	}
	return filepath.Join(stateDir, "audit.jsonl"), nil
}

// NewFileSink opens (creating if needed) the JSONL file at path. An empty
// path selects DefaultFilePath.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		p, err := DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, oops.Code("AUDIT_SINK_OPEN_FAILED").With("path", path).Wrap(err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, oops.Code("AUDIT_SINK_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return &FileSink{path: path, file: file}, nil
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string {
	return s.path
}

// Write appends entry as one JSON line, retrying short writes and transient
// I/O errors.
func (s *FileSink) Write(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Code("AUDIT_SINK_ENCODE_FAILED").Wrap(err)
	}
	data = append(data, '\n')

	backoff := retry.WithMaxRetries(fileSinkRetries, retry.NewExponential(fileSinkRetryBackoff))
	err = retry.Do(ctx, backoff, func(_ context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.file == nil {
			return os.ErrClosed
		}
		if _, err := s.file.Write(data); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("AUDIT_SINK_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		s.file = nil
		return oops.With("path", s.path).Wrap(err)
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return oops.With("path", s.path).Wrap(err)
	}
	return nil
}

// ReadFile loads the entries previously written by a FileSink, oldest first.
// Lines that do not decode are skipped and counted in skipped.
func ReadFile(path string) (entries []Entry, skipped int, err error) {
	file, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, 0, oops.Code("AUDIT_READ_FAILED").With("path", path).Wrap(err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, skipped, oops.Code("AUDIT_READ_FAILED").With("path", path).Wrap(err)
	}
	return entries, skipped, nil
}
