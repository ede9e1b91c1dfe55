// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package records writes completed redemptions to durable storage.
package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/oliverandrich/token-checkin/internal/models"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
)

var (
	_ tokens.Recorder = (*File)(nil)
	_ tokens.Recorder = (*Tee)(nil)
)

// appendFile is the part of *os.File the record file needs.
type appendFile interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Close() error
}

// File appends redemptions as "token,student_id" lines to a plaintext file.
// The file is created on the first write and kept open in append mode.
// A line is either fully written and synced or removed again.
type File struct {
	mu   sync.Mutex
	path string
	f    appendFile
	open func(path string) (appendFile, error)
}

// NewFile returns a recorder for dir/records-<stamp>.txt.
func NewFile(dir, stamp string) *File {
	return &File{
		path: filepath.Join(dir, "records-"+stamp+".txt"),
		open: openAppend,
	}
}

func openAppend(path string) (appendFile, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// Path returns the path of the record file.
func (r *File) Path() string {
	return r.path
}

// Record appends one line and syncs it to disk.
func (r *File) Record(_ context.Context, red models.Redemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		f, err := r.open(r.path)
		if err != nil {
			return fmt.Errorf("failed to open record file: %w", err)
		}
		r.f = f
	}

	// O_APPEND leaves the offset alone until the first write, so take the size.
	info, err := r.f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat record file: %w", err)
	}
	size := info.Size()

	if _, err := io.WriteString(r.f, red.RecordLine()); err != nil {
		return r.rollback(size, fmt.Errorf("failed to append record: %w", err))
	}
	if err := r.f.Sync(); err != nil {
		return r.rollback(size, fmt.Errorf("failed to sync record file: %w", err))
	}
	return nil
}

// rollback cuts the file back to size so a failed redemption leaves no line.
func (r *File) rollback(size int64, cause error) error {
	if err := r.f.Truncate(size); err != nil {
		slog.Error("record_rollback_failed", "path", r.path, "error", err)
		return errors.Join(cause, fmt.Errorf("failed to roll back record file: %w", err))
	}
	return cause
}

// Close closes the underlying file if it was opened.
func (r *File) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Tee writes to a primary recorder and mirrors successful writes to secondaries.
// Only the primary decides whether a redemption is recorded; mirror failures are logged.
type Tee struct {
	primary tokens.Recorder
	mirrors []tokens.Recorder
}

// NewTee creates a Tee recorder.
func NewTee(primary tokens.Recorder, mirrors ...tokens.Recorder) *Tee {
	return &Tee{primary: primary, mirrors: mirrors}
}

// Record implements tokens.Recorder.
func (t *Tee) Record(ctx context.Context, red models.Redemption) error {
	if err := t.primary.Record(ctx, red); err != nil {
		return err
	}
	for _, m := range t.mirrors {
		if err := m.Record(ctx, red); err != nil {
			slog.Warn("redemption_mirror_failed", "token", red.Token, "error", err)
		}
	}
	return nil
}
