// Package scratch manages the run-scoped temporary files the pipeline feeds
// through the external signal-processing engine.
//
// Every file is keyed by {run ID, role} so concurrent runs never collide, and
// every acquired handle must be released exactly once — typically via defer —
// on success and on every failure path. The underlying storage is not garbage
// collected; this package is the single place cleanup happens.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Store allocates run-scoped files under a single directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, or the system temp directory
// when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir}
}

// Handle is a uniquely-named scratch file. Acquire does not create the file;
// content exists only after the first Write.
type Handle struct {
	path string
	role string
}

// Acquire reserves a path for the given run and role (e.g. "raw", "cleaned").
func (s *Store) Acquire(runID, role string) *Handle {
	return &Handle{
		path: filepath.Join(s.dir, fmt.Sprintf("crosstalk-%s-%s.wav", runID, role)),
		role: role,
	}
}

// Path returns the filesystem path backing the handle.
func (h *Handle) Path() string { return h.path }

// Role returns the role the handle was acquired for.
func (h *Handle) Role() string { return h.role }

// Write materializes the handle with the given bytes.
func (h *Handle) Write(data []byte) error {
	if err := os.WriteFile(h.path, data, 0o600); err != nil {
		return fmt.Errorf("writing scratch file %s: %w", h.role, err)
	}
	return nil
}

// Read returns the handle's current content.
func (h *Handle) Read() ([]byte, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("reading scratch file %s: %w", h.role, err)
	}
	return data, nil
}

// Exists reports whether the handle has been materialized.
func (h *Handle) Exists() bool {
	_, err := os.Stat(h.path)
	return err == nil
}

// Release deletes the underlying file. It is idempotent: releasing an
// already-released or never-materialized handle is a no-op. A failed delete
// is logged rather than returned so it can never mask the error that caused
// the release.
func (h *Handle) Release() {
	err := os.Remove(h.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove scratch file", "path", h.path, "error", err)
	}
}
