// Package artifact writes encoded digests to timestamped files.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/clock"
)

// Name returns the artifact file name for key at t.
func Name(key string, t time.Time) string {
	return fmt.Sprintf("%s_hashed_%d.txt", key, t.Unix())
}

// Writer creates artifacts under a directory.
type Writer struct {
	root  string // absolute directory
	clock clock.Clock
}

// NewWriter creates a Writer rooted at dir. An empty dir means the process
// working directory at the time of the call. The directory must exist.
func NewWriter(dir string, clk clock.Clock) (*Writer, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("artifact: working dir: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("artifact: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact: root is not a directory: %s", abs)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Writer{root: abs, clock: clk}, nil
}

// Root returns the absolute directory artifacts are written to.
func (w *Writer) Root() string { return w.root }

// Write stores encoded as the entire content of a new artifact for key and
// returns its absolute path. A same-second write for the same key replaces
// the earlier file. Failures wrap apperr.ErrWriteFailure.
func (w *Writer) Write(key, encoded string) (string, error) {
	abs, err := w.pathFor(Name(key, w.clock.Now()))
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(w.root, ".keyhash-tmp-*")
	if err != nil {
		return "", fmt.Errorf("artifact: create temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(encoded); err != nil {
		return "", fmt.Errorf("artifact: write temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("artifact: chmod: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("artifact: fsync: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("artifact: close temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("artifact: rename: %w: %w", apperr.ErrWriteFailure, err)
	}
	success = true
	return abs, nil
}

// pathFor rejects names that would land outside the root directory.
func (w *Writer) pathFor(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("artifact: invalid name %q: %w", name, apperr.ErrWriteFailure)
	}
	return filepath.Join(w.root, name), nil
}
