// Package searchpath keeps the ordered list of directories consulted when a
// document source is given as a relative name that does not exist in the
// working directory.
package searchpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Default is the process-wide search path.
var Default = &List{}

// List is an append-only, ordered directory list. It is safe for concurrent use.
type List struct {
	mu   sync.RWMutex
	dirs []string
}

// New returns a List seeded with dirs.
func New(dirs ...string) *List {
	return &List{dirs: slices.Clone(dirs)}
}

// Append adds dir to the end of the list. Duplicates are kept, mirroring
// how repeated appends behave on a plain search path.
func (l *List) Append(dir string) {
	l.mu.Lock()
	l.dirs = append(l.dirs, dir)
	l.mu.Unlock()
}

// Dirs returns a copy of the list.
func (l *List) Dirs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.dirs)
}

// Contains reports whether dir was appended.
func (l *List) Contains(dir string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.dirs, dir)
}

// Resolve returns name unchanged when it is absolute or exists relative to
// the working directory; otherwise the first search directory holding it.
// The returned error wraps os.ErrNotExist when nothing matches.
func (l *List) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	for _, dir := range l.Dirs() {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("searchpath: %s: %w", name, os.ErrNotExist)
}
