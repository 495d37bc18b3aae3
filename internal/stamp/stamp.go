// Package stamp registers a search directory and records the time of the
// update inside a JSON file.
package stamp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/searchpath"
)

// Field is the top-level field rewritten on every update.
const Field = "last_updated"

// Layout formats Field values, e.g. "2023-08-28 12:34:56.123456".
const Layout = "2006-01-02 15:04:05.000000"

// Object is a JSON object with its fields in file order.
type Object = orderedmap.OrderedMap[string, json.RawMessage]

// Updater applies updates against a search path and clock.
type Updater struct {
	search *searchpath.List
	clock  clock.Clock
}

// New returns an Updater. Nil arguments mean searchpath.Default and the real clock.
func New(search *searchpath.List, clk clock.Clock) *Updater {
	if search == nil {
		search = searchpath.Default
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Updater{search: search, clock: clk}
}

// Update appends dir to the search path (when non-empty), then sets Field in
// jsonFile to the current local time and rewrites the file with 4-space
// indentation. Other fields keep their order and content. The file must
// already exist and hold a JSON object.
func (u *Updater) Update(dir, jsonFile string) (*Object, error) {
	if dir != "" {
		u.search.Append(dir)
	}

	info, err := os.Stat(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("stamp: stat %s: %w: %w", jsonFile, apperr.ErrSourceUnavailable, err)
	}
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("stamp: read %s: %w: %w", jsonFile, apperr.ErrSourceUnavailable, err)
	}

	obj := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("stamp: parse %s: %w: %w", jsonFile, apperr.ErrMalformedDocument, err)
	}

	now, err := json.Marshal(u.clock.Now().Format(Layout))
	if err != nil {
		return nil, fmt.Errorf("stamp: encode time: %w", err)
	}
	obj.Set(Field, now)

	out, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("stamp: encode %s: %w", jsonFile, err)
	}
	if err := replaceFile(jsonFile, out, info.Mode().Perm()); err != nil {
		return nil, err
	}
	return obj, nil
}

// LastUpdated returns the decoded Field of obj.
func LastUpdated(obj *Object) (string, bool) {
	raw, ok := obj.Get(Field)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// replaceFile swaps content in via a temp file in the same directory.
func replaceFile(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".keyhash-stamp-*")
	if err != nil {
		return fmt.Errorf("stamp: create temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("stamp: write temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("stamp: chmod: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stamp: close temp: %w: %w", apperr.ErrWriteFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("stamp: rename: %w: %w", apperr.ErrWriteFailure, err)
	}
	success = true
	return nil
}
