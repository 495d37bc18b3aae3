// Package document loads JSON sources into an ordered, typed tree.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/tidwall/jsonc"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/searchpath"
)

// DefaultMaxBytes caps how much of a source is read.
const DefaultMaxBytes int64 = 64 << 20

// Document is a parsed source.
type Document struct {
	Source   string // resolved location the bytes were read from
	Checksum string // hex sha256 of the raw bytes
	Root     *Node
}

// Loader reads and parses document sources.
type Loader struct {
	allowComments bool
	maxBytes      int64
	search        *searchpath.List
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithComments accepts // and /* */ comments and trailing commas.
func WithComments(allow bool) LoaderOption {
	return func(l *Loader) { l.allowComments = allow }
}

// WithMaxBytes sets the largest source accepted. Non-positive means DefaultMaxBytes.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithSearchPath sets the directories tried for relative sources.
func WithSearchPath(list *searchpath.List) LoaderOption {
	return func(l *Loader) { l.search = list }
}

// NewLoader creates a Loader. Without options it reads strict JSON and
// resolves relative names through searchpath.Default.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{maxBytes: DefaultMaxBytes, search: searchpath.Default}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads source and parses it. Failures wrap apperr.ErrSourceUnavailable
// or apperr.ErrMalformedDocument.
func (l *Loader) Load(source string) (*Document, error) {
	path, err := l.search.Resolve(source)
	if err != nil {
		return nil, fmt.Errorf("document: resolve %s: %w: %w", source, apperr.ErrSourceUnavailable, err)
	}
	data, err := l.read(path)
	if err != nil {
		return nil, err
	}
	root, err := Parse(data, l.allowComments)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", path, err)
	}
	return &Document{Source: path, Checksum: checksum.Hex(data), Root: root}, nil
}

func (l *Loader) read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("document: stat %s: %w: %w", path, apperr.ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document: %s is a directory: %w", path, apperr.ErrSourceUnavailable)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("document: %s is %d bytes, limit %d: %w", path, info.Size(), l.maxBytes, apperr.ErrSourceUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w: %w", path, apperr.ErrSourceUnavailable, err)
	}
	return data, nil
}

// Parse builds a tree from raw bytes. Errors wrap apperr.ErrMalformedDocument.
func Parse(data []byte, allowComments bool) (*Node, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("content is not UTF-8: %w", apperr.ErrMalformedDocument)
	}
	if allowComments {
		data = jsonc.ToJSON(data)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("content is not valid JSON: %w", apperr.ErrMalformedDocument)
	}
	data = repairSurrogates(data)
	value, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("parse root: %w: %w", apperr.ErrMalformedDocument, err)
	}
	root, err := build(value, typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrMalformedDocument, err)
	}
	return root, nil
}

func build(value []byte, typ jsonparser.ValueType) (*Node, error) {
	switch typ {
	case jsonparser.Object:
		obj := NewObject()
		err := jsonparser.ObjectEach(value, func(key, v []byte, t jsonparser.ValueType, _ int) error {
			child, err := build(v, t)
			if err != nil {
				return err
			}
			obj.Set(string(key), child)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("object: %w", err)
		}
		return obj, nil

	case jsonparser.Array:
		arr := NewArray()
		var inner error
		_, err := jsonparser.ArrayEach(value, func(v []byte, t jsonparser.ValueType, _ int, itemErr error) {
			if inner != nil {
				return
			}
			if itemErr != nil {
				inner = itemErr
				return
			}
			child, err := build(v, t)
			if err != nil {
				inner = err
				return
			}
			arr.Append(child)
		})
		if err == nil {
			err = inner
		}
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		return arr, nil

	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, fmt.Errorf("string: %w", err)
		}
		return NewString(s), nil

	case jsonparser.Number:
		return NewNumber(string(value)), nil

	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return nil, fmt.Errorf("bool: %w", err)
		}
		return NewBool(b), nil

	case jsonparser.Null:
		return NewNull(), nil

	default:
		return nil, fmt.Errorf("unexpected value type %s", typ)
	}
}

// repairSurrogates rewrites \u escapes that do not form a valid UTF-16
// surrogate pair to \ufffd. Such escapes are legal JSON, but jsonparser
// rejects lone surrogates and merges a high surrogate with any following
// escape. data must already be valid JSON; escapes keep their length.
func repairSurrogates(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u`)) {
		return data
	}
	var out []byte
	replace := func(at int) {
		if out == nil {
			out = bytes.Clone(data)
		}
		copy(out[at:at+6], `\ufffd`)
	}

	inString := false
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == '"':
			inString = !inString
		case c == '\\' && inString:
			if data[i+1] != 'u' {
				i++
				continue
			}
			r := hex4(data[i+2 : i+6])
			switch {
			case utf16.IsSurrogate(r) && r < 0xdc00:
				if i+12 <= len(data) && data[i+6] == '\\' && data[i+7] == 'u' {
					if lo := hex4(data[i+8 : i+12]); lo >= 0xdc00 && lo < 0xe000 {
						i += 11
						continue
					}
				}
				replace(i)
			case utf16.IsSurrogate(r):
				replace(i)
			}
			i += 5
		}
	}
	if out == nil {
		return data
	}
	return out
}

func hex4(b []byte) rune {
	var r rune
	for _, c := range b {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			r |= rune(c - 'A' + 10)
		}
	}
	return r
}
