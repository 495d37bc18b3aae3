// Package locator finds the Info value for a key inside a loaded document.
//
// The walk is fixed:
//
//	root["A"][key] -> first field of the record -> "maindata" -> [0] -> "Info"
//
// Each step is checked separately so a failure names the step that broke.
package locator

import (
	"fmt"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/document"
)

// Field names along the walk.
const (
	TableField = "A"
	DataField  = "maindata"
	InfoField  = "Info"
)

// Steps reported in PathError.
const (
	StepTable  = "A"
	StepRecord = "record"
	StepFirst  = "first value"
	StepData   = DataField
	StepEntry  = DataField + "[0]"
	StepInfo   = InfoField
)

// PathError reports which step of the walk failed for a key.
type PathError struct {
	Key  string
	Step string
	Msg  string
	Err  error // apperr.ErrMalformedDocument, ErrUnknownKey or ErrMalformedRecord
}

func (e *PathError) Error() string {
	return fmt.Sprintf("locate %q: %s: %s: %v", e.Key, e.Step, e.Msg, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Locate returns the Info string for key.
func Locate(doc *document.Document, key string) (string, error) {
	if doc == nil || doc.Root == nil {
		return "", &PathError{Key: key, Step: StepTable, Msg: "empty document", Err: apperr.ErrMalformedDocument}
	}
	return LocateNode(doc.Root, key)
}

// LocateNode runs the walk from an already parsed root.
func LocateNode(root *document.Node, key string) (string, error) {
	fail := func(step string, err error, format string, args ...any) (string, error) {
		return "", &PathError{Key: key, Step: step, Msg: fmt.Sprintf(format, args...), Err: err}
	}

	table, ok := root.Field(TableField)
	if !ok {
		return fail(StepTable, apperr.ErrMalformedDocument, "root %s has no %q field", root.Kind(), TableField)
	}
	if table.Kind() != document.KindObject {
		return fail(StepTable, apperr.ErrMalformedDocument, "%q is %s, want object", TableField, describe(table))
	}

	record, ok := table.Field(key)
	if !ok {
		return fail(StepRecord, apperr.ErrUnknownKey, "key not present")
	}
	if record.Kind() != document.KindObject {
		return fail(StepRecord, apperr.ErrMalformedRecord, "record is %s, want object", describe(record))
	}

	_, inner, ok := record.First()
	if !ok {
		return fail(StepFirst, apperr.ErrMalformedRecord, "record is empty")
	}
	if inner.Kind() != document.KindObject {
		return fail(StepFirst, apperr.ErrMalformedRecord, "first value is %s, want object", describe(inner))
	}

	data, ok := inner.Field(DataField)
	if !ok {
		return fail(StepData, apperr.ErrMalformedRecord, "field missing")
	}
	if data.Kind() != document.KindArray {
		return fail(StepData, apperr.ErrMalformedRecord, "%s, want array", describe(data))
	}

	entry, ok := data.Index(0)
	if !ok {
		return fail(StepEntry, apperr.ErrMalformedRecord, "sequence is empty")
	}
	if entry.Kind() != document.KindObject {
		return fail(StepEntry, apperr.ErrMalformedRecord, "%s, want object", describe(entry))
	}

	info, ok := entry.Field(InfoField)
	if !ok {
		return fail(StepInfo, apperr.ErrMalformedRecord, "field missing")
	}
	text, ok := info.Text()
	if !ok {
		return fail(StepInfo, apperr.ErrMalformedRecord, "%s, want string", describe(info))
	}
	return text, nil
}

// describe names a node's kind, followed by its literal for numbers and bools.
func describe(n *document.Node) string {
	if lit := n.Literal(); lit != "" && n.Kind() != document.KindNull {
		return n.Kind().String() + " " + lit
	}
	return n.Kind().String()
}
