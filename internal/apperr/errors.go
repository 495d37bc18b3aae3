// Package apperr holds the sentinel errors shared across keyhash packages.
// Callers match them with errors.Is; producers wrap them with context.
package apperr

import "errors"

var (
	// ErrSourceUnavailable is returned when a document source is missing or unreadable.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedDocument is returned when source content is not a valid document.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrUnknownKey is returned when the key is absent from the top-level key table.
	ErrUnknownKey = errors.New("unknown key")
	// ErrMalformedRecord is returned when a present key's record cannot be walked.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrWriteFailure is returned when an artifact cannot be created.
	ErrWriteFailure = errors.New("write failure")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
