// Package models defines the domain types shared across keyhash packages.
package models

import "time"

// Artifact describes one digest file written by an extraction.
type Artifact struct {
	ID             int64     `json:"id,omitempty"`
	Key            string    `json:"key"`
	Source         string    `json:"source"`
	SourceChecksum string    `json:"source_checksum"`
	Algorithm      string    `json:"algorithm"`
	Digest         string    `json:"digest"`
	Path           string    `json:"path"`
	CreatedAt      time.Time `json:"created_at"`
}
