// Package storage defines the vault file-system abstraction.
package storage

import (
	"context"
	"time"
)

// NoteMeta is lightweight per-file metadata returned by List.
type NoteMeta struct {
	Path      string    // relative to the vault root (alias-prefixed for external notebooks)
	Notebook  string    // first path segment
	Hash      string    // content hash of the file bytes
	UpdatedAt time.Time // file mtime
}

// Provider is the interface for vault file operations. Paths are always
// relative to the vault root; external notebook paths are prefixed with the
// notebook alias.
type Provider interface {
	// List enumerates every note file across all notebooks, internal and
	// external, with content hashes precomputed.
	List(ctx context.Context) ([]NoteMeta, error)
	// Read returns the raw bytes of a note file.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of a note file.
	Write(path string, content []byte) error
	// Delete removes a note file.
	Delete(path string) error
}
