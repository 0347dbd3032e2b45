// Package apperr defines the error taxonomy shared across the engine.
//
// Callers match with errors.Is; lower layers wrap these sentinels with
// context via fmt.Errorf("...: %w", ...).
package apperr

import "errors"

var (
	// ErrNotFound indicates a note, todo, or attachment source that does
	// not exist on disk or in the cache.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a content mismatch: the expected snapshot of a
	// todo line was not found at or near its recorded position, meaning the
	// file changed underneath the in-memory view. The mutation was refused
	// and the file was not modified.
	ErrConflict = errors.New("content mismatch")

	// ErrParse indicates malformed note content, typically broken
	// frontmatter YAML. Reported per-file during a scan.
	ErrParse = errors.New("parse error")

	// ErrInvalidArgument indicates a bad input (line number, filter value)
	// rejected before any file or database I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists indicates an attempt to create something that is
	// already present.
	ErrAlreadyExists = errors.New("already exists")
)
