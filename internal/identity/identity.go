// Package identity derives the content-addressed identifiers used by the
// cache. All functions are pure: identical inputs always produce identical
// output, which is what makes rescans idempotent.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// NoteHash returns the hex-encoded SHA-256 digest of raw file bytes. Used
// for change detection only, never security.
func NoteHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// TodoID derives a stable todo identifier from its source path and cleaned
// content (checkbox marker and leading whitespace stripped). Insensitive to
// indentation and marker changes, sensitive to text changes.
func TodoID(sourcePath, cleanedContent string) string {
	return sum(sourcePath, cleanedContent)
}

// AttachmentID derives a stable attachment identifier. The owner is part of
// the input so the same path attached to two owners gets two distinct IDs.
func AttachmentID(pathOrURL, ownerType, ownerID string) string {
	return sum(pathOrURL, ownerType, ownerID)
}

// sum hashes the NUL-joined parts. The separator keeps ("a","bc") and
// ("ab","c") distinct.
func sum(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
