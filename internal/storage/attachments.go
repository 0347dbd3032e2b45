package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AttachmentStore manages the directory that physically-copied attachments
// live in. Files that are only linked (copied=false) stay wherever the user
// keeps them.
type AttachmentStore struct {
	dir       string // absolute path to managed attachment storage
	notesRoot string // absolute vault root, for relative resolution
}

// NewAttachmentStore creates the managed attachment directory if needed.
func NewAttachmentStore(dir, notesRoot string) (*AttachmentStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve attachments dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create attachments dir: %w", err)
	}
	absRoot, err := filepath.Abs(notesRoot)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve notes root: %w", err)
	}
	return &AttachmentStore{dir: abs, notesRoot: absRoot}, nil
}

// Dir returns the absolute managed storage path.
func (a *AttachmentStore) Dir() string { return a.dir }

// Resolve maps an attachment path to an absolute file path, checking the
// managed attachments dir first, then the notes root, then treating the
// path as absolute. On a relative-name collision the attachments dir wins.
func (a *AttachmentStore) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		if p := filepath.Join(a.dir, path); fileExists(p) {
			return p, nil
		}
		if p := filepath.Join(a.notesRoot, path); fileExists(p) {
			return p, nil
		}
	}
	if fileExists(path) {
		return path, nil
	}
	return "", fmt.Errorf("storage: attachment %s: %w", path, os.ErrNotExist)
}

// CopyIn copies src into managed storage and returns the stored filename.
// An existing file with the same name is not overwritten; a numeric suffix
// is appended instead.
func (a *AttachmentStore) CopyIn(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: open attachment source: %w", err)
	}
	defer in.Close()

	name := filepath.Base(src)
	dst := filepath.Join(a.dir, name)
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for n := 1; fileExists(dst); n++ {
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		dst = filepath.Join(a.dir, name)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("storage: create attachment copy: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("storage: copy attachment: %w", err)
	}
	if err := out.Sync(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("storage: sync attachment copy: %w", err)
	}
	return name, nil
}

// Files returns the names of all regular files in managed storage. Used by
// orphan detection.
func (a *AttachmentStore) Files() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: read attachments dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
