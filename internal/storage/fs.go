package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/identity"
)

// FS implements Provider over the local file system. It serves one managed
// root plus zero or more external notebooks (aliased directories elsewhere
// on disk).
type FS struct {
	root     string            // absolute path to the managed vault root
	external map[string]string // alias -> absolute path
	ignore   []string          // doublestar patterns, matched against relative paths
}

// NewFS creates an FS rooted at root. external maps notebook aliases to
// directories outside the root; ignore holds glob patterns (doublestar
// syntax) for files to skip during enumeration.
func NewFS(root string, external map[string]string, ignore []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}

	ext := make(map[string]string, len(external))
	for alias, dir := range external {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("storage: resolve external notebook %s: %w", alias, err)
		}
		ext[alias] = absDir
	}

	for _, p := range ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: bad ignore pattern %q: %w", p, apperr.ErrInvalidArgument)
		}
	}

	return &FS{root: abs, external: ext, ignore: ignore}, nil
}

// safePath resolves a relative vault path to an absolute one and rejects
// anything that escapes its notebook root. The first path segment selects an
// external notebook when it matches a configured alias.
func (f *FS) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == "" || cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("storage: bad path %q: %w", rel, apperr.ErrInvalidArgument)
	}

	base := f.root
	first, rest, hasRest := strings.Cut(filepath.ToSlash(cleaned), "/")
	if dir, ok := f.external[first]; ok {
		if !hasRest {
			return "", fmt.Errorf("storage: bad path %q: %w", rel, apperr.ErrInvalidArgument)
		}
		base = dir
		cleaned = filepath.FromSlash(rest)
	}

	abs, err := filepath.Abs(filepath.Join(base, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes notebook root: %q: %w", rel, apperr.ErrInvalidArgument)
	}
	return abs, nil
}

func (f *FS) ignored(rel string) bool {
	for _, p := range f.ignore {
		if ok, _ := doublestar.Match(p, filepath.ToSlash(rel)); ok {
			return true
		}
	}
	return false
}

// List walks the managed root and every external notebook, returning
// metadata for each .md file. Hashing runs on a bounded worker pool; the
// result is sorted by path so callers see a deterministic order.
func (f *FS) List(ctx context.Context) ([]NoteMeta, error) {
	type root struct{ prefix, dir string }
	roots := []root{{"", f.root}}
	for alias, dir := range f.external {
		roots = append(roots, root{alias, dir})
	}

	var metas []NoteMeta
	for _, r := range roots {
		err := filepath.WalkDir(r.dir, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && p != r.dir {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".md") {
				return nil
			}
			rel, err := filepath.Rel(r.dir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if r.prefix != "" {
				rel = r.prefix + "/" + rel
			}
			if f.ignored(rel) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			metas = append(metas, NoteMeta{
				Path:      rel,
				Notebook:  notebookOf(rel),
				UpdatedAt: info.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", r.dir, err)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range metas {
		i := i
		g.Go(func() error {
			data, err := f.Read(metas[i].Path)
			if err != nil {
				// A file deleted between the walk and this read is not an
				// error: it simply is not part of this enumeration, and the
				// scanner's stale sweep reconciles its cache rows.
				if errors.Is(err, apperr.ErrNotFound) {
					return nil
				}
				return err
			}
			metas[i].Hash = identity.NoteHash(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := metas[:0]
	for _, m := range metas {
		if m.Hash != "" {
			kept = append(kept, m)
		}
	}
	metas = kept

	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
	return metas, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the file at path (tmp file + rename).
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

func notebookOf(rel string) string {
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return ""
}

var _ Provider = (*FS)(nil)
