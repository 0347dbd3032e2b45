package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/identity"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
	"github.com/starford/dagaz/internal/storage"
)

// Scanner reconciles the note tree with the cache. It only reads files;
// the mutation protocol is the sole write path to notes.
type Scanner struct {
	db      *DB
	store   storage.Provider
	dialect extract.Dialect
	aliases map[string]struct{} // external notebook aliases
	logger  *slog.Logger
}

// NewScanner builds a scanner. aliases lists the external notebook names so
// their todos are tagged as linked-file sources.
func NewScanner(db *DB, store storage.Provider, dialect extract.Dialect, aliases []string, logger *slog.Logger) *Scanner {
	am := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		am[a] = struct{}{}
	}
	return &Scanner{db: db, store: store, dialect: dialect, aliases: am, logger: logger}
}

// FileError records a per-file failure that did not abort the scan.
type FileError struct {
	Path string
	Err  error
}

// Report summarizes one scan pass.
type Report struct {
	Scanned int // files enumerated
	Indexed int // files (re)extracted and upserted
	Skipped int // files whose hash matched the cache
	Removed int // stale cache rows deleted
	Failed  []FileError
}

// ScanAll walks every notebook and converges the cache: for every existing
// file exactly one note row with the current content hash plus its derived
// todo/attachment rows, and no rows for files that no longer exist.
//
// Unchanged files (cached hash == file hash) are skipped entirely, which
// makes a back-to-back rescan a no-op. A file that fails to parse is
// reported in the returned Report and does not abort the rest of the pass.
// The stale-row sweep runs strictly after all per-file upserts.
//
// indexVectors is accepted for API compatibility: the vector refresh is a
// decoupled pass and no vector backend is wired in, so it is skipped.
func (s *Scanner) ScanAll(ctx context.Context, indexVectors bool) (*Report, error) {
	metas, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := s.db.AllHashes()
	if err != nil {
		return nil, err
	}

	report := &Report{Scanned: len(metas)}
	disk := make(map[string]struct{}, len(metas))

	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if cached[m.Path] == m.Hash {
			report.Skipped++
			continue
		}

		if err := s.indexOne(m.Path, m.Notebook); err != nil {
			report.Failed = append(report.Failed, FileError{Path: m.Path, Err: err})
			s.logger.Warn("scan: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		report.Indexed++
		s.logger.Debug("scan: indexed", slog.String("path", m.Path))
	}

	// Stale sweep: only after every per-file upsert has run.
	for p := range cached {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.db.DeleteNote(p); err != nil {
			report.Failed = append(report.Failed, FileError{Path: p, Err: err})
			s.logger.Warn("scan: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		report.Removed++
		s.logger.Debug("scan: removed stale", slog.String("path", p))
	}

	if indexVectors {
		s.logger.Debug("scan: vector refresh skipped, no backend configured")
	}
	return report, nil
}

// ScanNote incrementally reconciles a single file and reports whether it
// actually reindexed (false means the cached hash matched). A missing file
// has its cache rows removed and the not-found error is still surfaced so
// the caller knows the note is gone.
func (s *Scanner) ScanNote(_ context.Context, path string) (bool, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			if delErr := s.db.DeleteNote(path); delErr != nil {
				return false, delErr
			}
		}
		return false, err
	}

	hash := identity.NoteHash(data)
	cached, err := s.db.AllHashes()
	if err != nil {
		return false, err
	}
	if cached[path] == hash {
		return false, nil
	}
	if err := s.indexBytes(path, notebookOf(path), data, hash); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scanner) indexOne(path, notebook string) error {
	data, err := s.store.Read(path)
	if err != nil {
		return err
	}
	return s.indexBytes(path, notebook, data, identity.NoteHash(data))
}

// indexBytes parses and extracts one file and replaces its cache rows in a
// single transaction.
func (s *Scanner) indexBytes(path, notebook string, data []byte, hash string) error {
	res, err := parser.Parse(data, path)
	if err != nil {
		return err
	}

	note := models.Note{
		Path:        path,
		Title:       res.Title,
		Date:        res.Date,
		Tags:        res.Tags,
		Links:       append(res.Links, parser.FrontmatterLinks(res.Frontmatter)...),
		Notebook:    notebook,
		ContentHash: hash,
		Excluded:    res.Excluded,
	}

	todos, attachments := extract.Entities(s.dialect, string(data), s.sourceFor(path), time.Now())
	return s.db.ReplaceNote(note, todos, attachments)
}

// sourceFor classifies a path: external-alias notebooks produce linked-file
// sources, a top-level inbox.md is the inbox, everything else is a note.
func (s *Scanner) sourceFor(path string) models.TodoSource {
	nb := notebookOf(path)
	if _, ok := s.aliases[nb]; ok {
		return models.TodoSource{Type: models.SourceLinkedFile, Path: path, Alias: nb}
	}
	if path == "inbox.md" {
		return models.TodoSource{Type: models.SourceInbox, Path: path}
	}
	return models.TodoSource{Type: models.SourceNote, Path: path}
}

func notebookOf(path string) string {
	if nb, _, ok := strings.Cut(path, "/"); ok {
		return nb
	}
	return ""
}

// Summary renders a short human-readable scan result.
func (r *Report) Summary() string {
	return fmt.Sprintf("scanned %d, indexed %d, skipped %d, removed %d, failed %d",
		r.Scanned, r.Indexed, r.Skipped, r.Removed, len(r.Failed))
}
