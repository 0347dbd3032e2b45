package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// ReplaceNote upserts a note row and replaces all of its derived todo and
// attachment rows in one transaction. This is the scanner's per-file unit
// of work: after it commits, the cache matches the file exactly.
func (db *DB) ReplaceNote(note models.Note, todos []models.Todo, attachments []models.Attachment) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(note.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, date, tags, notebook, content_hash, excluded, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title        = excluded.title,
			date         = excluded.date,
			tags         = excluded.tags,
			notebook     = excluded.notebook,
			content_hash = excluded.content_hash,
			excluded     = excluded.excluded,
			updated_at   = excluded.updated_at
	`, note.Path, note.Title, dateString(note.Date), string(tagsJSON),
		note.Notebook, note.ContentHash, boolInt(note.Excluded), time.Now())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := deleteDerivedRows(tx, note.Path); err != nil {
		return err
	}
	if err := insertTodos(tx, todos); err != nil {
		return err
	}
	if err := insertAttachments(tx, attachments); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.mutations.Add(1)
	return nil
}

// DeleteNote removes a note row and cascades to every todo and attachment
// derived from it, including attachments owned by its todos.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDerivedRows(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.mutations.Add(1)
	return nil
}

// deleteDerivedRows removes all todo rows sourced from path, the
// attachments they own, and the attachments owned by the note itself.
func deleteDerivedRows(tx *sql.Tx, path string) error {
	_, err := tx.Exec(`
		DELETE FROM attachments
		WHERE (owner_type = ? AND owner_id = ?)
		   OR (owner_type = ? AND owner_id IN (SELECT id FROM todos WHERE source_path = ?))
	`, models.OwnerNote, path, models.OwnerTodo, path)
	if err != nil {
		return fmt.Errorf("index: delete note attachments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM todos WHERE source_path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note todos: %w", err)
	}
	return nil
}

// GetNote returns the cached note row for path.
func (db *DB) GetNote(path string) (*models.Note, error) {
	var n models.Note
	var tagsJSON string
	var date sql.NullString
	var excluded int
	err := db.conn.QueryRow(`
		SELECT path, title, date, tags, notebook, content_hash, excluded
		FROM notes WHERE path = ?
	`, path).Scan(&n.Path, &n.Title, &date, &tagsJSON, &n.Notebook, &n.ContentHash, &excluded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	n.Date = parseDate(date)
	n.Excluded = excluded != 0
	return &n, nil
}

// AllHashes returns path -> content hash for every cached note.
func (db *DB) AllHashes() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, content_hash FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, rows.Err()
}

func dateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02T15:04")
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return &t
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
