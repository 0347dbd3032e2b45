package index

import (
	"database/sql"
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// AttachmentFilter selects attachments. Zero values mean "no constraint".
type AttachmentFilter struct {
	Type         models.AttachmentType
	OwnerType    models.OwnerType
	OwnerID      string
	Notebook     string
	PathContains string
	CopiedOnly   bool
	Limit        int
}

// Validate rejects malformed filter values before any database I/O.
func (f AttachmentFilter) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.In(models.AttachmentFile, models.AttachmentURL)),
		validation.Field(&f.OwnerType, validation.In(models.OwnerNote, models.OwnerTodo)),
		validation.Field(&f.Limit, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("index: attachment filter: %v: %w", err, apperr.ErrInvalidArgument)
	}
	return nil
}

// UpsertAttachment inserts or replaces a single attachment row.
func (db *DB) UpsertAttachment(a models.Attachment) error {
	return db.UpsertAttachments([]models.Attachment{a})
}

// UpsertAttachments inserts or replaces a batch in one transaction, so a
// full-tree rescan does not commit per row.
func (db *DB) UpsertAttachments(as []models.Attachment) error {
	if len(as) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertAttachments(tx, as); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.mutations.Add(1)
	return nil
}

func insertAttachments(tx *sql.Tx, as []models.Attachment) error {
	if len(as) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO attachments
		(id, owner_type, owner_id, type, path, title, added_date, copied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare attachment insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range as {
		_, err := stmt.Exec(a.ID, string(a.OwnerType), a.OwnerID, string(a.Type),
			a.Path, a.Title, a.AddedDate, boolInt(a.Copied))
		if err != nil {
			return fmt.Errorf("index: insert attachment: %w", err)
		}
	}
	return nil
}

// DeleteAttachment removes a single attachment row.
func (db *DB) DeleteAttachment(id string) error {
	res, err := db.conn.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: attachment %s: %w", id, apperr.ErrNotFound)
	}
	db.mutations.Add(1)
	return nil
}

// DeleteAttachmentsForOwner removes every attachment owned by the given
// note or todo. Used when an owner is deleted or rewritten.
func (db *DB) DeleteAttachmentsForOwner(ownerType models.OwnerType, ownerID string) error {
	res, err := db.conn.Exec(`DELETE FROM attachments WHERE owner_type = ? AND owner_id = ?`,
		string(ownerType), ownerID)
	if err != nil {
		return fmt.Errorf("index: delete attachments for owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		db.mutations.Add(1)
	}
	return nil
}

// QueryAttachments returns attachments matching the filter, most recently
// added first. The notebook filter joins through both owner kinds: note
// owners directly, todo owners via their source note.
func (db *DB) QueryAttachments(f AttachmentFilter) ([]models.Attachment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	if f.Type != "" {
		where = append(where, `a.type = ?`)
		args = append(args, string(f.Type))
	}
	if f.OwnerType != "" {
		where = append(where, `a.owner_type = ?`)
		args = append(args, string(f.OwnerType))
	}
	if f.OwnerID != "" {
		where = append(where, `a.owner_id = ?`)
		args = append(args, f.OwnerID)
	}
	if f.Notebook != "" {
		where = append(where, `(
			(a.owner_type = 'note' AND a.owner_id IN (SELECT path FROM notes WHERE notebook = ?))
			OR
			(a.owner_type = 'todo' AND a.owner_id IN (
				SELECT t.id FROM todos t JOIN notes n ON n.path = t.source_path WHERE n.notebook = ?))
		)`)
		args = append(args, f.Notebook, f.Notebook)
	}
	if f.PathContains != "" {
		where = append(where, `a.path LIKE ?`)
		args = append(args, "%"+f.PathContains+"%")
	}
	if f.CopiedOnly {
		where = append(where, `a.copied = 1`)
	}

	q := `SELECT a.id, a.owner_type, a.owner_id, a.type, a.path, a.title, a.added_date, a.copied
		FROM attachments a`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY a.added_date DESC, a.rowid DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query attachments: %w", err)
	}
	defer rows.Close()

	var out []models.Attachment
	for rows.Next() {
		var a models.Attachment
		var ownerType, typ string
		var copied int
		if err := rows.Scan(&a.ID, &ownerType, &a.OwnerID, &typ, &a.Path, &a.Title, &a.AddedDate, &copied); err != nil {
			return nil, fmt.Errorf("index: scan attachment: %w", err)
		}
		a.OwnerType = models.OwnerType(ownerType)
		a.Type = models.AttachmentType(typ)
		a.Copied = copied != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats aggregates cache counts for reporting without scanning files.
type Stats struct {
	Notes        int            `json:"notes"`
	Todos        int            `json:"todos"`
	TodosByState map[string]int `json:"todos_by_state"`
	Attachments  int            `json:"attachments"`
	ByType       map[string]int `json:"attachments_by_type"`
	ByOwner      map[string]int `json:"attachments_by_owner"`
	Copied       int            `json:"copied"`
	Linked       int            `json:"linked"`
}

// AttachmentStats returns aggregate counts over the whole cache.
func (db *DB) AttachmentStats() (*Stats, error) {
	s := &Stats{
		TodosByState: make(map[string]int),
		ByType:       make(map[string]int),
		ByOwner:      make(map[string]int),
	}

	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&s.Notes); err != nil {
		return nil, fmt.Errorf("index: stats notes: %w", err)
	}
	if err := db.countGroups(`SELECT status, count(*) FROM todos GROUP BY status`, s.TodosByState, &s.Todos); err != nil {
		return nil, err
	}
	if err := db.countGroups(`SELECT type, count(*) FROM attachments GROUP BY type`, s.ByType, &s.Attachments); err != nil {
		return nil, err
	}
	var total int
	if err := db.countGroups(`SELECT owner_type, count(*) FROM attachments GROUP BY owner_type`, s.ByOwner, &total); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM attachments WHERE copied = 1`).Scan(&s.Copied); err != nil {
		return nil, fmt.Errorf("index: stats copied: %w", err)
	}
	s.Linked = s.Attachments - s.Copied
	return s, nil
}

func (db *DB) countGroups(query string, into map[string]int, total *int) error {
	rows, err := db.conn.Query(query)
	if err != nil {
		return fmt.Errorf("index: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		into[k] = n
		*total += n
	}
	return rows.Err()
}

// OrphanFiles cross-references the files physically present in managed
// storage against every attachment row referencing them by filename or full
// path, and returns the files with no owning row. A garbage-collection aid;
// nothing is deleted.
func (db *DB) OrphanFiles(present []string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM attachments WHERE type = 'file'`)
	if err != nil {
		return nil, fmt.Errorf("index: orphan files: %w", err)
	}
	defer rows.Close()

	referenced := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		referenced[p] = struct{}{}
		referenced[path.Base(p)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var orphans []string
	for _, name := range present {
		if _, ok := referenced[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}
