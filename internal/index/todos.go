package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// TodoFilter selects and orders todos. Zero values mean "no constraint".
type TodoFilter struct {
	Notebook         string
	IncludeNotebooks []string
	ExcludeNotebooks []string
	Status           models.TodoStatus
	Completed        *bool
	Overdue          bool
	DueStart         *time.Time
	DueEnd           *time.Time
	Priority         *int
	Tag              string
	PathContains     string
	IncludeExcluded  bool
	Sort             string // "", "due", "priority", "line"
	Limit            int

	// Now anchors the overdue comparison; zero means time.Now().
	Now time.Time
}

// Validate rejects malformed filter values before any database I/O.
func (f TodoFilter) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(
			models.StatusPending, models.StatusInProgress, models.StatusCompleted)),
		validation.Field(&f.Priority, validation.Min(1), validation.Max(9)),
		validation.Field(&f.Sort, validation.In("", "due", "priority", "line")),
		validation.Field(&f.Limit, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("index: todo filter: %v: %w", err, apperr.ErrInvalidArgument)
	}
	if f.DueStart != nil && f.DueEnd != nil && f.DueEnd.Before(*f.DueStart) {
		return fmt.Errorf("index: todo filter: due_end before due_start: %w", apperr.ErrInvalidArgument)
	}
	return nil
}

const todoColumns = `t.id, t.source_path, t.source_type, t.source_alias, t.content, t.raw_content,
	t.status, t.priority, t.due_date, t.due_has_time, t.created_date, t.tags,
	t.line_number, t.indent, t.parent_id`

// QueryTodos returns todos matching the filter, most recently added first
// unless the filter requests another sort.
func (db *DB) QueryTodos(f TodoFilter) ([]models.Todo, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	add := func(cond string, a ...any) {
		where = append(where, cond)
		args = append(args, a...)
	}

	if f.Notebook != "" {
		add(`n.notebook = ?`, f.Notebook)
	}
	if len(f.IncludeNotebooks) > 0 {
		add(`n.notebook IN (`+placeholders(len(f.IncludeNotebooks))+`)`, toAny(f.IncludeNotebooks)...)
	}
	if len(f.ExcludeNotebooks) > 0 {
		add(`(n.notebook IS NULL OR n.notebook NOT IN (`+placeholders(len(f.ExcludeNotebooks))+`))`, toAny(f.ExcludeNotebooks)...)
	}
	if f.Status != "" {
		add(`t.status = ?`, string(f.Status))
	}
	if f.Completed != nil {
		if *f.Completed {
			add(`t.status = ?`, string(models.StatusCompleted))
		} else {
			add(`t.status != ?`, string(models.StatusCompleted))
		}
	}
	if f.Overdue {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		add(`t.due_date IS NOT NULL AND substr(t.due_date, 1, 10) < ? AND t.status != ?`,
			now.Format("2006-01-02"), string(models.StatusCompleted))
	}
	if f.DueStart != nil {
		add(`t.due_date IS NOT NULL AND substr(t.due_date, 1, 10) >= ?`, f.DueStart.Format("2006-01-02"))
	}
	if f.DueEnd != nil {
		add(`t.due_date IS NOT NULL AND substr(t.due_date, 1, 10) <= ?`, f.DueEnd.Format("2006-01-02"))
	}
	if f.Priority != nil {
		add(`t.priority = ?`, *f.Priority)
	}
	if f.Tag != "" {
		add(`t.tags LIKE ?`, `%"`+strings.ToLower(f.Tag)+`"%`)
	}
	if f.PathContains != "" {
		add(`t.source_path LIKE ?`, "%"+f.PathContains+"%")
	}
	if !f.IncludeExcluded {
		// Todos from excluded notes are stored but hidden by default.
		add(`(n.excluded IS NULL OR n.excluded = 0)`)
	}

	q := `SELECT ` + todoColumns + `
		FROM todos t
		LEFT JOIN notes n ON n.path = t.source_path`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += orderClause(f.Sort)
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query todos: %w", err)
	}
	defer rows.Close()

	var out []models.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func orderClause(sort string) string {
	switch sort {
	case "due":
		return ` ORDER BY t.due_date IS NULL, t.due_date ASC, t.added_at DESC`
	case "priority":
		return ` ORDER BY t.priority IS NULL, t.priority ASC, t.added_at DESC`
	case "line":
		return ` ORDER BY t.source_path ASC, t.line_number ASC`
	default:
		return ` ORDER BY t.added_at DESC, t.rowid DESC`
	}
}

// GetTodo returns a single cached todo by id.
func (db *DB) GetTodo(id string) (*models.Todo, error) {
	row := db.conn.QueryRow(`SELECT `+todoColumns+` FROM todos t WHERE t.id = ?`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: todo %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTodoCompletion patches a todo's completion state without a rescan.
func (db *DB) UpdateTodoCompletion(id string, completed bool) error {
	status := models.StatusPending
	if completed {
		status = models.StatusCompleted
	}
	return db.UpdateTodoStatus(id, status)
}

// UpdateTodoStatus patches a todo's status without a rescan.
func (db *DB) UpdateTodoStatus(id string, status models.TodoStatus) error {
	if err := validation.Validate(status, validation.Required, validation.In(
		models.StatusPending, models.StatusInProgress, models.StatusCompleted)); err != nil {
		return fmt.Errorf("index: status %q: %w", status, apperr.ErrInvalidArgument)
	}
	return db.execTodoUpdate(id, `UPDATE todos SET status = ? WHERE id = ?`, string(status), id)
}

// UpdateTodoDueDate patches a todo's due date without a rescan.
func (db *DB) UpdateTodoDueDate(id string, due *time.Time, hasTime bool) error {
	return db.execTodoUpdate(id, `UPDATE todos SET due_date = ?, due_has_time = ? WHERE id = ?`,
		dueString(due, hasTime), boolInt(hasTime), id)
}

// UpdateTodoLine records a todo's re-verified line position.
func (db *DB) UpdateTodoLine(id string, line int) error {
	if line < 1 {
		return fmt.Errorf("index: line %d: %w", line, apperr.ErrInvalidArgument)
	}
	return db.execTodoUpdate(id, `UPDATE todos SET line_number = ? WHERE id = ?`, line, id)
}

// UpsertTodo inserts or replaces a single todo row. Used by the mutation
// path when an edit changes a todo's content and therefore its id.
func (db *DB) UpsertTodo(t models.Todo) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertTodos(tx, []models.Todo{t}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.mutations.Add(1)
	return nil
}

// DeleteTodo removes a todo row and the attachments it owns.
func (db *DB) DeleteTodo(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM attachments WHERE owner_type = ? AND owner_id = ?`,
		models.OwnerTodo, id); err != nil {
		return fmt.Errorf("index: delete todo attachments: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: todo %s: %w", id, apperr.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.mutations.Add(1)
	return nil
}

func (db *DB) execTodoUpdate(id, query string, args ...any) error {
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("index: update todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: todo %s: %w", id, apperr.ErrNotFound)
	}
	db.mutations.Add(1)
	return nil
}

func insertTodos(tx *sql.Tx, todos []models.Todo) error {
	if len(todos) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO todos
		(id, source_path, source_type, source_alias, content, raw_content, status,
		 priority, due_date, due_has_time, created_date, tags, line_number, indent, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare todo insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range todos {
		tagsJSON, _ := json.Marshal(t.Tags)
		var prio any
		if t.Priority != nil {
			prio = *t.Priority
		}
		_, err := stmt.Exec(t.ID, t.Source.Path, string(t.Source.Type), t.Source.Alias,
			t.Content, t.RawContent, string(t.Status), prio,
			dueString(t.DueDate, t.DueHasTime), boolInt(t.DueHasTime),
			t.CreatedDate, string(tagsJSON), t.LineNumber, t.Indent, t.ParentID)
		if err != nil {
			return fmt.Errorf("index: insert todo: %w", err)
		}
	}
	return nil
}

func scanTodo(row interface{ Scan(...any) error }) (models.Todo, error) {
	var t models.Todo
	var sourceType, tagsJSON string
	var prio sql.NullInt64
	var due sql.NullString
	var hasTime int
	err := row.Scan(&t.ID, &t.Source.Path, &sourceType, &t.Source.Alias, &t.Content,
		&t.RawContent, &t.Status, &prio, &due, &hasTime, &t.CreatedDate,
		&tagsJSON, &t.LineNumber, &t.Indent, &t.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("index: scan todo: %w", err)
	}
	t.Source.Type = models.SourceType(sourceType)
	if prio.Valid {
		p := int(prio.Int64)
		t.Priority = &p
	}
	t.DueHasTime = hasTime != 0
	t.DueDate = parseDate(due)
	_ = json.Unmarshal([]byte(tagsJSON), &t.Tags)
	return t, nil
}

func dueString(t *time.Time, hasTime bool) any {
	if t == nil {
		return nil
	}
	if hasTime {
		return t.Format("2006-01-02T15:04")
	}
	return t.Format("2006-01-02")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
