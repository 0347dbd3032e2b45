// Package engine is the facade consumed by the CLI/TUI: scans, queries,
// and consistent mutations over the vault and its cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/identity"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/mutate"
	"github.com/starford/dagaz/internal/storage"
)

// Engine wires storage, cache, scanner, and editor together. It is built
// once at process start and passed explicitly; Close releases the cache
// handle (used for test teardown as well).
type Engine struct {
	store   storage.Provider
	attach  *storage.AttachmentStore
	db      *index.DB
	scanner *index.Scanner
	editor  *mutate.Editor
	logger  *slog.Logger
}

// New builds an Engine from its components.
func New(store storage.Provider, attach *storage.AttachmentStore, db *index.DB, scanner *index.Scanner, editor *mutate.Editor, logger *slog.Logger) *Engine {
	return &Engine{store: store, attach: attach, db: db, scanner: scanner, editor: editor, logger: logger}
}

// Close releases the cache handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Cache exposes the cache store for read-side consumers.
func (e *Engine) Cache() index.Cache { return e.db }

// Scan reconciles files and cache. With path empty it runs a full scan;
// otherwise it incrementally reconciles the single note. indexVectors is
// accepted and ignored (no vector backend is wired in).
func (e *Engine) Scan(ctx context.Context, path string, indexVectors bool) (*index.Report, error) {
	if path == "" {
		return e.scanner.ScanAll(ctx, indexVectors)
	}
	indexed, err := e.scanner.ScanNote(ctx, path)
	if err != nil {
		return nil, err
	}
	report := &index.Report{Scanned: 1}
	if indexed {
		report.Indexed = 1
	} else {
		report.Skipped = 1
	}
	return report, nil
}

// QueryTodos returns cached todos matching the filter.
func (e *Engine) QueryTodos(f index.TodoFilter) ([]models.Todo, error) {
	return e.db.QueryTodos(f)
}

// GetSortedTodos returns cached todos in an explicit sort order.
func (e *Engine) GetSortedTodos(f index.TodoFilter, sort string) ([]models.Todo, error) {
	f.Sort = sort
	return e.db.QueryTodos(f)
}

// UpdateTodoCompletion sets a cached todo's completion state by editing its
// source file under the optimistic-concurrency protocol, then patching the
// cache row in place.
func (e *Engine) UpdateTodoCompletion(id string, completed bool) error {
	status := models.StatusPending
	if completed {
		status = models.StatusCompleted
	}
	return e.UpdateTodoStatus(id, status)
}

// UpdateTodoStatus is UpdateTodoCompletion generalized to all three states.
func (e *Engine) UpdateTodoStatus(id string, status models.TodoStatus) error {
	todo, err := e.db.GetTodo(id)
	if err != nil {
		return err
	}
	res, err := e.editor.SetStatus(todo.Source.Path, todo.LineNumber, todo.Content, status)
	if err != nil {
		return err
	}
	if err := e.db.UpdateTodoStatus(id, status); err != nil {
		return err
	}
	return e.db.UpdateTodoLine(id, res.Line)
}

// ToggleTodoInFile flips the checkbox at the given position and patches the
// cache. Returns the actual line number used, which may differ from the
// hint when the line moved.
func (e *Engine) ToggleTodoInFile(path string, line int, expected string) (int, error) {
	res, err := e.editor.Toggle(path, line, expected)
	if err != nil {
		return 0, err
	}
	e.patchTodo(path, expected, func(t *models.Todo) {
		t.Status = res.Status
		t.LineNumber = res.Line
		t.RawContent = res.Raw
	})
	return res.Line, nil
}

// UpdateTodoDueDate rewrites the @due: annotation at the given position.
// The edit changes the todo's visible text and therefore its id; the old
// cache row is replaced by the updated one.
func (e *Engine) UpdateTodoDueDate(path string, line int, expected string, due *time.Time, hasTime bool) (int, error) {
	res, err := e.editor.SetDueDate(path, line, expected, due, hasTime)
	if err != nil {
		return 0, err
	}

	oldID := identity.TodoID(path, expected)
	old, err := e.db.GetTodo(oldID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return res.Line, nil // not cached yet; next scan picks it up
		}
		return 0, err
	}
	updated := *old
	updated.ID = identity.TodoID(path, res.Content)
	updated.Content = res.Content
	updated.RawContent = res.Raw
	updated.Tags = extract.InlineTags(res.Content)
	updated.DueDate = due
	updated.DueHasTime = hasTime
	updated.LineNumber = res.Line
	if err := e.db.DeleteTodo(oldID); err != nil {
		return 0, err
	}
	if err := e.db.UpsertTodo(updated); err != nil {
		return 0, err
	}
	return res.Line, nil
}

// DeleteTodoFromFile removes the todo line from its source file and drops
// the cache row (with its attachments).
func (e *Engine) DeleteTodoFromFile(path string, line int, expected string) error {
	if _, err := e.editor.Delete(path, line, expected); err != nil {
		return err
	}
	id := identity.TodoID(path, expected)
	if err := e.db.DeleteTodo(id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// patchTodo applies fn to the cached row identified by (path, content) and
// writes it back. Best-effort: a missing row is left for the next scan.
func (e *Engine) patchTodo(path, content string, fn func(*models.Todo)) {
	id := identity.TodoID(path, content)
	todo, err := e.db.GetTodo(id)
	if err != nil {
		e.logger.Debug("cache patch skipped", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	fn(todo)
	if err := e.db.UpsertTodo(*todo); err != nil {
		e.logger.Warn("cache patch failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// AddFileAttachment attaches a file to a note or todo: optionally copies it
// into managed storage, appends the @attach: line to the owning note, and
// upserts the cache row in the same operation.
//
// For todo owners, line and expected locate the todo under the mutation
// protocol and the @attach: line is inserted below it, indented two spaces
// deeper.
func (e *Engine) AddFileAttachment(ownerType models.OwnerType, notePath string, line int, expected, src, title string, copyIn bool) (*models.Attachment, error) {
	target := src
	copied := false
	if copyIn {
		name, err := e.attach.CopyIn(src)
		if err != nil {
			return nil, err
		}
		target, copied = name, true
	}
	return e.addAttachment(ownerType, notePath, line, expected, target, title, models.AttachmentFile, copied)
}

// AddURLAttachment attaches a URL to a note or todo.
func (e *Engine) AddURLAttachment(ownerType models.OwnerType, notePath string, line int, expected, url, title string) (*models.Attachment, error) {
	return e.addAttachment(ownerType, notePath, line, expected, url, title, models.AttachmentURL, false)
}

func (e *Engine) addAttachment(ownerType models.OwnerType, notePath string, line int, expected, target, title string, typ models.AttachmentType, copied bool) (*models.Attachment, error) {
	attachLine := "@attach: " + target
	if title != "" {
		attachLine += fmt.Sprintf(" %q", title)
	}

	ownerID := notePath
	switch ownerType {
	case models.OwnerNote:
		data, err := e.store.Read(notePath)
		if err != nil {
			return nil, err
		}
		content := string(data)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		if err := e.store.Write(notePath, []byte(content+attachLine+"\n")); err != nil {
			return nil, err
		}
	case models.OwnerTodo:
		ownerID = identity.TodoID(notePath, expected)
		if _, err := e.editor.InsertBelow(notePath, line, expected, "  "+attachLine); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("engine: owner type %q: %w", ownerType, apperr.ErrInvalidArgument)
	}

	a := models.Attachment{
		ID:        identity.AttachmentID(target, string(ownerType), ownerID),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Type:      typ,
		Path:      target,
		Title:     title,
		AddedDate: time.Now(),
		Copied:    copied,
	}
	if err := e.db.UpsertAttachment(a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RemoveAttachment drops an attachment row from the cache. The markdown
// line and any copied file are left in place; a rescan keeps the row out
// only once the line is gone, so callers edit the note first.
func (e *Engine) RemoveAttachment(id string) error {
	return e.db.DeleteAttachment(id)
}

// QueryAttachments returns cached attachments matching the filter.
func (e *Engine) QueryAttachments(f index.AttachmentFilter) ([]models.Attachment, error) {
	return e.db.QueryAttachments(f)
}

// FindOrphanAttachmentFiles lists files in managed storage that no cached
// attachment references. Reported, never deleted.
func (e *Engine) FindOrphanAttachmentFiles() ([]string, error) {
	files, err := e.attach.Files()
	if err != nil {
		return nil, err
	}
	return e.db.OrphanFiles(files)
}

// Stats returns aggregate cache counts.
func (e *Engine) Stats() (*index.Stats, error) {
	return e.db.AttachmentStats()
}

// ResolveAttachment maps an attachment path to an absolute file location.
func (e *Engine) ResolveAttachment(path string) (string, error) {
	return e.attach.Resolve(path)
}
