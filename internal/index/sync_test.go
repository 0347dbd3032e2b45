package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

func testScanner(t *testing.T, db *DB, dir string) *Scanner {
	t.Helper()
	store, err := storage.NewFS(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScanner(db, store, extract.CheckboxDialect{}, nil, logger)
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanAll_IndexesTree(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "work/plan.md", "# Plan\n- [ ] Task #urgent @due:2025-12-01\n  @attach: report.pdf \"Report\"\n")
	writeFile(t, dir, "home/list.md", "- [x] done thing\n")

	report, err := testScanner(t, db, dir).ScanAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 2 || report.Indexed != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}

	todos, err := db.QueryTodos(TodoFilter{Notebook: "work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 1 {
		t.Fatalf("work todos = %d, want 1", len(todos))
	}
	todo := todos[0]
	if todo.DueDate == nil || todo.DueDate.Format("2006-01-02") != "2025-12-01" {
		t.Errorf("due = %v", todo.DueDate)
	}
	if len(todo.Tags) != 1 || todo.Tags[0] != "urgent" {
		t.Errorf("tags = %v", todo.Tags)
	}

	as, err := db.QueryAttachments(AttachmentFilter{OwnerType: models.OwnerTodo, OwnerID: todo.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(as) != 1 || as[0].Type != models.AttachmentFile || as[0].Path != "report.pdf" || as[0].Title != "Report" {
		t.Errorf("attachment = %+v", as)
	}
}

func TestScanAll_SecondPassIsNoOp(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "- [ ] one\n")
	writeFile(t, dir, "b.md", "- [ ] two\n")
	sc := testScanner(t, db, dir)

	if _, err := sc.ScanAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	before := db.Mutations()

	report, err := sc.ScanAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 0 || report.Skipped != 2 || report.Removed != 0 {
		t.Errorf("second pass report = %+v, want all skipped", report)
	}
	if db.Mutations() != before {
		t.Errorf("second pass mutated the cache: %d -> %d", before, db.Mutations())
	}
}

func TestScanAll_DetectsChange(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "- [ ] original\n")
	sc := testScanner(t, db, dir)
	if _, err := sc.ScanAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "a.md", "- [ ] edited\n")
	report, err := sc.ScanAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 1 {
		t.Errorf("report = %+v, want 1 reindexed", report)
	}
	todos, _ := db.QueryTodos(TodoFilter{})
	if len(todos) != 1 || todos[0].Content != "edited" {
		t.Errorf("todos = %+v", todos)
	}
}

func TestScanAll_RemovesStaleRows(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "gone.md", "- [ ] vanishing\n")
	sc := testScanner(t, db, dir)
	if _, err := sc.ScanAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	os.Remove(filepath.Join(dir, "gone.md"))
	report, err := sc.ScanAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 {
		t.Errorf("report = %+v, want 1 removed", report)
	}
	if _, err := db.GetNote("gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("stale note row should be gone")
	}
	todos, _ := db.QueryTodos(TodoFilter{})
	if len(todos) != 0 {
		t.Errorf("stale todos remain: %+v", todos)
	}
}

func TestScanAll_ParseErrorDoesNotAbort(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "bad.md", "---\n: broken: yaml: {{{\n---\nx\n")
	writeFile(t, dir, "good.md", "- [ ] fine\n")

	report, err := testScanner(t, db, dir).ScanAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Path != "bad.md" {
		t.Fatalf("failed = %+v, want bad.md", report.Failed)
	}
	if !errors.Is(report.Failed[0].Err, apperr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", report.Failed[0].Err)
	}
	if report.Indexed != 1 {
		t.Errorf("good file should still be indexed, report = %+v", report)
	}
}

func TestScanNote_Incremental(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "- [ ] first\n")
	sc := testScanner(t, db, dir)

	indexed, err := sc.ScanNote(context.Background(), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Error("first pass over a new note should report indexed")
	}
	todos, _ := db.QueryTodos(TodoFilter{})
	if len(todos) != 1 || todos[0].Content != "first" {
		t.Fatalf("todos = %+v", todos)
	}

	// Unchanged file: no cache writes, reported as not indexed.
	before := db.Mutations()
	indexed, err = sc.ScanNote(context.Background(), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if indexed {
		t.Error("unchanged note should not report indexed")
	}
	if db.Mutations() != before {
		t.Error("unchanged note should not mutate the cache")
	}

	// Missing file: rows removed and not-found surfaced.
	os.Remove(filepath.Join(dir, "a.md"))
	if _, err := sc.ScanNote(context.Background(), "a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetNote("a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("cache rows should be removed for the missing note")
	}
}

func TestScanner_SourceClassification(t *testing.T) {
	db := testDB(t)
	root := t.TempDir()
	linked := t.TempDir()
	writeFile(t, root, "inbox.md", "- [ ] inbox task\n")
	writeFile(t, linked, "ext.md", "- [ ] linked task\n")

	store, err := storage.NewFS(root, map[string]string{"shared": linked}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc := NewScanner(db, store, extract.CheckboxDialect{}, []string{"shared"}, logger)

	if _, err := sc.ScanAll(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	todos, err := db.QueryTodos(TodoFilter{Sort: "line"})
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 2 {
		t.Fatalf("todos = %d, want 2", len(todos))
	}
	byPath := make(map[string]models.Todo, len(todos))
	for _, td := range todos {
		byPath[td.Source.Path] = td
	}
	if got := byPath["inbox.md"].Source.Type; got != models.SourceInbox {
		t.Errorf("inbox source = %s, want inbox", got)
	}
	ext := byPath["shared/ext.md"]
	if ext.Source.Type != models.SourceLinkedFile || ext.Source.Alias != "shared" {
		t.Errorf("linked source = %+v", ext.Source)
	}
}
