package mutate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

func testEditor(t *testing.T, cascade bool) (*Editor, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewEditor(store, extract.CheckboxDialect{}, cascade), dir
}

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestToggle_PendingToCompleted(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "# Head\n- [ ] Buy milk\n")

	res, err := e.Toggle("a.md", 2, "Buy milk")
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if res.Line != 2 || res.Status != models.StatusCompleted {
		t.Errorf("result = %+v", res)
	}
	if got := read(t, dir, "a.md"); got != "# Head\n- [x] Buy milk\n" {
		t.Errorf("file = %q", got)
	}
}

func TestToggle_CompletedBackToPending(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [x] Done thing\n")

	res, err := e.Toggle("a.md", 1, "Done thing")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", res.Status)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] Done thing\n" {
		t.Errorf("file = %q", got)
	}
}

func TestToggle_RecoversMovedLine(t *testing.T) {
	e, dir := testEditor(t, false)
	// The todo was loaded at line 1, then two lines were inserted above it.
	write(t, dir, "a.md", "intro\nmore\n- [ ] Buy milk\n")

	res, err := e.Toggle("a.md", 1, "Buy milk")
	if err != nil {
		t.Fatalf("Toggle should recover the moved line: %v", err)
	}
	if res.Line != 3 {
		t.Errorf("actual line = %d, want 3", res.Line)
	}
}

func TestToggle_ConflictLeavesFileUntouched(t *testing.T) {
	e, dir := testEditor(t, false)
	original := "- [ ] Buy bread\n"
	write(t, dir, "a.md", original)

	_, err := e.Toggle("a.md", 1, "Buy milk")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if got := read(t, dir, "a.md"); got != original {
		t.Errorf("file was modified on conflict: %q", got)
	}
}

func TestToggle_BadLineNumber(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] x\n")
	if _, err := e.Toggle("a.md", 0, "x"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetStatus_InProgress(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] working on it\n")

	res, err := e.SetStatus("a.md", 1, "working on it", models.StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusInProgress {
		t.Errorf("status = %s", res.Status)
	}
	if got := read(t, dir, "a.md"); got != "- [^] working on it\n" {
		t.Errorf("file = %q", got)
	}
}

func TestSetDueDate_InsertAndReplace(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] Ship release\n")
	due := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	res, err := e.SetDueDate("a.md", 1, "Ship release", &due, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] Ship release @due:2025-12-01\n" {
		t.Errorf("file = %q", got)
	}
	if res.Content != "Ship release @due:2025-12-01" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Raw != "- [ ] Ship release @due:2025-12-01" {
		t.Errorf("raw = %q", res.Raw)
	}

	// Rescheduling replaces the annotation in place.
	later := due.AddDate(0, 0, 14)
	if _, err := e.SetDueDate("a.md", 1, res.Content, &later, false); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] Ship release @due:2025-12-15\n" {
		t.Errorf("file = %q", got)
	}
}

func TestSetDueDate_Clear(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] Task @due:2025-12-01\n")

	if _, err := e.SetDueDate("a.md", 1, "Task @due:2025-12-01", nil, false); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] Task\n" {
		t.Errorf("file = %q", got)
	}
}

func TestDelete_RemovesOnlyTargetLine(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] keep\n- [ ] drop\n- [ ] also keep\n")

	if _, err := e.Delete("a.md", 2, "drop"); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] keep\n- [ ] also keep\n" {
		t.Errorf("file = %q", got)
	}
}

func TestCascade_CompletesChildren(t *testing.T) {
	e, dir := testEditor(t, true)
	write(t, dir, "a.md", "- [ ] parent\n  - [ ] child one\n    note under child\n  - [x] already done\n- [ ] neighbor\n")

	res, err := e.Toggle("a.md", 1, "parent")
	if err != nil {
		t.Fatal(err)
	}
	if res.ChildrenCompleted != 1 {
		t.Errorf("children completed = %d, want 1 (already-done child not counted)", res.ChildrenCompleted)
	}
	want := "- [x] parent\n  - [x] child one\n    note under child\n  - [x] already done\n- [ ] neighbor\n"
	if got := read(t, dir, "a.md"); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestCascade_StopsAtSibling(t *testing.T) {
	e, dir := testEditor(t, true)
	write(t, dir, "a.md", "- [ ] first\n  - [ ] first child\n- [ ] second\n  - [ ] second child\n")

	if _, err := e.Toggle("a.md", 1, "first"); err != nil {
		t.Fatal(err)
	}
	want := "- [x] first\n  - [x] first child\n- [ ] second\n  - [ ] second child\n"
	if got := read(t, dir, "a.md"); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestCascade_DisabledLeavesChildren(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] parent\n  - [ ] child\n")

	if _, err := e.Toggle("a.md", 1, "parent"); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [x] parent\n  - [ ] child\n" {
		t.Errorf("file = %q", got)
	}
}

func TestInsertBelow(t *testing.T) {
	e, dir := testEditor(t, false)
	write(t, dir, "a.md", "- [ ] task\ntrailing\n")

	if _, err := e.InsertBelow("a.md", 1, "task", "  @attach: f.pdf"); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dir, "a.md"); got != "- [ ] task\n  @attach: f.pdf\ntrailing\n" {
		t.Errorf("file = %q", got)
	}
}
