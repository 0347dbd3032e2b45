package index

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/identity"
	"github.com/starford/dagaz/internal/models"
)

func seedTodo(t *testing.T, db *DB, path, content string, mod func(*models.Todo)) models.Todo {
	t.Helper()
	todo := testTodo(path, content)
	if mod != nil {
		mod(&todo)
	}
	note := testNote(path)
	if err := db.ReplaceNote(note, []models.Todo{todo}, nil); err != nil {
		t.Fatal(err)
	}
	return todo
}

func TestQueryTodos_DueWindowIncludesToday(t *testing.T) {
	db := testDB(t)
	today := time.Now()
	seedTodo(t, db, "a.md", "due today", func(td *models.Todo) {
		td.DueDate = &today
	})

	completed := false
	got, err := db.QueryTodos(TodoFilter{DueStart: &today, DueEnd: &today, Completed: &completed})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("window query returned %d todos, want 1", len(got))
	}

	overdue, err := db.QueryTodos(TodoFilter{Overdue: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 0 {
		t.Errorf("todo due today must not be overdue, got %d", len(overdue))
	}
}

func TestQueryTodos_Overdue(t *testing.T) {
	db := testDB(t)
	yesterday := time.Now().AddDate(0, 0, -1)
	seedTodo(t, db, "a.md", "late", func(td *models.Todo) {
		td.DueDate = &yesterday
	})
	seedTodo(t, db, "b.md", "late but done", func(td *models.Todo) {
		td.DueDate = &yesterday
		td.Status = models.StatusCompleted
	})

	got, err := db.QueryTodos(TodoFilter{Overdue: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "late" {
		t.Errorf("overdue = %+v, want only the pending late todo", got)
	}
}

func TestQueryTodos_StatusAndTag(t *testing.T) {
	db := testDB(t)
	seedTodo(t, db, "a.md", "tagged #urgent", func(td *models.Todo) {
		td.Tags = []string{"urgent"}
	})
	seedTodo(t, db, "b.md", "other", nil)

	got, err := db.QueryTodos(TodoFilter{Tag: "urgent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Tags[0] != "urgent" {
		t.Errorf("tag query = %+v", got)
	}

	got, err = db.QueryTodos(TodoFilter{Status: models.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("status query returned %d, want 2", len(got))
	}
}

func TestQueryTodos_Notebooks(t *testing.T) {
	db := testDB(t)
	seedTodo(t, db, "work/a.md", "work task", nil)
	seedTodo(t, db, "home/b.md", "home task", nil)

	got, err := db.QueryTodos(TodoFilter{Notebook: "work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "work task" {
		t.Errorf("notebook query = %+v", got)
	}

	got, err = db.QueryTodos(TodoFilter{ExcludeNotebooks: []string{"work"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "home task" {
		t.Errorf("exclude query = %+v", got)
	}
}

func TestQueryTodos_ExcludedNotesHiddenByDefault(t *testing.T) {
	db := testDB(t)
	note := testNote("secret.md")
	note.Excluded = true
	todo := testTodo("secret.md", "hidden task")
	if err := db.ReplaceNote(note, []models.Todo{todo}, nil); err != nil {
		t.Fatal(err)
	}

	got, err := db.QueryTodos(TodoFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("excluded note's todos leaked: %+v", got)
	}

	got, err = db.QueryTodos(TodoFilter{IncludeExcluded: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("IncludeExcluded returned %d, want 1", len(got))
	}
}

func TestQueryTodos_SortByDue(t *testing.T) {
	db := testDB(t)
	later := time.Now().AddDate(0, 0, 5)
	sooner := time.Now().AddDate(0, 0, 1)
	seedTodo(t, db, "a.md", "later", func(td *models.Todo) { td.DueDate = &later })
	seedTodo(t, db, "b.md", "sooner", func(td *models.Todo) { td.DueDate = &sooner })
	seedTodo(t, db, "c.md", "no due", nil)

	got, err := db.QueryTodos(TodoFilter{Sort: "due"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Content != "sooner" || got[1].Content != "later" || got[2].Content != "no due" {
		t.Errorf("due sort order = %v", contents(got))
	}
}

func TestTodoFilter_Invalid(t *testing.T) {
	db := testDB(t)
	if _, err := db.QueryTodos(TodoFilter{Status: "bogus"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bogus status: err = %v, want ErrInvalidArgument", err)
	}
	p := 42
	if _, err := db.QueryTodos(TodoFilter{Priority: &p}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("priority 42: err = %v, want ErrInvalidArgument", err)
	}
	start := time.Now()
	end := start.AddDate(0, 0, -2)
	if _, err := db.QueryTodos(TodoFilter{DueStart: &start, DueEnd: &end}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("inverted window: err = %v, want ErrInvalidArgument", err)
	}
}

func TestUpdateTodoStatus(t *testing.T) {
	db := testDB(t)
	todo := seedTodo(t, db, "a.md", "task", nil)

	if err := db.UpdateTodoStatus(todo.ID, models.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetTodo(todo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}

	if err := db.UpdateTodoStatus("missing", models.StatusPending); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
	if err := db.UpdateTodoStatus(todo.ID, "bogus"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bogus status: err = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteTodo_CascadesAttachments(t *testing.T) {
	db := testDB(t)
	todo := testTodo("a.md", "task")
	attach := models.Attachment{
		ID:        identity.AttachmentID("f.pdf", "todo", todo.ID),
		OwnerType: models.OwnerTodo, OwnerID: todo.ID,
		Type: models.AttachmentFile, Path: "f.pdf", AddedDate: time.Now(),
	}
	if err := db.ReplaceNote(testNote("a.md"), []models.Todo{todo}, []models.Attachment{attach}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteTodo(todo.ID); err != nil {
		t.Fatal(err)
	}
	as, _ := db.QueryAttachments(AttachmentFilter{})
	if len(as) != 0 {
		t.Errorf("todo's attachments should cascade, got %+v", as)
	}
}

func TestUpdateTodoLine(t *testing.T) {
	db := testDB(t)
	todo := seedTodo(t, db, "a.md", "task", nil)

	if err := db.UpdateTodoLine(todo.ID, 7); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetTodo(todo.ID)
	if got.LineNumber != 7 {
		t.Errorf("line = %d, want 7", got.LineNumber)
	}
	if err := db.UpdateTodoLine(todo.ID, 0); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("line 0: err = %v, want ErrInvalidArgument", err)
	}
}

func contents(todos []models.Todo) []string {
	out := make([]string, len(todos))
	for i, td := range todos {
		out[i] = td.Content
	}
	return out
}
