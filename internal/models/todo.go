package models

import "time"

// TodoStatus is the state of a checkbox line.
type TodoStatus string

// Recognized checkbox states.
const (
	StatusPending    TodoStatus = "pending"     // - [ ]
	StatusInProgress TodoStatus = "in_progress" // - [^]
	StatusCompleted  TodoStatus = "completed"   // - [x]
)

// Marker returns the checkbox marker character for the status.
func (s TodoStatus) Marker() string {
	switch s {
	case StatusInProgress:
		return "^"
	case StatusCompleted:
		return "x"
	default:
		return " "
	}
}

// SourceType classifies where a todo line lives.
type SourceType string

// Todo source kinds.
const (
	SourceNote       SourceType = "note"
	SourceInbox      SourceType = "inbox"
	SourceLinkedFile SourceType = "linked-file"
)

// TodoSource identifies the file a todo was extracted from.
type TodoSource struct {
	Type  SourceType `json:"type"`
	Path  string     `json:"path"`
	Alias string     `json:"alias,omitempty"` // for linked files
}

// Todo is one checkbox line inside a note or an external file.
//
// ID is derived from (source path, cleaned content): stable across
// indentation and marker changes, changed by any edit to the visible text.
// LineNumber is a hint, never authoritative; mutations re-verify Content
// against the file before writing.
type Todo struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	RawContent  string     `json:"raw_content"`
	Status      TodoStatus `json:"status"`
	Priority    *int       `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	DueHasTime  bool       `json:"due_has_time,omitempty"`
	CreatedDate time.Time  `json:"created_date"`
	Tags        []string   `json:"tags,omitempty"`
	LineNumber  int        `json:"line_number"`
	Indent      int        `json:"indent"`
	Source      TodoSource `json:"source"`
	ParentID    string     `json:"parent_id,omitempty"`
}

// Completed reports whether the todo is done.
func (t *Todo) Completed() bool { return t.Status == StatusCompleted }

// Overdue reports whether the todo's due date is strictly before the given
// day (time-of-day is ignored) and the todo is not completed.
func (t *Todo) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed() {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return t.DueDate.Before(today)
}
