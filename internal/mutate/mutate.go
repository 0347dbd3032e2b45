// Package mutate performs verified, line-targeted edits to todo lines in
// note files under optimistic concurrency.
//
// Every operation takes the source path, the last-known line number, and an
// expected content snapshot captured when the todo was loaded. The recorded
// line is a hint: the operation re-verifies it against the current file and
// falls back to searching for the expected content. When the content is not
// found anywhere the edit is refused with apperr.ErrConflict and the file
// is left untouched. No locks are taken; this detects conflicts, it does
// not resolve them.
package mutate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
)

var (
	markerRe   = regexp.MustCompile(`^([ \t]*- \[)( |\^|[xX])(\].*)$`)
	dueTokenRe = regexp.MustCompile(`\s*@due:\S+`)
)

// Editor applies mutations through the storage provider, which writes
// atomically. It is the only component that writes to note files.
type Editor struct {
	store                storage.Provider
	dialect              extract.Dialect
	autoCompleteChildren bool
}

// NewEditor builds an Editor. When autoCompleteChildren is set, completing
// a parent todo also completes its nested children in the same file write.
func NewEditor(store storage.Provider, dialect extract.Dialect, autoCompleteChildren bool) *Editor {
	return &Editor{store: store, dialect: dialect, autoCompleteChildren: autoCompleteChildren}
}

// Result reports what a mutation actually did.
type Result struct {
	Line              int               // line the edit was applied to
	Status            models.TodoStatus // status after the edit, if changed
	Content           string            // cleaned content after the edit
	Raw               string            // full line after the edit
	ChildrenCompleted int               // todos completed by the cascade
}

// Toggle flips a todo's checkbox: pending and in-progress become completed,
// completed becomes pending. Returns the actual line used so the caller can
// patch its in-memory view and the cache without a rescan.
func (e *Editor) Toggle(path string, line int, expected string) (*Result, error) {
	var res *Result
	err := e.edit(path, line, expected, func(lines []string, at int, tm extract.TodoMatch) ([]string, error) {
		status := models.StatusCompleted
		if tm.Marker == "x" {
			status = models.StatusPending
		}
		return e.applyStatus(lines, at, tm, status, &res)
	})
	return res, err
}

// SetStatus writes a specific status marker on the target line.
func (e *Editor) SetStatus(path string, line int, expected string, status models.TodoStatus) (*Result, error) {
	switch status {
	case models.StatusPending, models.StatusInProgress, models.StatusCompleted:
	default:
		return nil, fmt.Errorf("mutate: status %q: %w", status, apperr.ErrInvalidArgument)
	}
	var res *Result
	err := e.edit(path, line, expected, func(lines []string, at int, tm extract.TodoMatch) ([]string, error) {
		return e.applyStatus(lines, at, tm, status, &res)
	})
	return res, err
}

// SetDueDate rewrites or inserts the @due: annotation on the target line.
// A nil due removes the annotation.
func (e *Editor) SetDueDate(path string, line int, expected string, due *time.Time, hasTime bool) (*Result, error) {
	var res *Result
	err := e.edit(path, line, expected, func(lines []string, at int, tm extract.TodoMatch) ([]string, error) {
		edited := dueTokenRe.ReplaceAllString(lines[at], "")
		if due != nil {
			token := " @due:" + due.Format("2006-01-02")
			if hasTime {
				token = " @due:" + due.Format("2006-01-02T15:04")
			}
			edited = strings.TrimRight(edited, " \t") + token
		}
		lines[at] = edited
		nm, _ := e.dialect.MatchTodo(edited)
		res = &Result{Line: at + 1, Status: statusOf(nm.Marker), Content: nm.Text, Raw: edited}
		return lines, nil
	})
	return res, err
}

// Delete removes the target todo line from the file.
func (e *Editor) Delete(path string, line int, expected string) (*Result, error) {
	var res *Result
	err := e.edit(path, line, expected, func(lines []string, at int, _ extract.TodoMatch) ([]string, error) {
		res = &Result{Line: at + 1}
		return append(lines[:at], lines[at+1:]...), nil
	})
	return res, err
}

// InsertBelow inserts newLine directly after the verified target line.
// Used by attachment actions to add @attach: lines under a todo.
func (e *Editor) InsertBelow(path string, line int, expected, newLine string) (*Result, error) {
	var res *Result
	err := e.edit(path, line, expected, func(lines []string, at int, _ extract.TodoMatch) ([]string, error) {
		lines = append(lines[:at+1], append([]string{newLine}, lines[at+1:]...)...)
		res = &Result{Line: at + 1}
		return lines, nil
	})
	return res, err
}

// edit is the shared verify-then-rewrite core. apply receives the file
// lines and the verified zero-based index and returns the new lines.
func (e *Editor) edit(path string, line int, expected string, apply func([]string, int, extract.TodoMatch) ([]string, error)) error {
	if line < 1 {
		return fmt.Errorf("mutate: line %d: %w", line, apperr.ErrInvalidArgument)
	}
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return fmt.Errorf("mutate: empty expected content: %w", apperr.ErrInvalidArgument)
	}

	data, err := e.store.Read(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")

	at, tm, err := e.locate(lines, line, expected)
	if err != nil {
		return fmt.Errorf("mutate: %s line %d: %w", path, line, err)
	}

	lines, err = apply(lines, at, tm)
	if err != nil {
		return err
	}
	return e.store.Write(path, []byte(strings.Join(lines, "\n")))
}

// locate verifies the hinted line and falls back to scanning the whole file
// for the expected content, preferring the match closest to the hint.
func (e *Editor) locate(lines []string, hint int, expected string) (int, extract.TodoMatch, error) {
	if hint <= len(lines) {
		if tm, ok := e.dialect.MatchTodo(lines[hint-1]); ok && tm.Text == expected {
			return hint - 1, tm, nil
		}
	}

	best := -1
	var bestMatch extract.TodoMatch
	for i, l := range lines {
		tm, ok := e.dialect.MatchTodo(l)
		if !ok || tm.Text != expected {
			continue
		}
		if best < 0 || abs(i-(hint-1)) < abs(best-(hint-1)) {
			best, bestMatch = i, tm
		}
	}
	if best < 0 {
		return 0, extract.TodoMatch{}, apperr.ErrConflict
	}
	return best, bestMatch, nil
}

// applyStatus rewrites the marker on the verified line and, when enabled
// and the new status is completed, cascades to the contiguous run of
// deeper-indented child todos.
func (e *Editor) applyStatus(lines []string, at int, tm extract.TodoMatch, status models.TodoStatus, out **Result) ([]string, error) {
	lines[at] = setMarker(lines[at], status)
	res := &Result{Line: at + 1, Status: status, Content: tm.Text, Raw: lines[at]}

	if status == models.StatusCompleted && e.autoCompleteChildren {
		// Strict indentation rule: the run of children ends at the first
		// blank line or any line indented at or above the parent. Once a
		// sibling appears, later deeper lines are the sibling's, not ours.
		for i := at + 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "" {
				break
			}
			child, ok := e.dialect.MatchTodo(lines[i])
			if ok && child.Indent <= tm.Indent {
				break
			}
			if !ok {
				if indentOf(lines[i]) <= tm.Indent {
					break
				}
				continue
			}
			if child.Marker != "x" {
				lines[i] = setMarker(lines[i], models.StatusCompleted)
				res.ChildrenCompleted++
			}
		}
	}

	*out = res
	return lines, nil
}

func setMarker(line string, status models.TodoStatus) string {
	return markerRe.ReplaceAllString(line, "${1}"+status.Marker()+"${3}")
}

func statusOf(marker string) models.TodoStatus {
	switch marker {
	case "^":
		return models.StatusInProgress
	case "x":
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func indentOf(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}
