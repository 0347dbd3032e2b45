package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/identity"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
)

var (
	dueTokenRe      = regexp.MustCompile(`@due:(\d{4}-\d{2}-\d{2})(?:T(\d{2}:\d{2}))?`)
	priorityTokenRe = regexp.MustCompile(`@priority:([1-9])`)
	inlineTagRe     = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_-]*)`)
	urlSchemeRe     = regexp.MustCompile(`^(?i)(https?|ftp|file)://`)
)

// Entities walks the raw note content line by line and returns the todos
// and attachments it declares. Line numbers are 1-based positions in the
// raw file, so they stay valid for line-targeted mutations.
//
// Nesting follows a strict indentation stack: a todo's parent is the
// nearest preceding todo with strictly shallower indent. An @attach: line
// belongs to the innermost open todo shallower than it, or to the note.
func Entities(d Dialect, raw string, source models.TodoSource, now time.Time) ([]models.Todo, []models.Attachment) {
	var todos []models.Todo
	var attachments []models.Attachment

	// Stack of indices into todos, innermost last.
	var stack []int

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lineNo := i + 1

		if tm, ok := d.MatchTodo(line); ok {
			for len(stack) > 0 && todos[stack[len(stack)-1]].Indent >= tm.Indent {
				stack = stack[:len(stack)-1]
			}
			todo := buildTodo(tm, line, lineNo, source, now)
			if len(stack) > 0 {
				todo.ParentID = todos[stack[len(stack)-1]].ID
			}
			todos = append(todos, todo)
			stack = append(stack, len(todos)-1)
			continue
		}

		if am, ok := d.MatchAttachment(line); ok {
			ownerType, ownerID := models.OwnerNote, source.Path
			for j := len(stack) - 1; j >= 0; j-- {
				if todos[stack[j]].Indent < am.Indent {
					ownerType, ownerID = models.OwnerTodo, todos[stack[j]].ID
					break
				}
			}
			attachments = append(attachments, buildAttachment(am, ownerType, ownerID, now))
		}
	}

	return todos, attachments
}

// buildTodo parses the structured suffix tokens out of a matched checkbox
// line. Content keeps the tokens: it is the snapshot that mutations compare
// against the file, so it must equal the line minus indent and marker.
func buildTodo(tm TodoMatch, rawLine string, lineNo int, source models.TodoSource, now time.Time) models.Todo {
	todo := models.Todo{
		Content:     tm.Text,
		RawContent:  rawLine,
		Status:      statusFor(tm.Marker),
		CreatedDate: now,
		LineNumber:  lineNo,
		Indent:      tm.Indent,
		Source:      source,
	}
	todo.ID = identity.TodoID(source.Path, todo.Content)

	if m := dueTokenRe.FindStringSubmatch(tm.Text); m != nil {
		layout, value := "2006-01-02", m[1]
		if m[2] != "" {
			layout, value = "2006-01-02T15:04", m[1]+"T"+m[2]
			todo.DueHasTime = true
		}
		if t, err := time.Parse(layout, value); err == nil {
			todo.DueDate = &t
		}
	}

	if m := priorityTokenRe.FindStringSubmatch(tm.Text); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			todo.Priority = &p
		}
	}

	todo.Tags = InlineTags(tm.Text)

	return todo
}

// InlineTags returns the deduplicated, sorted, lowercased #tags in a todo's
// text, filtered by the same hex-color rule the note parser applies.
func InlineTags(text string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, m := range inlineTagRe.FindAllStringSubmatch(text, -1) {
		if parser.IsHexColor(m[1]) {
			continue
		}
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

func buildAttachment(am AttachmentMatch, ownerType models.OwnerType, ownerID string, now time.Time) models.Attachment {
	typ := models.AttachmentFile
	if urlSchemeRe.MatchString(am.Target) {
		typ = models.AttachmentURL
	}
	return models.Attachment{
		ID:        identity.AttachmentID(am.Target, string(ownerType), ownerID),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Type:      typ,
		Path:      am.Target,
		Title:     am.Title,
		AddedDate: now,
	}
}

func statusFor(marker string) models.TodoStatus {
	switch marker {
	case "^":
		return models.StatusInProgress
	case "x":
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}
