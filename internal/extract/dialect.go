// Package extract turns parsed notes into Todo and Attachment records. It
// is pure: no file system or database access.
package extract

import (
	"regexp"
	"strings"
)

// TodoMatch is one recognized checkbox line.
type TodoMatch struct {
	Indent int    // leading whitespace width, tabs count as 4
	Marker string // " ", "^", or "x"
	Text   string // everything after the checkbox, trimmed
}

// AttachmentMatch is one recognized @attach: line.
type AttachmentMatch struct {
	Indent int
	Target string // path or URL
	Title  string // optional quoted title
}

// Dialect abstracts the markdown syntax for todos and attachments so the
// matching rules can be swapped without touching the scanner or the store.
type Dialect interface {
	MatchTodo(line string) (TodoMatch, bool)
	MatchAttachment(line string) (AttachmentMatch, bool)
}

var (
	todoRe   = regexp.MustCompile(`^([ \t]*)- \[( |\^|[xX])\] (.*)$`)
	attachRe = regexp.MustCompile(`^([ \t]*)@attach:\s*(\S+)(?:\s+"([^"]*)")?\s*$`)
)

// CheckboxDialect is the default dialect: `- [ ]` / `- [^]` / `- [x]`
// checkboxes and `@attach: <path-or-url> ["title"]` lines.
type CheckboxDialect struct{}

// MatchTodo implements Dialect.
func (CheckboxDialect) MatchTodo(line string) (TodoMatch, bool) {
	m := todoRe.FindStringSubmatch(line)
	if m == nil {
		return TodoMatch{}, false
	}
	marker := strings.ToLower(m[2])
	return TodoMatch{
		Indent: indentWidth(m[1]),
		Marker: marker,
		Text:   strings.TrimSpace(m[3]),
	}, true
}

// MatchAttachment implements Dialect.
func (CheckboxDialect) MatchAttachment(line string) (AttachmentMatch, bool) {
	m := attachRe.FindStringSubmatch(line)
	if m == nil {
		return AttachmentMatch{}, false
	}
	return AttachmentMatch{
		Indent: indentWidth(m[1]),
		Target: m[2],
		Title:  m[3],
	}, true
}

func indentWidth(ws string) int {
	w := 0
	for _, r := range ws {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}
