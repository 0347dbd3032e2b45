package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var filenameDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// dateLayouts are tried in order for literal frontmatter date values.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

// fuzzy is the shared natural-language date parser ("next friday",
// "tomorrow"). Construction is cheap enough to do once at package init.
var fuzzy = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// deriveDate resolves a note's date: frontmatter "date" field first (literal
// layout or fuzzy expression, evaluated relative to ref), then a YYYY-MM-DD
// pattern in the filename, else nil.
func deriveDate(fm map[string]any, path string, ref time.Time) *time.Time {
	if fm != nil {
		switch v := fm["date"].(type) {
		case string:
			if t, ok := ParseDateValue(v, ref); ok {
				return &t
			}
		case time.Time:
			return &v
		}
	}
	if m := filenameDateRe.FindString(path); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return &t
		}
	}
	return nil
}

// ParseDateValue parses a date string, trying literal layouts before
// natural-language expressions. Exposed for due-date arguments from the CLI.
func ParseDateValue(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if r, err := fuzzy.Parse(s, ref); err == nil && r != nil {
		return r.Time, true
	}
	return time.Time{}, false
}
