// Package parser extracts frontmatter, title, date, tags, and links from
// Markdown note content.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

var (
	tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_-]*)`)
	hexRe = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Date        *time.Time
	Tags        []string
	Links       []models.Link
	Excluded    bool
}

// Parse extracts structure from raw Markdown bytes. The path is used for
// the title and date fallbacks (filename stem, YYYY-MM-DD in filename).
// Malformed frontmatter YAML is a parse error; a broken note must be
// visible to the user, not silently treated as body.
func Parse(data []byte, path string) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body, path),
		Date:        deriveDate(fm, path, time.Now()),
		Tags:        extractTags(body, fm),
		Links:       extractLinks(body),
		Excluded:    boolField(fm, "note_exclude"),
	}
	return r, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the Markdown body. If no frontmatter is present the
// entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("parser: frontmatter yaml: %v: %w", err, apperr.ErrParse)
	}

	return fm, body, nil
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise the filename stem.
func deriveTitle(fm map[string]any, body, path string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// extractTags collects tags from the frontmatter "tags" field (list or
// comma-separated string, preserved as written) and inline #tags from the
// body (case-folded to lowercase). Hex-color-like tokens such as #fff are
// skipped. The result is deduplicated and sorted.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" {
			seen[t] = struct{}{}
		}
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if IsHexColor(t) {
			continue
		}
		add(strings.ToLower(t))
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsHexColor reports whether a tag token is a 3- or 6-digit hex run, which
// is almost always a CSS color, not a tag. Shared with the todo extractor so
// inline tags are filtered identically everywhere.
func IsHexColor(t string) bool {
	return (len(t) == 3 || len(t) == 6) && hexRe.MatchString(t)
}

func boolField(fm map[string]any, key string) bool {
	if fm == nil {
		return false
	}
	b, _ := fm[key].(bool)
	return b
}
