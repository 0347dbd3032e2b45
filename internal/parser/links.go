package parser

import (
	"regexp"
	"strings"

	"github.com/starford/dagaz/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	// The optional leading ! is captured so image syntax can be skipped;
	// Go regexp has no lookbehind.
	mdLinkRe = regexp.MustCompile(`!?\[([^\]]*)\]\(([^)\s]+)\)`)
)

// externalSchemes mark a markdown link target as external.
var externalSchemes = []string{"http://", "https://", "mailto:", "ftp://", "file://"}

// extractLinks returns all outgoing references in document order:
// wiki-style [[target]] / [[target|label]] (never external) and
// markdown-style [label](target). Image syntax ![..](..) is excluded.
// Duplicate targets are kept once, first occurrence wins.
func extractLinks(body string) []models.Link {
	seen := make(map[string]struct{})
	var out []models.Link

	add := func(l models.Link) {
		if l.Target == "" {
			return
		}
		if _, dup := seen[l.Target]; dup {
			return
		}
		seen[l.Target] = struct{}{}
		out = append(out, l)
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target, label := m[1], m[1]
		if i := strings.Index(m[1], "|"); i >= 0 {
			target = m[1][:i]
			label = m[1][i+1:]
		}
		target = strings.TrimSpace(target)
		label = strings.TrimSpace(label)
		if label == "" {
			label = target
		}
		add(models.Link{Target: target, Label: label})
	}

	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		if strings.HasPrefix(m[0], "!") {
			continue // image
		}
		target := strings.TrimSpace(m[2])
		add(models.Link{Target: target, Label: strings.TrimSpace(m[1]), External: isExternal(target)})
	}

	return out
}

func isExternal(target string) bool {
	lower := strings.ToLower(target)
	for _, s := range externalSchemes {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}

// FrontmatterLinks reads the "links" frontmatter array. Supported entries:
//   - plain strings (note names or URLs)
//   - note://notebook/name references
//   - {title, url} objects (external)
//   - {title, note, notebook} objects (internal)
func FrontmatterLinks(fm map[string]any) []models.Link {
	raw, ok := fm["links"].([]any)
	if !ok {
		return nil
	}

	var out []models.Link
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if after, ok := strings.CutPrefix(v, "note://"); ok {
				out = append(out, models.Link{Target: after, Label: after})
				continue
			}
			out = append(out, models.Link{Target: v, Label: v, External: isExternal(v)})
		case map[string]any:
			title, _ := v["title"].(string)
			if url, ok := v["url"].(string); ok && url != "" {
				if title == "" {
					title = url
				}
				out = append(out, models.Link{Target: url, Label: title, External: true})
				continue
			}
			note, _ := v["note"].(string)
			if note == "" {
				continue
			}
			target := note
			if nb, _ := v["notebook"].(string); nb != "" {
				target = nb + "/" + note
			}
			if title == "" {
				title = note
			}
			out = append(out, models.Link{Target: target, Label: title})
		}
	}
	return out
}
