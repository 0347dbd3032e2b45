// Package models defines the domain types for Dagaz.
package models

import "time"

// Note represents a parsed Markdown file in the vault.
//
// Path is the identity surrogate for lookups; ContentHash is the identity
// used for change detection and changes iff the file bytes change.
type Note struct {
	Path        string         `json:"path"`
	Title       string         `json:"title,omitempty"`
	Date        *time.Time     `json:"date,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Links       []Link         `json:"links,omitempty"`
	Notebook    string         `json:"notebook"`
	ContentHash string         `json:"content_hash"`
	Excluded    bool           `json:"excluded,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"-"`
}

// Link represents an outgoing reference from a note.
type Link struct {
	Target   string `json:"target"`
	Label    string `json:"label"`
	External bool   `json:"external"`
}
