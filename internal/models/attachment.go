package models

import "time"

// AttachmentType classifies an attachment reference.
type AttachmentType string

// Attachment kinds.
const (
	AttachmentFile AttachmentType = "file"
	AttachmentURL  AttachmentType = "url"
)

// OwnerType identifies what kind of entity owns an attachment.
type OwnerType string

// Attachment owner kinds.
const (
	OwnerNote OwnerType = "note"
	OwnerTodo OwnerType = "todo"
)

// Attachment is a file or URL reference declared on an @attach: line, owned
// by a note or a todo. ID is derived from (path, owner type, owner id) so
// the same file attached to two owners yields two rows.
type Attachment struct {
	ID        string         `json:"id"`
	OwnerType OwnerType      `json:"owner_type"`
	OwnerID   string         `json:"owner_id"`
	Type      AttachmentType `json:"type"`
	Path      string         `json:"path"`
	Title     string         `json:"title,omitempty"`
	AddedDate time.Time      `json:"added_date"`
	Copied    bool           `json:"copied"`
}
