package index

import (
	"time"

	"github.com/starford/dagaz/internal/models"
)

// Cache defines the interface for cache-store operations. Consumers should
// depend on this interface rather than the concrete *DB type to facilitate
// testing with fakes.
type Cache interface {
	// Notes.
	ReplaceNote(note models.Note, todos []models.Todo, attachments []models.Attachment) error
	DeleteNote(path string) error
	GetNote(path string) (*models.Note, error)
	AllHashes() (map[string]string, error)

	// Todos.
	GetTodo(id string) (*models.Todo, error)
	QueryTodos(f TodoFilter) ([]models.Todo, error)
	UpsertTodo(t models.Todo) error
	UpdateTodoCompletion(id string, completed bool) error
	UpdateTodoStatus(id string, status models.TodoStatus) error
	UpdateTodoDueDate(id string, due *time.Time, hasTime bool) error
	UpdateTodoLine(id string, line int) error
	DeleteTodo(id string) error

	// Attachments.
	UpsertAttachment(a models.Attachment) error
	UpsertAttachments(as []models.Attachment) error
	DeleteAttachment(id string) error
	DeleteAttachmentsForOwner(ownerType models.OwnerType, ownerID string) error
	QueryAttachments(f AttachmentFilter) ([]models.Attachment, error)
	AttachmentStats() (*Stats, error)
	OrphanFiles(present []string) ([]string, error)

	Close() error
}

// Verify *DB satisfies Cache at compile time.
var _ Cache = (*DB)(nil)
