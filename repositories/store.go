package repositories

import (
	"context"
	"errors"

	"ai-chat/models"
)

// ErrNotFound is returned by lookups that match no record, regardless of backend.
var ErrNotFound = errors.New("record not found")

// ChatStore is implemented by the mongo and sqlite chat repositories.
type ChatStore interface {
	Insert(ctx context.Context, c *models.Chat) error
	List(ctx context.Context) ([]models.Chat, error)
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	UpdateTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// MessageStore is implemented by the mongo and sqlite message repositories.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	// ListByChatID returns messages newest first.
	ListByChatID(ctx context.Context, chatID string) ([]models.Message, error)
	// FirstByChatID returns the oldest message of a chat with the given role.
	FirstByChatID(ctx context.Context, chatID string, role models.Role) (*models.Message, error)
	DeleteByChatID(ctx context.Context, chatID string) error
}
