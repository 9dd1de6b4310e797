package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RichardoC/padchat/internal/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the relational store holding conversations and their messages.
// Implementations must be safe for concurrent use.
type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	GetConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error)
	ConversationOwner(ctx context.Context, id string) (string, error)
	UpdateConversationTitle(ctx context.Context, id, title string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	TouchConversation(ctx context.Context, id string) error

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetConversationHistory(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Open picks a backend from the database URL. postgres:// and postgresql://
// URLs, including driver-suffixed forms such as postgresql+asyncpg://, go to
// Postgres; anything else is treated as a SQLite file path.
func Open(ctx context.Context, url string, logger *zap.Logger) (Store, error) {
	if isPostgresURL(url) {
		store, err := NewPostgres(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := New(strings.TrimPrefix(url, "sqlite://"), logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func isPostgresURL(url string) bool {
	s := normalizeDSN(url)
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// now is the clock used for row timestamps. Microsecond precision keeps
// ordering identical between SQLite and Postgres.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
