package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/padchat/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS conversations_user_updated
    ON conversations (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS messages_conversation_created
    ON messages (conversation_id, created_at);`

type Database struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*Database)(nil)

// New opens the SQLite database at dbPath. Foreign keys are switched on so
// deleting a conversation cascades to its messages.
func New(dbPath string, logger *zap.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// single writer; also keeps the foreign_keys pragma on the one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.Debug("sqlite database opened", zap.String("dbPath", dbPath))
	return &Database{db: db, logger: logger}, nil
}

func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = now()

	query := `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt)
	return err
}

func (db *Database) CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
	ts := now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	query := `
        INSERT INTO conversations (id, user_id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := db.db.ExecContext(ctx, query, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return nil, err
	}
	return conv, nil
}

func (db *Database) ConversationOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := db.db.QueryRowContext(ctx, "SELECT user_id FROM conversations WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// GetConversationHistory returns the messages of a conversation oldest first.
// rowid breaks ties between messages written within the same microsecond.
func (db *Database) GetConversationHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, rowid ASC`

	rows, err := db.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) GetConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `
        SELECT id, user_id, title, created_at, updated_at
        FROM conversations
        WHERE user_id = ?
        ORDER BY updated_at DESC, rowid DESC`

	rows, err := db.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// DeleteConversation removes the conversation row. Its messages go with it
// through ON DELETE CASCADE.
func (db *Database) DeleteConversation(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (db *Database) UpdateConversationTitle(ctx context.Context, id, title string) (*models.Conversation, error) {
	res, err := db.db.ExecContext(ctx, "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?", title, now(), id)
	if err != nil {
		return nil, err
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return db.getConversation(ctx, id)
}

func (db *Database) getConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
        SELECT id, user_id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`

	var conv models.Conversation
	err := db.db.QueryRowContext(ctx, query, id).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (db *Database) TouchConversation(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", now(), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
