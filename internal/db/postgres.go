package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/padchat/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id UUID PRIMARY KEY,
    seq BIGSERIAL,
    user_id UUID NOT NULL,
    title TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS conversations_user_updated
    ON conversations (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY,
    seq BIGSERIAL,
    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_conversation_created
    ON messages (conversation_id, created_at);`

// Postgres is the Store backed by a managed Postgres database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a pgx pool for dsn and verifies it with a ping.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = 60 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	logger.Info("postgres pool ready",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns))
	return &Postgres{pool: pool, logger: logger}, nil
}

// normalizeDSN strips driver suffixes other ecosystems put in their URLs,
// e.g. postgresql+asyncpg://.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for _, suffix := range []string{"+asyncpg", "+pgx", "+psycopg2"} {
		s = strings.Replace(s, "postgresql"+suffix+"://", "postgresql://", 1)
		s = strings.Replace(s, "postgres"+suffix+"://", "postgres://", 1)
	}
	return s
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) SaveMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = now()

	_, err := p.pool.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES ($1::uuid, $2::uuid, $3, $4, $5)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt)
	return err
}

func (p *Postgres) CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
	ts := now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	_, err := p.pool.Exec(ctx, `
        INSERT INTO conversations (id, user_id, title, created_at, updated_at)
        VALUES ($1::uuid, $2::uuid, $3, $4, $5)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (p *Postgres) ConversationOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := p.pool.QueryRow(ctx, "SELECT user_id::text FROM conversations WHERE id = $1::uuid", id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

func (p *Postgres) GetConversationHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT id::text, conversation_id::text, role, content, created_at
        FROM messages
        WHERE conversation_id = $1::uuid
        ORDER BY created_at ASC, seq ASC`, conversationID)
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
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (p *Postgres) GetConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT id::text, user_id::text, title, created_at, updated_at
        FROM conversations
        WHERE user_id = $1::uuid
        ORDER BY updated_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (p *Postgres) DeleteConversation(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1::uuid", id)
	return expectOneTag(tag, err)
}

func (p *Postgres) UpdateConversationTitle(ctx context.Context, id, title string) (*models.Conversation, error) {
	row := p.pool.QueryRow(ctx, `
        UPDATE conversations SET title = $1, updated_at = $2
        WHERE id = $3::uuid
        RETURNING id::text, user_id::text, title, created_at, updated_at`,
		title, now(), id)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return conv, err
}

func (p *Postgres) TouchConversation(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, "UPDATE conversations SET updated_at = $1 WHERE id = $2::uuid", now(), id)
	return expectOneTag(tag, err)
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return &conv, nil
}

func expectOneTag(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
