package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RichardoC/padchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "padchat.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background()))
	t.Cleanup(func() { database.Close() })
	return database
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	conv, err := database.CreateConversation(ctx, "user-1", models.DefaultTitle)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)

	convs, err := database.GetConversations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, conv.ID, convs[0].ID)
	assert.Equal(t, models.DefaultTitle, convs[0].Title)
	assert.True(t, conv.CreatedAt.Equal(convs[0].CreatedAt))

	others, err := database.GetConversations(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestConversationsOrderedByActivity(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	first, err := database.CreateConversation(ctx, "u", "first")
	require.NoError(t, err)
	second, err := database.CreateConversation(ctx, "u", "second")
	require.NoError(t, err)

	convs, err := database.GetConversations(ctx, "u")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)

	require.NoError(t, database.TouchConversation(ctx, first.ID))

	convs, err = database.GetConversations(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
}

func TestMessagesChronological(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	conv, err := database.CreateConversation(ctx, "u", "t")
	require.NoError(t, err)

	var ids []string
	for _, content := range []string{"A", "B", "C"} {
		msg := &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: content}
		require.NoError(t, database.SaveMessage(ctx, msg))
		ids = append(ids, msg.ID)
	}

	history, err := database.GetConversationHistory(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, msg := range history {
		assert.Equal(t, ids[i], msg.ID)
	}
	assert.Equal(t, "A", history[0].Content)
	assert.Equal(t, "C", history[2].Content)
}

func TestDeleteCascadesToMessages(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	conv, err := database.CreateConversation(ctx, "u", "t")
	require.NoError(t, err)
	require.NoError(t, database.SaveMessage(ctx, &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: "hi"}))

	require.NoError(t, database.DeleteConversation(ctx, conv.ID))

	_, err = database.ConversationOwner(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, database.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conv.ID).Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, database.DeleteConversation(ctx, conv.ID), ErrNotFound)
}

func TestMessageRequiresConversation(t *testing.T) {
	database := newTestDB(t)
	err := database.SaveMessage(context.Background(), &models.Message{ConversationID: "missing", Role: models.RoleUser, Content: "x"})
	assert.Error(t, err)
}

func TestConversationOwnerAndTitle(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	conv, err := database.CreateConversation(ctx, "owner", "old")
	require.NoError(t, err)

	owner, err := database.ConversationOwner(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)

	updated, err := database.UpdateConversationTitle(ctx, conv.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "owner", updated.UserID)
	assert.False(t, updated.UpdatedAt.Before(conv.UpdatedAt))

	_, err = database.UpdateConversationTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, database.TouchConversation(ctx, "missing"), ErrNotFound)
}

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t, "postgresql://u:p@h/db", normalizeDSN(" postgresql+asyncpg://u:p@h/db "))
	assert.Equal(t, "postgres://u@h/db", normalizeDSN("postgres+pgx://u@h/db"))
	assert.Equal(t, "postgres://u@h/db", normalizeDSN("postgres://u@h/db"))
}
