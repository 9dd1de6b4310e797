package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/auth"
	"github.com/RichardoC/padchat/internal/db"
	"github.com/RichardoC/padchat/internal/llm"
	"github.com/RichardoC/padchat/internal/models"
)

// Sessions resolves and manages the cookie-carried session. It is
// implemented by *auth.SessionStore.
type Sessions interface {
	Active(ctx context.Context, cookies auth.CookieStore) bool
	User(ctx context.Context, cookies auth.CookieStore) (*models.User, error)
	SignIn(ctx context.Context, cookies auth.CookieStore, email, password string) (*models.User, error)
	SignUp(ctx context.Context, cookies auth.CookieStore, email, password string) (*models.User, error)
	SignOut(ctx context.Context, cookies auth.CookieStore) error
}

var _ Sessions = (*auth.SessionStore)(nil)

type Handler struct {
	store    db.Store
	sessions Sessions
	llm      *llm.Service
	metrics  *Metrics
	logger   *zap.Logger
}

func NewHandler(store db.Store, sessions Sessions, llmService *llm.Service, metrics *Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		sessions: sessions,
		llm:      llmService,
		metrics:  metrics,
		logger:   logger,
	}
}

// currentUser resolves the requesting user. A session refreshed on the way
// is written back to the response so the rotated refresh token is not lost.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	user, err := h.sessions.User(r.Context(), auth.NewResponseCookies(w, r))
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			h.logger.Warn("failed to resolve user",
				zap.String("request_id", RequestID(r.Context())),
				zap.Error(err))
		}
		return nil, Unauthenticated()
	}
	return user, nil
}

// authorize fails closed unless user owns the conversation. A malformed id,
// a missing row and another user's row are reported the same way.
func (h *Handler) authorize(ctx context.Context, user *models.User, conversationID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return Unauthorized()
	}
	owner, err := h.store.ConversationOwner(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("failed to look up conversation owner",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
		return Unauthorized()
	}
	if owner != user.ID {
		return Unauthorized()
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
	}
}
