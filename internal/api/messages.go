package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/models"
)

type CreateMessageRequest struct {
	ConversationID string      `json:"conversation_id"`
	Role           models.Role `json:"role"`
	Content        string      `json:"content"`
}

type messageResponse struct {
	Message *models.Message `json:"message"`
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

func (h *Handler) RegisterMessages(r *mux.Router) {
	r.HandleFunc("/api/messages", h.CreateMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/messages", h.ListMessages).Methods(http.MethodGet)
}

// CreateMessage stores one message and then bumps the conversation's
// updated_at. The bump is a separate statement; its failure is only logged.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req CreateMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ConversationID == "" || req.Role == "" || req.Content == "" {
		h.writeError(w, r, BadRequest("conversation_id, role and content are required"))
		return
	}
	if !req.Role.Valid() {
		h.writeError(w, r, BadRequest("role must be user or assistant"))
		return
	}
	if err := h.authorize(r.Context(), user, req.ConversationID); err != nil {
		h.writeError(w, r, err)
		return
	}

	msg := &models.Message{
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Content:        req.Content,
	}
	if err := h.store.SaveMessage(r.Context(), msg); err != nil {
		h.writeError(w, r, Internal(err))
		return
	}

	if err := h.store.TouchConversation(r.Context(), req.ConversationID); err != nil {
		h.logger.Warn("failed to update conversation timestamp",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err))
	}

	h.respond(w, r, http.StatusOK, messageResponse{Message: msg})
}

// ListMessages returns a conversation's messages in the order they were
// created.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		h.writeError(w, r, BadRequest("conversation_id required"))
		return
	}
	if err := h.authorize(r.Context(), user, conversationID); err != nil {
		h.writeError(w, r, err)
		return
	}

	messages, err := h.store.GetConversationHistory(r.Context(), conversationID)
	if err != nil {
		h.writeError(w, r, Internal(err))
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	h.respond(w, r, http.StatusOK, messagesResponse{Messages: messages})
}
