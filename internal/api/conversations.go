package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/models"
)

type CreateConversationRequest struct {
	Title string `json:"title"`
	// FirstMessage names the conversation when no title is given.
	FirstMessage string `json:"first_message"`
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

type conversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

type conversationResponse struct {
	Conversation *models.Conversation `json:"conversation"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) RegisterConversations(r *mux.Router) {
	r.HandleFunc("/api/conversations", h.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/api/conversations", h.CreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations", h.DeleteConversation).Methods(http.MethodDelete)
	r.HandleFunc("/api/conversations", h.UpdateConversation).Methods(http.MethodPatch)
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conversations, err := h.store.GetConversations(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, Internal(err))
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	h.logger.Debug("retrieved conversations",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("count", len(conversations)))
	h.respond(w, r, http.StatusOK, conversationsResponse{Conversations: conversations})
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	conversation, err := h.store.CreateConversation(r.Context(), user.ID, models.ResolveTitle(req.Title, req.FirstMessage))
	if err != nil {
		h.writeError(w, r, Internal(err))
		return
	}
	h.respond(w, r, http.StatusOK, conversationResponse{Conversation: conversation})
}

// DeleteConversation removes a conversation; its messages go with it
// through the cascading foreign key.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, r, BadRequest("Conversation ID required"))
		return
	}
	if err := h.authorize(r.Context(), user, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.store.DeleteConversation(r.Context(), id); err != nil {
		h.writeError(w, r, Internal(err))
		return
	}
	h.respond(w, r, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, r, BadRequest("Conversation ID required"))
		return
	}

	var req UpdateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Title == "" {
		h.writeError(w, r, BadRequest("Title required"))
		return
	}
	if err := h.authorize(r.Context(), user, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	conversation, err := h.store.UpdateConversationTitle(r.Context(), id, req.Title)
	if err != nil {
		h.writeError(w, r, Internal(err))
		return
	}
	h.respond(w, r, http.StatusOK, conversationResponse{Conversation: conversation})
}
