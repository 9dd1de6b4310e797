package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/llm"
	"github.com/RichardoC/padchat/internal/models"
)

// credentialVars names the environment variable holding each provider's key.
var credentialVars = map[string]string{
	llm.ProviderGemini: "GOOGLE_API_KEY",
	llm.ProviderOpenAI: "OPENAI_API_KEY",
}

func notConfiguredMessage(provider string) string {
	name, ok := credentialVars[provider]
	if !ok {
		name = credentialVars[llm.ProviderGemini]
	}
	return "API key not configured. Please set " + name + " in the environment"
}

type ChatRequest struct {
	Message  string     `json:"message"`
	Messages []llm.Turn `json:"messages"`
}

type ChatResponse struct {
	Content string      `json:"content"`
	Role    models.Role `json:"role"`
}

type modelsStatusResponse struct {
	APIKeyConfigured bool            `json:"apiKeyConfigured"`
	APIEnabled       bool            `json:"apiEnabled"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	AvailableModels  []llm.ModelInfo `json:"availableModels"`
	RecommendedModel string          `json:"recommendedModel,omitempty"`
	Error            string          `json:"error,omitempty"`
}

func (h *Handler) RegisterChat(r *mux.Router) {
	r.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)
	r.HandleFunc("/api/test-gemini", h.TestGeneration).Methods(http.MethodGet)
}

// Chat forwards one prompt to the model and relays its answer. Nothing is
// persisted here; the client stores both turns through /api/messages.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.llm.Configured() {
		h.metrics.observeGeneration(outcomeNotConfigured)
		h.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: notConfiguredMessage(h.llm.Provider()), Err: llm.ErrNotConfigured})
		return
	}

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.metrics.observeGeneration(outcomeBadRequest)
		h.writeError(w, r, err)
		return
	}

	prompt, err := llm.BuildPrompt(req.Message, req.Messages)
	if err != nil {
		h.metrics.observeGeneration(outcomeBadRequest)
		h.writeError(w, r, BadRequest("No message provided"))
		return
	}

	content, err := h.llm.Generate(r.Context(), prompt)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			h.metrics.observeGeneration(outcomeNotConfigured)
			h.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: notConfiguredMessage(h.llm.Provider()), Err: err})
			return
		}
		h.metrics.observeGeneration(outcomeError)
		h.writeError(w, r, Generation(err))
		return
	}

	h.metrics.observeGeneration(outcomeOK)
	h.respond(w, r, http.StatusOK, ChatResponse{Content: content, Role: models.RoleAssistant})
}

// TestGeneration reports whether the model API is reachable with the
// configured credential. Upstream failures are reported in the body rather
// than as a server error.
func (h *Handler) TestGeneration(w http.ResponseWriter, r *http.Request) {
	resp := modelsStatusResponse{
		APIKeyConfigured: h.llm.Configured(),
		Provider:         h.llm.Provider(),
		Model:            h.llm.Model(),
		AvailableModels:  []llm.ModelInfo{},
	}
	if !resp.APIKeyConfigured {
		h.writeError(w, r, &Error{Status: http.StatusInternalServerError, Message: "API key not configured", Err: llm.ErrNotConfigured})
		return
	}

	available, err := h.llm.ListModels(r.Context())
	if err != nil {
		h.logger.Warn("failed to list models",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		resp.Error = err.Error()
		h.respond(w, r, http.StatusOK, resp)
		return
	}

	resp.APIEnabled = true
	resp.RecommendedModel = "No models available"
	if len(available) > 0 {
		resp.AvailableModels = available
		resp.RecommendedModel = available[0].Name
	}
	h.respond(w, r, http.StatusOK, resp)
}
