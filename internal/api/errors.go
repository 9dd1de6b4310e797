package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/llm"
)

// Error is the failure returned by handlers. Message is what the client
// sees; Err, when set, is only logged.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

const unauthorizedMessage = "Unauthorized"

// Unauthenticated is returned when no session could be resolved.
func Unauthenticated() *Error {
	return &Error{Status: http.StatusUnauthorized, Message: unauthorizedMessage}
}

// Unauthorized is returned when the caller does not own the target row. It
// is indistinguishable from Unauthenticated on the wire.
func Unauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Message: unauthorizedMessage}
}

func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// Internal reports a store failure with the store's message.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// Generation reports a model failure with its classified, user-facing message.
func Generation(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: llm.ClassifyError(err), Err: err}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// writeError converts err to the JSON error envelope. Anything that is not an
// *Error is treated as internal.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}

	fields := []zap.Field{
		zap.String("request_id", RequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", apiErr.Status),
		zap.String("message", apiErr.Message),
	}
	if apiErr.Err != nil {
		fields = append(fields, zap.Error(apiErr.Err))
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	if err := writeJSON(w, apiErr.Status, errorResponse{Error: apiErr.Message}); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// decodeJSON reads a JSON request body into v. An empty body leaves v zero.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return BadRequest("Invalid request body")
	}
	return nil
}
