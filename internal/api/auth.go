package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/auth"
	"github.com/RichardoC/padchat/internal/models"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

func (h *Handler) RegisterAuth(r *mux.Router) {
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/user", h.CurrentUser).Methods(http.MethodGet)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.sessions.SignIn(r.Context(), auth.NewResponseCookies(w, r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, authFailure(err))
		return
	}
	h.respond(w, r, http.StatusOK, userResponse{User: user})
}

// Signup registers an account. When the auth service still wants the address
// confirmed, the user is returned without a session cookie.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.sessions.SignUp(r.Context(), auth.NewResponseCookies(w, r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, authFailure(err))
		return
	}
	h.respond(w, r, http.StatusOK, userResponse{User: user})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context(), auth.NewResponseCookies(w, r)); err != nil {
		h.logger.Warn("sign out failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
	}
	h.respond(w, r, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, userResponse{User: user})
}

func readCredentials(r *http.Request) (*CredentialsRequest, error) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.Email == "" || req.Password == "" {
		return nil, BadRequest("Email and password are required")
	}
	return &req, nil
}

// authFailure reports credentials the auth service refused as 401 with its
// own message; anything else is internal.
func authFailure(err error) *Error {
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return &Error{Status: http.StatusUnauthorized, Message: apiErr.Message, Err: err}
	}
	return Internal(err)
}
