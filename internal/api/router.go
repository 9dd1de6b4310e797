package api

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires every route. Middleware order: request logging, panic
// recovery, metrics, then the page guard.
func NewRouter(h *Handler, staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		Logger(h.logger),
		Recovery(h.logger),
		h.metrics.Instrument,
		Guard(h.sessions, h.logger),
	)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	h.RegisterChat(r)
	h.RegisterConversations(r)
	h.RegisterMessages(r)
	h.RegisterAuth(r)

	r.PathPrefix("/").Handler(pages(staticDir))
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the store answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("store not ready", zap.Error(err))
		_ = writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pages serves the static page directory. Every /chat/<id> path shares the
// chat page.
func pages(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	chatPage := filepath.Join(dir, "chat", "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if under(r.URL.Path, "/chat") && r.URL.Path != "/chat/" {
			http.ServeFile(w, r, chatPage)
			return
		}
		files.ServeHTTP(w, r)
	})
}
