package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/RichardoC/padchat/internal/auth"
)

const (
	LoginPath     = "/auth/login"
	DashboardPath = "/dashboard"
)

var (
	protectedPrefixes = []string{"/dashboard", "/chat"}
	authPagePrefixes  = []string{"/auth/login", "/auth/signup"}
	// guardedPrefixes are the paths whose session is resolved at all.
	guardedPrefixes = []string{"/dashboard", "/chat", "/auth"}
)

// under reports whether path is prefix itself or lies below it.
func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if under(path, p) {
			return true
		}
	}
	return false
}

// Decide applies the page access table. It returns the redirect target and
// true when the request must not reach its handler.
func Decide(path string, hasSession bool) (string, bool) {
	switch {
	case path == "/":
		if hasSession {
			return DashboardPath, true
		}
		return LoginPath, true
	case underAny(path, protectedPrefixes) && !hasSession:
		return LoginPath, true
	case underAny(path, authPagePrefixes) && hasSession:
		return DashboardPath, true
	}
	return "", false
}

// guarded reports whether the guard resolves a session for path.
func guarded(path string) bool {
	return path == "/" || underAny(path, guardedPrefixes)
}

// Guard redirects page requests according to Decide. Cookie changes made
// while resolving the session are written before either branch runs, so a
// redirect carries them too.
func Guard(sessions Sessions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !guarded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookies := auth.NewResponseCookies(w, r)
			target, redirect := Decide(r.URL.Path, sessions.Active(r.Context(), cookies))
			if !redirect {
				next.ServeHTTP(w, r)
				return
			}
			logger.Debug("redirecting",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("from", r.URL.Path),
				zap.String("to", target),
			)
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}
