package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RichardoC/padchat/internal/models"
	"go.uber.org/zap"
)

// ErrNoSession means the request carries no usable session.
var ErrNoSession = errors.New("no session")

// sessions are refreshed this long before they actually expire
const expiryMargin = 10 * time.Second

// SessionStore turns request cookies into a session or user and writes
// session changes back through a CookieStore.
type SessionStore struct {
	client     *Client
	cookieName string
	secure     bool
	logger     *zap.Logger
	now        func() time.Time
}

func NewSessionStore(client *Client, cookieName string, secure bool, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		client:     client,
		cookieName: cookieName,
		secure:     secure,
		logger:     logger,
		now:        time.Now,
	}
}

// CookieNameFor derives the session cookie name from the auth service URL:
// sb-<first host label>-auth-token.
func CookieNameFor(serviceURL string) string {
	ref := "local"
	if u, err := url.Parse(serviceURL); err == nil && u.Hostname() != "" {
		ref = strings.Split(u.Hostname(), ".")[0]
	}
	return "sb-" + ref + "-auth-token"
}

// Session returns the current session, refreshing it first when it is about
// to expire. A refreshed session is written back through cookies; a session
// the auth service rejects is cleared.
func (s *SessionStore) Session(ctx context.Context, cookies CookieStore) (*Session, error) {
	sess, err := s.read(cookies)
	if err != nil {
		return nil, err
	}
	if !sess.expiresWithin(s.now(), expiryMargin) {
		return sess, nil
	}

	if sess.RefreshToken == "" {
		s.clear(cookies)
		return nil, ErrNoSession
	}

	fresh, err := s.client.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if isClientError(err) {
			s.logger.Debug("session refresh rejected", zap.Error(err))
			s.clear(cookies)
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	if fresh.User == nil {
		fresh.User = sess.User
	}
	if err := s.save(cookies, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Active reports whether a valid session exists. Any failure counts as none.
func (s *SessionStore) Active(ctx context.Context, cookies CookieStore) bool {
	_, err := s.Session(ctx, cookies)
	if err != nil && !errors.Is(err, ErrNoSession) {
		s.logger.Warn("failed to resolve session", zap.Error(err))
	}
	return err == nil
}

// User resolves the requesting user, verifying the access token with the
// auth service.
func (s *SessionStore) User(ctx context.Context, cookies CookieStore) (*models.User, error) {
	sess, err := s.Session(ctx, cookies)
	if err != nil {
		return nil, err
	}
	user, err := s.client.GetUser(ctx, sess.AccessToken)
	if err != nil {
		if isClientError(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SessionStore) SignIn(ctx context.Context, cookies CookieStore, email, password string) (*models.User, error) {
	sess, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.save(cookies, sess); err != nil {
		return nil, err
	}
	return sess.User, nil
}

// SignUp registers a user. No cookie is written while the address still
// needs confirming.
func (s *SessionStore) SignUp(ctx context.Context, cookies CookieStore, email, password string) (*models.User, error) {
	sess, user, err := s.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		if err := s.save(cookies, sess); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// SignOut revokes the session upstream on a best-effort basis and always
// clears the cookie.
func (s *SessionStore) SignOut(ctx context.Context, cookies CookieStore) error {
	sess, err := s.read(cookies)
	if err == nil {
		if err := s.client.SignOut(ctx, sess.AccessToken); err != nil {
			s.logger.Warn("failed to revoke session", zap.Error(err))
		}
	}
	s.clear(cookies)
	return nil
}

func (s *SessionStore) read(cookies CookieStore) (*Session, error) {
	raw, ok := readChunked(cookies, s.cookieName)
	if !ok {
		return nil, ErrNoSession
	}
	sess, err := decodeSession(raw)
	if err != nil {
		s.logger.Debug("dropping unreadable session cookie", zap.Error(err))
		s.clear(cookies)
		return nil, ErrNoSession
	}
	return sess, nil
}

func (s *SessionStore) save(cookies CookieStore, sess *Session) error {
	value, err := encodeSession(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	writeChunked(cookies, http.Cookie{
		Name:     s.cookieName,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, value)
	return nil
}

func (s *SessionStore) clear(cookies CookieStore) {
	clearChunked(cookies, s.cookieName)
}

func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}
