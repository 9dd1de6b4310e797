package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RichardoC/padchat/internal/models"
)

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth service returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the GoTrue REST API of the auth service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// NewClient builds a client for the auth service at serviceURL, e.g.
// https://<ref>.supabase.co. The API lives under /auth/v1.
func NewClient(serviceURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(serviceURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		http:    httpClient,
		now:     time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetUser verifies accessToken with the auth service and returns its owner.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "no user for token"}
	}
	return &user, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.token(ctx, "refresh_token", body)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", credentials{Email: email, Password: password})
}

// SignUp registers a user. The session is nil when the auth service requires
// the address to be confirmed first.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, *models.User, error) {
	var resp struct {
		Session
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodPost, "/signup", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, nil, err
	}

	if resp.AccessToken == "" {
		return nil, &models.User{ID: resp.ID, Email: resp.Email}, nil
	}
	sess := resp.Session
	c.stamp(&sess)
	return &sess, sess.User, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) token(ctx context.Context, grantType string, body any) (*Session, error) {
	var sess Session
	path := "/token?grant_type=" + url.QueryEscape(grantType)
	if err := c.do(ctx, http.MethodPost, path, "", body, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "token response without access token"}
	}
	c.stamp(&sess)
	return &sess, nil
}

func (c *Client) stamp(sess *Session) {
	if sess.ExpiresAt == 0 && sess.ExpiresIn > 0 {
		sess.ExpiresAt = c.now().Unix() + sess.ExpiresIn
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

// errorMessage pulls the human-readable message out of the error shapes the
// auth service has used over time.
func errorMessage(raw []byte, fallback string) string {
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	return fallback
}
