package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RichardoC/padchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCookie = "sb-test-auth-token"

type memCookies map[string]string

func (m memCookies) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m memCookies) Set(c *http.Cookie) { m[c.Name] = c.Value }

func (m memCookies) Remove(name string) { delete(m, name) }

type fakeGoTrue struct {
	refreshCalls atomic.Int32
	userCalls    atomic.Int32
	logoutCalls  atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionBody(token string) map[string]any {
	return map[string]any{
		"access_token":  token,
		"refresh_token": "refresh-ok",
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": "u1", "email": "a@b.c", "role": "authenticated"},
	}
}

func newFakeGoTrue(t *testing.T) (*httptest.Server, *fakeGoTrue) {
	t.Helper()
	f := &fakeGoTrue{}
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good-token", "Bearer fresh-token":
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "a@b.c", "aud": "authenticated"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		}
	})

	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Query().Get("grant_type") {
		case "refresh_token":
			f.refreshCalls.Add(1)
			if body["refresh_token"] == "refresh-ok" {
				writeJSON(w, http.StatusOK, sessionBody("fresh-token"))
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid Refresh Token"})
		case "password":
			if body["email"] == "a@b.c" && body["password"] == "secret" {
				writeJSON(w, http.StatusOK, sessionBody("good-token"))
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "Invalid login credentials"})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "pending@b.c" {
			writeJSON(w, http.StatusOK, map[string]any{"id": "u2", "email": "pending@b.c"})
			return
		}
		writeJSON(w, http.StatusOK, sessionBody("good-token"))
	})

	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

func newTestStore(t *testing.T) (*SessionStore, *fakeGoTrue) {
	srv, fake := newFakeGoTrue(t)
	client := NewClient(srv.URL, "anon", srv.Client())
	return NewSessionStore(client, testCookie, false, zap.NewNop()), fake
}

func cookieFor(t *testing.T, sess *Session) memCookies {
	t.Helper()
	v, err := encodeSession(sess)
	require.NoError(t, err)
	return memCookies{testCookie: v}
}

func TestSessionCodecRoundTrip(t *testing.T) {
	in := &Session{AccessToken: "tok", RefreshToken: "ref", ExpiresAt: 42, User: &models.User{ID: "u1", Email: "a@b.c"}}
	v, err := encodeSession(in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, base64Prefix))

	out, err := decodeSession(v)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeSession("base64-!!!")
	assert.ErrorIs(t, err, errMalformedCookie)

	legacy, err := decodeSession(`%7B%22access_token%22%3A%22tok%22%7D`)
	require.NoError(t, err)
	assert.Equal(t, "tok", legacy.AccessToken)
}

func TestChunkedCookies(t *testing.T) {
	cookies := memCookies{}
	big := strings.Repeat("x", maxChunkSize*2+10)

	writeChunked(cookies, http.Cookie{Name: "s"}, big)
	_, single := cookies["s"]
	assert.False(t, single)
	assert.Len(t, cookies["s.0"], maxChunkSize)
	assert.Len(t, cookies["s.2"], 10)

	got, ok := readChunked(cookies, "s")
	require.True(t, ok)
	assert.Equal(t, big, got)

	// shrinking back to one cookie removes the stale chunks
	writeChunked(cookies, http.Cookie{Name: "s"}, "small")
	assert.Equal(t, memCookies{"s": "small"}, cookies)

	clearChunked(cookies, "s")
	assert.Empty(t, cookies)
}

func TestResponseCookiesMirrorIntoRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "keep", Value: "1"})
	r.AddCookie(&http.Cookie{Name: "s", Value: "old"})
	w := httptest.NewRecorder()
	cookies := NewResponseCookies(w, r)

	cookies.Set(&http.Cookie{Name: "s", Value: "new", Path: "/"})
	v, ok := cookies.Get("s")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	keep, _ := r.Cookie("keep")
	require.NotNil(t, keep)
	assert.Equal(t, "1", keep.Value)

	cookies.Remove("s")
	_, ok = cookies.Get("s")
	assert.False(t, ok)

	set := w.Result().Cookies()
	require.Len(t, set, 2)
	assert.Equal(t, "new", set[0].Value)
	assert.Equal(t, -1, set[1].MaxAge)
}

func TestUserRefreshIsWrittenToResponse(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	stale, err := encodeSession(&Session{AccessToken: "stale", RefreshToken: "refresh-ok", ExpiresAt: time.Now().Add(-time.Minute).Unix()})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	r.AddCookie(&http.Cookie{Name: testCookie, Value: stale})
	w := httptest.NewRecorder()
	user, err := store.User(ctx, NewResponseCookies(w, r))
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	set := w.Result().Cookies()
	require.Len(t, set, 1)
	assert.Equal(t, testCookie, set[0].Name)
	assert.True(t, set[0].HttpOnly)
	rotated, err := decodeSession(set[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", rotated.AccessToken)

	// The next request carries the rotated cookie and must not refresh again.
	next := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	next.AddCookie(&http.Cookie{Name: testCookie, Value: set[0].Value})
	_, err = store.User(ctx, NewResponseCookies(httptest.NewRecorder(), next))
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.refreshCalls.Load())
}

func TestSessionValidWithoutNetwork(t *testing.T) {
	store, fake := newTestStore(t)
	cookies := cookieFor(t, &Session{AccessToken: "good-token", RefreshToken: "refresh-ok", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	assert.True(t, store.Active(context.Background(), cookies))
	assert.Zero(t, fake.refreshCalls.Load())
	assert.Zero(t, fake.userCalls.Load())
}

func TestExpiredSessionIsRefreshed(t *testing.T) {
	store, fake := newTestStore(t)
	cookies := cookieFor(t, &Session{AccessToken: "stale", RefreshToken: "refresh-ok", ExpiresAt: time.Now().Add(-time.Minute).Unix()})

	sess, err := store.Session(context.Background(), cookies)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", sess.AccessToken)
	assert.Greater(t, sess.ExpiresAt, time.Now().Unix())
	assert.EqualValues(t, 1, fake.refreshCalls.Load())

	stored, err := decodeSession(cookies[testCookie])
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", stored.AccessToken)
}

func TestRejectedRefreshClearsCookie(t *testing.T) {
	store, _ := newTestStore(t)
	cookies := cookieFor(t, &Session{AccessToken: "stale", RefreshToken: "revoked", ExpiresAt: time.Now().Add(-time.Minute).Unix()})

	_, err := store.Session(context.Background(), cookies)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, cookies)
	assert.False(t, store.Active(context.Background(), cookieFor(t, &Session{AccessToken: "stale", RefreshToken: "revoked", ExpiresAt: 1})))
}

func TestNoCookieMeansNoSession(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.User(context.Background(), memCookies{})
	assert.ErrorIs(t, err, ErrNoSession)

	garbage := memCookies{testCookie: "base64-%%%"}
	assert.False(t, store.Active(context.Background(), garbage))
	assert.Empty(t, garbage)
}

func TestUserVerifiesToken(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	future := time.Now().Add(time.Hour).Unix()

	user, err := store.User(ctx, cookieFor(t, &Session{AccessToken: "good-token", ExpiresAt: future}))
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u1", Email: "a@b.c"}, user)
	assert.EqualValues(t, 1, fake.userCalls.Load())

	_, err = store.User(ctx, cookieFor(t, &Session{AccessToken: "forged", ExpiresAt: future}))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignInSignUpSignOut(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	cookies := memCookies{}
	user, err := store.SignIn(ctx, cookies, "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	sess, err := decodeSession(cookies[testCookie])
	require.NoError(t, err)
	assert.Equal(t, "good-token", sess.AccessToken)

	_, err = store.SignIn(ctx, memCookies{}, "a@b.c", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)

	require.NoError(t, store.SignOut(ctx, cookies))
	assert.Empty(t, cookies)
	assert.EqualValues(t, 1, fake.logoutCalls.Load())

	pending := memCookies{}
	user, err = store.SignUp(ctx, pending, "pending@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
	assert.Empty(t, pending)

	confirmed := memCookies{}
	user, err = store.SignUp(ctx, confirmed, "new@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Contains(t, confirmed, testCookie)
}

func TestCookieNameFor(t *testing.T) {
	assert.Equal(t, "sb-abcd-auth-token", CookieNameFor("https://abcd.supabase.co"))
	assert.Equal(t, "sb-localhost-auth-token", CookieNameFor("http://localhost:54321"))
	assert.Equal(t, "sb-local-auth-token", CookieNameFor(""))
}
