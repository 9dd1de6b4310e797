package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RichardoC/padchat/internal/models"
)

const (
	base64Prefix = "base64-"
	maxChunkSize = 3180
	// browsers cap cookie lifetime at 400 days
	cookieMaxAge = 400 * 24 * 60 * 60
)

// CookieStore is the capability the session store uses to read and write
// session cookies. It is implemented once per transport context.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
	Remove(name string)
}

// ResponseCookies reads cookies from the request and writes mutations to the
// response. Writes are mirrored into the request's Cookie header so later
// handlers in the same request see the refreshed session.
type ResponseCookies struct {
	r *http.Request
	w http.ResponseWriter
}

func NewResponseCookies(w http.ResponseWriter, r *http.Request) *ResponseCookies {
	return &ResponseCookies{r: r, w: w}
}

func (c *ResponseCookies) Get(name string) (string, bool) {
	return requestCookie(c.r, name)
}

func (c *ResponseCookies) Set(cookie *http.Cookie) {
	http.SetCookie(c.w, cookie)
	c.mirror(cookie.Name, cookie.Value, false)
}

func (c *ResponseCookies) Remove(name string) {
	http.SetCookie(c.w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	c.mirror(name, "", true)
}

func (c *ResponseCookies) mirror(name, value string, remove bool) {
	parts := make([]string, 0)
	for _, ck := range c.r.Cookies() {
		if ck.Name == name {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	if !remove {
		parts = append(parts, name+"="+value)
	}
	if len(parts) == 0 {
		c.r.Header.Del("Cookie")
		return
	}
	c.r.Header.Set("Cookie", strings.Join(parts, "; "))
}

func requestCookie(r *http.Request, name string) (string, bool) {
	ck, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Session is the token set issued by the auth service.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

func (s *Session) expiresWithin(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Add(margin).Unix() >= s.ExpiresAt
}

var errMalformedCookie = errors.New("malformed session cookie")

func encodeSession(s *Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64Prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// decodeSession accepts the base64- form as well as the older URL-encoded
// raw JSON form.
func decodeSession(value string) (*Session, error) {
	var raw []byte
	if strings.HasPrefix(value, base64Prefix) {
		b, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, base64Prefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedCookie, err)
		}
		raw = b
	} else {
		s, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedCookie, err)
		}
		raw = []byte(s)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCookie, err)
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", errMalformedCookie)
	}
	return &sess, nil
}

func chunkName(name string, i int) string {
	return name + "." + strconv.Itoa(i)
}

// readChunked returns the cookie value stored under name, joining name.0,
// name.1, ... when the value was split.
func readChunked(cookies CookieStore, name string) (string, bool) {
	if v, ok := cookies.Get(name); ok {
		return v, true
	}
	var b strings.Builder
	for i := 0; ; i++ {
		v, ok := cookies.Get(chunkName(name, i))
		if !ok {
			break
		}
		b.WriteString(v)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// writeChunked stores value under name, splitting it when it is larger than
// a browser accepts for one cookie. Stale cookies from a previous layout are
// removed.
func writeChunked(cookies CookieStore, template http.Cookie, value string) {
	name := template.Name

	if len(value) <= maxChunkSize {
		ck := template
		ck.Value = value
		cookies.Set(&ck)
		removeChunks(cookies, name, 0)
		return
	}

	n := 0
	for start := 0; start < len(value); start += maxChunkSize {
		end := min(start+maxChunkSize, len(value))
		ck := template
		ck.Name = chunkName(name, n)
		ck.Value = value[start:end]
		cookies.Set(&ck)
		n++
	}
	if _, ok := cookies.Get(name); ok {
		cookies.Remove(name)
	}
	removeChunks(cookies, name, n)
}

func removeChunks(cookies CookieStore, name string, from int) {
	for i := from; ; i++ {
		if _, ok := cookies.Get(chunkName(name, i)); !ok {
			return
		}
		cookies.Remove(chunkName(name, i))
	}
}

func clearChunked(cookies CookieStore, name string) {
	if _, ok := cookies.Get(name); ok {
		cookies.Remove(name)
	}
	removeChunks(cookies, name, 0)
}
