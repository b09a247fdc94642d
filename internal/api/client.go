package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ajramos/kyra/pkg/auth"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// maxDetailBytes caps how much of an error body is read for Detail
const maxDetailBytes = 64 << 10

// Session is what the client needs from the auth session store: the bearer
// token at dispatch time and the ability to end the session on 401.
type Session interface {
	oauth2.TokenSource
	Logout()
}

// Navigator receives the login redirect after a 401
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

// Redirect calls f(path)
func (f NavigatorFunc) Redirect(path string) { f(path) }

// Client talks to the Kyra backend
type Client struct {
	baseURL    string
	base       *url.URL
	httpClient *http.Client
	session    Session
	navigator  Navigator
	loginPath  string
	logger     *log.Logger
}

// NewClient creates a client for baseURL (including the /api/v1 prefix).
// A zero timeout disables the per-request deadline.
func NewClient(baseURL string, timeout time.Duration, session Session) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: base.String(),
		base:    base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		session:   session,
		loginPath: "/auth/login",
	}, nil
}

// SetLogger sets the logger for request tracing
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// SetNavigator sets where the user is sent after a 401
func (c *Client) SetNavigator(nav Navigator, loginPath string) {
	c.navigator = nav
	if loginPath != "" {
		c.loginPath = loginPath
	}
}

// SetTransport replaces the underlying transport, keeping the cookie jar
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// MirrorSession copies the session into the cookie jar so server-side route
// protection sees the same token as the Authorization header.
func (c *Client) MirrorSession(s auth.Session) {
	c.httpClient.Jar.SetCookies(c.base, []*http.Cookie{auth.SessionCookie(s)})
}

// Cookies returns the cookies the jar would send to the backend
func (c *Client) Cookies() []*http.Cookie {
	return c.httpClient.Jar.Cookies(c.base)
}

// Do issues one request. body is JSON-encoded when non-nil and the response
// is decoded into out when non-nil. It never retries.
func (c *Client) Do(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The token is read once here; later session changes do not affect this request.
	if c.session != nil {
		if tok, err := c.session.Token(); err == nil {
			tok.SetAuthHeader(req)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		c.logf("%s %s failed after %v: %v", method, path, time.Since(start), err)
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()
	c.logf("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized()
		}
		return httpErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) handleUnauthorized() {
	if c.session != nil {
		c.session.Logout()
	}
	if c.navigator != nil {
		c.navigator.Redirect(c.loginPath)
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// readDetail extracts FastAPI's {"detail": ...}; validation errors carry a
// list there, which is kept as JSON text.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxDetailBytes))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}
