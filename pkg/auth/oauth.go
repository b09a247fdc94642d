package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// CallbackPath is where the local listener expects the login redirect
const CallbackPath = "/auth/callback"

// Callback is the identity and token delivered by the backend after the
// external identity provider finished.
type Callback struct {
	Identity
	Token string
}

// ParseCallback extracts the login result from the redirect's query parameters.
// The display name falls back to the local part of the email address.
func ParseCallback(q url.Values) (Callback, error) {
	cb := Callback{
		Identity: Identity{
			UserID:      strings.TrimSpace(q.Get("user_id")),
			Email:       strings.TrimSpace(q.Get("email")),
			DisplayName: strings.TrimSpace(q.Get("name")),
		},
		Token: strings.TrimSpace(q.Get("token")),
	}

	var missing []string
	if cb.Token == "" {
		missing = append(missing, "token")
	}
	if cb.Email == "" {
		missing = append(missing, "email")
	}
	if cb.UserID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return Callback{}, fmt.Errorf("%w: missing %s", ErrInvalidCallback, strings.Join(missing, ", "))
	}

	if cb.DisplayName == "" {
		cb.DisplayName = cb.Email
		if at := strings.Index(cb.Email, "@"); at > 0 {
			cb.DisplayName = cb.Email[:at]
		}
	}
	return cb, nil
}

// ParseCallbackURL parses a full redirect URL pasted by the user
func ParseCallbackURL(raw string) (Callback, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return ParseCallback(u.Query())
}

// LoginURL builds the URL that starts the external login, asking the backend
// to redirect back to returnTo when it supports that.
func LoginURL(loginURL, returnTo string) (string, error) {
	u, err := url.Parse(loginURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid login url %q", loginURL)
	}
	if returnTo != "" {
		q := u.Query()
		q.Set("redirect_uri", returnTo)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// LoginListener is a short-lived local server that receives the login redirect
type LoginListener struct {
	listener net.Listener
	server   *http.Server
	results  chan Callback
	errs     chan error
}

// NewLoginListener binds addr immediately so the callback URL is known
// before the browser is opened. Use port 0 to pick a free port.
func NewLoginListener(addr string) (*LoginListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for login callback: %w", err)
	}

	l := &LoginListener{
		listener: ln,
		results:  make(chan Callback, 1),
		errs:     make(chan error, 1),
	}

	r := mux.NewRouter()
	r.HandleFunc(CallbackPath, l.handleCallback).Methods(http.MethodGet)
	l.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return l, nil
}

// CallbackURL is the address the backend should redirect the browser to
func (l *LoginListener) CallbackURL() string {
	return "http://" + l.listener.Addr().String() + CallbackPath
}

func (l *LoginListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	cb, err := ParseCallback(r.URL.Query())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`
			<html>
				<body>
					<h2>Login failed</h2>
					<p>The login redirect was missing required fields.</p>
				</body>
			</html>
		`))
		select {
		case l.errs <- err:
		default:
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`
		<html>
			<body>
				<h2>Login successful</h2>
				<p>You can close this window and return to Kyra.</p>
			</body>
		</html>
	`))
	select {
	case l.results <- cb:
	default:
	}
}

// Wait serves until one callback arrives, the timeout elapses or ctx is done.
// The server is shut down before Wait returns.
func (l *LoginListener) Wait(ctx context.Context, timeout time.Duration) (Callback, error) {
	go func() {
		if err := l.server.Serve(l.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case l.errs <- err:
			default:
			}
		}
	}()
	defer l.shutdown()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case cb := <-l.results:
		return cb, nil
	case err := <-l.errs:
		return Callback{}, fmt.Errorf("login callback: %w", err)
	case <-timer.C:
		return Callback{}, fmt.Errorf("login timeout exceeded")
	case <-ctx.Done():
		return Callback{}, ctx.Err()
	}
}

// Close releases the listener without serving
func (l *LoginListener) Close() error {
	return l.listener.Close()
}

func (l *LoginListener) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.server.Shutdown(ctx)
}
