package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNoSession is returned by Token when nobody is logged in.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidCallback is returned when a login redirect lacks token, email or user_id.
	ErrInvalidCallback = errors.New("invalid login callback")
)

// CookieName is the cookie the session token is mirrored into for
// server-side route protection.
const CookieName = "token"

// persistTimeout bounds writes to the Persister from Login/Logout, which have
// no caller context.
const persistTimeout = 5 * time.Second

// Identity describes the logged-in user as reported by the login redirect.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Session is the client's view of who is logged in.
type Session struct {
	Identity
	Token         string `json:"-"`
	Authenticated bool   `json:"authenticated"`
}

// SessionReader is the read-only, synchronous view of the session used by
// the HTTP client and the route guard.
type SessionReader interface {
	Snapshot() Session
}

// Persister stores the session durably across restarts.
type Persister interface {
	LoadSession(ctx context.Context) (Session, bool, error)
	SaveSession(ctx context.Context, s Session) error
	ClearSession(ctx context.Context) error
}

type subscriber struct {
	id int
	fn func(Session)
}

// SessionStore is the single source of truth for "is this client
// authenticated". Only Login and Logout mutate it.
type SessionStore struct {
	mu          sync.RWMutex
	session     Session
	persister   Persister
	subscribers []subscriber
	nextID      int
	logger      *log.Logger
}

// NewSessionStore creates a logged-out store. persister may be nil.
func NewSessionStore(persister Persister) *SessionStore {
	return &SessionStore{persister: persister}
}

// SetLogger sets the logger for persistence failures
func (s *SessionStore) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// Restore loads a previously persisted session, if any.
func (s *SessionStore) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	sess, found, err := s.persister.LoadSession(ctx)
	if err != nil {
		return err
	}
	if !found || sess.Token == "" {
		return nil
	}
	sess.Authenticated = true

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.notify(sess)
	return nil
}

// Login records the identity and token delivered by the external auth
// redirect. The token format is not validated.
func (s *SessionStore) Login(identity Identity, token string) {
	sess := Session{
		Identity:      identity,
		Token:         token,
		Authenticated: token != "",
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.persist(func(ctx context.Context) error {
		if !sess.Authenticated {
			return s.persister.ClearSession(ctx)
		}
		return s.persister.SaveSession(ctx, sess)
	})
	s.notify(sess)
}

// Logout clears the session. Calling it when already logged out is a no-op.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	if s.session == (Session{}) {
		s.mu.Unlock()
		return
	}
	s.session = Session{}
	s.mu.Unlock()

	s.persist(func(ctx context.Context) error {
		return s.persister.ClearSession(ctx)
	})
	s.notify(Session{})
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// IsAuthenticated reports whether a token is currently held.
func (s *SessionStore) IsAuthenticated() bool {
	return s.Snapshot().Authenticated
}

// Subscribe registers fn to be called after every session change. The
// returned function removes the subscription.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Token implements oauth2.TokenSource. It yields the bearer token held at the
// moment of the call.
func (s *SessionStore) Token() (*oauth2.Token, error) {
	sess := s.Snapshot()
	if !sess.Authenticated {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}, nil
}

func (s *SessionStore) notify(sess Session) {
	s.mu.RLock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(sess)
	}
}

func (s *SessionStore) persist(op func(ctx context.Context) error) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := op(ctx); err != nil && s.logger != nil {
		s.logger.Printf("session persist failed: %v", err)
	}
}

// SessionCookie mirrors the session into the cookie the backend's route
// protection reads. A logged-out session yields an expiring cookie.
func SessionCookie(sess Session) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   86400,
		SameSite: http.SameSiteStrictMode,
	}
	if !sess.Authenticated {
		c.Value = ""
		c.MaxAge = -1
	}
	return c
}
