package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/kyra/pkg/auth"
)

// SessionStore persists the single logged-in session row
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new session store from a base store
func NewSessionStore(store *Store) *SessionStore {
	if store == nil {
		return nil
	}
	return &SessionStore{db: store.DB()}
}

var _ auth.Persister = (*SessionStore)(nil)

// SaveSession upserts the session row
func (ss *SessionStore) SaveSession(ctx context.Context, s auth.Session) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("session store not initialized")
	}
	if strings.TrimSpace(s.Token) == "" || strings.TrimSpace(s.Email) == "" {
		return fmt.Errorf("invalid session inputs")
	}
	_, err := ss.db.ExecContext(ctx, `INSERT INTO session(id, user_id, email, display_name, token, updated_at)
VALUES(1,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, email=excluded.email,
  display_name=excluded.display_name, token=excluded.token, updated_at=excluded.updated_at;
`, s.UserID, s.Email, s.DisplayName, s.Token, time.Now().Unix())
	return err
}

// LoadSession returns the persisted session if present
func (ss *SessionStore) LoadSession(ctx context.Context) (auth.Session, bool, error) {
	if ss == nil || ss.db == nil {
		return auth.Session{}, false, fmt.Errorf("session store not initialized")
	}
	var s auth.Session
	err := ss.db.QueryRowContext(ctx, `SELECT user_id, email, display_name, token FROM session WHERE id=1`).
		Scan(&s.UserID, &s.Email, &s.DisplayName, &s.Token)
	if err == sql.ErrNoRows {
		return auth.Session{}, false, nil
	}
	if err != nil {
		return auth.Session{}, false, err
	}
	s.Authenticated = s.Token != ""
	return s, true, nil
}

// ClearSession removes the session row. Preferences are left alone.
func (ss *SessionStore) ClearSession(ctx context.Context) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("session store not initialized")
	}
	_, err := ss.db.ExecContext(ctx, `DELETE FROM session WHERE id=1`)
	return err
}
