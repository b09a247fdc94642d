package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrefOnboardingComplete is set once the user finished the first-run flow
const PrefOnboardingComplete = "onboarding_complete"

// PreferenceStore keeps small client preferences as key/value pairs
type PreferenceStore struct {
	db *sql.DB
}

// NewPreferenceStore creates a new preference store from a base store
func NewPreferenceStore(store *Store) *PreferenceStore {
	if store == nil {
		return nil
	}
	return &PreferenceStore{db: store.DB()}
}

// Set upserts a preference value
func (ps *PreferenceStore) Set(ctx context.Context, key, value string) error {
	if ps == nil || ps.db == nil {
		return fmt.Errorf("preference store not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty preference key")
	}
	_, err := ps.db.ExecContext(ctx, `INSERT INTO preferences(key, value, updated_at) VALUES(?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;`, key, value, time.Now().Unix())
	return err
}

// Get returns a preference value if present
func (ps *PreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	if ps == nil || ps.db == nil {
		return "", false, fmt.Errorf("preference store not initialized")
	}
	var v string
	err := ps.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Delete removes a preference
func (ps *PreferenceStore) Delete(ctx context.Context, key string) error {
	if ps == nil || ps.db == nil {
		return fmt.Errorf("preference store not initialized")
	}
	_, err := ps.db.ExecContext(ctx, `DELETE FROM preferences WHERE key=?`, key)
	return err
}

// OnboardingComplete reports whether the first-run flow was finished
func (ps *PreferenceStore) OnboardingComplete(ctx context.Context) (bool, error) {
	v, ok, err := ps.Get(ctx, PrefOnboardingComplete)
	if err != nil || !ok {
		return false, err
	}
	done, _ := strconv.ParseBool(v)
	return done, nil
}

// SetOnboardingComplete records the first-run flag
func (ps *PreferenceStore) SetOnboardingComplete(ctx context.Context, done bool) error {
	return ps.Set(ctx, PrefOnboardingComplete, strconv.FormatBool(done))
}
