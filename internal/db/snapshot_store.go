package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SnapshotStore keeps the last successful payload of each resource store so
// a restarted client can show data before the first fetch completes.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a new snapshot store from a base store
func NewSnapshotStore(store *Store) *SnapshotStore {
	if store == nil {
		return nil
	}
	return &SnapshotStore{db: store.DB()}
}

// Save upserts the JSON encoding of v for (account_email, resource)
func (ss *SnapshotStore) Save(ctx context.Context, accountEmail, resource string, v any) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("snapshot store not initialized")
	}
	if strings.TrimSpace(accountEmail) == "" || strings.TrimSpace(resource) == "" {
		return fmt.Errorf("invalid snapshot inputs")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", resource, err)
	}
	_, err = ss.db.ExecContext(ctx, `INSERT INTO snapshots(account_email, resource, payload, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(account_email, resource) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at;
`, accountEmail, resource, string(payload), time.Now().Unix())
	return err
}

// Load decodes a snapshot into v. It reports false when none exists.
func (ss *SnapshotStore) Load(ctx context.Context, accountEmail, resource string, v any) (bool, error) {
	if ss == nil || ss.db == nil {
		return false, fmt.Errorf("snapshot store not initialized")
	}
	var payload string
	err := ss.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE account_email=? AND resource=?`, accountEmail, resource).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", resource, err)
	}
	return true, nil
}

// ClearAccount removes every snapshot of an account
func (ss *SnapshotStore) ClearAccount(ctx context.Context, accountEmail string) error {
	if ss == nil || ss.db == nil {
		return fmt.Errorf("snapshot store not initialized")
	}
	_, err := ss.db.ExecContext(ctx, `DELETE FROM snapshots WHERE account_email=?`, accountEmail)
	return err
}
