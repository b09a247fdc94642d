package stores

import (
	"context"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// DigestAPI is the part of the backend the digest store calls
type DigestAPI interface {
	LatestDigest(ctx context.Context, email string) (*api.LatestDigest, error)
	GenerateDigest(ctx context.Context, userID, email string) (*api.GeneratedDigest, error)
}

// Digest is the latest generated digest; nil Content means none exists
type Digest struct {
	Content     *string `json:"content"`
	GeneratedAt string  `json:"generated_at,omitempty"`
}

// DigestStore holds at most one digest, replaced wholesale
type DigestStore struct {
	*Resource[Digest]

	client   DigestAPI
	notifier notify.Notifier
}

// NewDigestStore creates an empty digest store
func NewDigestStore(client DigestAPI, notifier notify.Notifier) *DigestStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &DigestStore{
		Resource: NewResource[Digest]("digest", nil),
		client:   client,
		notifier: notifier,
	}
}

// Content returns the digest text, or nil when none exists
func (s *DigestStore) Content() *string {
	d := s.Value()
	if d.Content == nil {
		return nil
	}
	c := *d.Content
	return &c
}

// FetchLatest loads the latest digest. found=false clears it.
func (s *DigestStore) FetchLatest(ctx context.Context, email string) error {
	fresh, err := s.Load(ctx, func(ctx context.Context) (Digest, error) {
		latest, err := s.client.LatestDigest(ctx, email)
		if err != nil {
			return Digest{}, err
		}
		if !latest.Found {
			return Digest{}, nil
		}
		content := latest.Content
		return Digest{Content: &content, GeneratedAt: latest.CreatedAt}, nil
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load digest")
	}
	return err
}

// Generate asks the backend for a new digest and replaces the current one
func (s *DigestStore) Generate(ctx context.Context, userID, email string) error {
	fresh, err := s.Load(ctx, func(ctx context.Context) (Digest, error) {
		gen, err := s.client.GenerateDigest(ctx, userID, email)
		if err != nil {
			return Digest{}, err
		}
		content := gen.Content
		return Digest{Content: &content}, nil
	})
	switch {
	case err != nil && fresh && !canceled(err):
		s.notifier.Notify(notify.LevelError, "Failed to generate digest")
	case err == nil && fresh:
		s.notifier.Notify(notify.LevelSuccess, "New digest generated")
	}
	return err
}
