package stores

import (
	"context"
	"log"
	"sync"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// EmailAPI is the part of the backend the email store calls
type EmailAPI interface {
	ListMessages(ctx context.Context, category string) ([]api.Email, error)
	SyncGmail(ctx context.Context, email string) error
	LogInteraction(ctx context.Context, emailID, action string) (*api.Interaction, error)
}

// Inbox is the cached list together with the category it was fetched for
type Inbox struct {
	Category string      `json:"category"`
	Emails   []api.Email `json:"emails"`
}

func cloneInbox(in Inbox) Inbox {
	in.Emails = cloneSlice(in.Emails)
	return in
}

// EmailStore caches the inbox.
//
// Archive and MarkRead are applied locally, then confirmed with the backend
// and rolled back if confirmation fails. Delete is local only: the backend
// has no delete endpoint, so a deleted row comes back on the next fetch.
type EmailStore struct {
	*Resource[Inbox]

	client   EmailAPI
	notifier notify.Notifier

	mu       sync.Mutex
	selected string
}

// NewEmailStore creates an empty email store with category All selected
func NewEmailStore(client EmailAPI, notifier notify.Notifier) *EmailStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &EmailStore{
		Resource: NewResource[Inbox]("emails", cloneInbox),
		client:   client,
		notifier: notifier,
		selected: api.CategoryAll,
	}
}

// SetLogger sets the logger
func (s *EmailStore) SetLogger(logger *log.Logger) {
	s.Resource.SetLogger(logger)
}

// Emails returns a copy of the cached rows
func (s *EmailStore) Emails() []api.Email {
	return s.Value().Emails
}

// SelectedCategory is the category Sync refetches
func (s *EmailStore) SelectedCategory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Fetch replaces the inbox with the rows of category. An empty result
// replaces the previous rows; a failure keeps them.
func (s *EmailStore) Fetch(ctx context.Context, category string) error {
	if category == "" {
		category = api.CategoryAll
	}
	fresh, err := s.Load(ctx, func(ctx context.Context) (Inbox, error) {
		emails, err := s.client.ListMessages(ctx, category)
		if err != nil {
			return Inbox{}, err
		}
		if emails == nil {
			emails = []api.Email{}
		}
		return Inbox{Category: category, Emails: emails}, nil
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load inbox")
	}
	return err
}

// SetCategory selects category and fetches it
func (s *EmailStore) SetCategory(ctx context.Context, category string) error {
	if category == "" {
		category = api.CategoryAll
	}
	s.mu.Lock()
	s.selected = category
	s.mu.Unlock()
	return s.Fetch(ctx, category)
}

// Sync asks the backend to pull from Gmail and, only once that finished,
// refetches the selected category. The store reports loading throughout.
func (s *EmailStore) Sync(ctx context.Context, email string) error {
	s.notifier.Notify(notify.LevelInfo, "Syncing with Gmail...")
	release := s.Hold()
	defer release()

	if err := s.client.SyncGmail(ctx, email); err != nil {
		if !canceled(err) {
			s.notifier.Notify(notify.LevelError, "Sync failed")
		}
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, "Sync complete")
	return s.Fetch(ctx, s.SelectedCategory())
}

// Archive removes the row locally and confirms with the backend. On failure
// the row is put back at its original position, unless the inbox was
// refetched or reset meanwhile.
func (s *EmailStore) Archive(ctx context.Context, id string) error {
	var (
		removed api.Email
		index   = -1
	)
	gen := s.Apply(func(in Inbox) Inbox {
		for i, e := range in.Emails {
			if e.ID == id {
				removed, index = e, i
				in.Emails = append(in.Emails[:i:i], in.Emails[i+1:]...)
				break
			}
		}
		return in
	})
	if index < 0 {
		return nil
	}

	if _, err := s.client.LogInteraction(ctx, id, api.ActionArchive); err != nil {
		s.UpdateAt(gen, func(in Inbox) Inbox {
			for _, e := range in.Emails {
				if e.ID == id {
					return in
				}
			}
			at := min(index, len(in.Emails))
			in.Emails = append(in.Emails[:at:at], append([]api.Email{removed}, in.Emails[at:]...)...)
			return in
		})
		s.notifier.Notify(notify.LevelError, "Failed to archive email")
		return err
	}
	return nil
}

// MarkRead flags the row read locally and records an open with the backend.
// On failure the previous read state is restored, with the same staleness
// rule as Archive.
func (s *EmailStore) MarkRead(ctx context.Context, id string) error {
	found, wasRead := false, false
	gen := s.Apply(func(in Inbox) Inbox {
		for i := range in.Emails {
			if in.Emails[i].ID == id {
				found, wasRead = true, in.Emails[i].IsRead
				in.Emails[i].IsRead = true
				break
			}
		}
		return in
	})
	if !found || wasRead {
		return nil
	}

	if _, err := s.client.LogInteraction(ctx, id, api.ActionOpen); err != nil {
		s.UpdateAt(gen, func(in Inbox) Inbox {
			for i := range in.Emails {
				if in.Emails[i].ID == id {
					in.Emails[i].IsRead = wasRead
					break
				}
			}
			return in
		})
		s.notifier.Notify(notify.LevelError, "Failed to mark email as read")
		return err
	}
	return nil
}

// Delete hides the row locally. It reports whether a row was removed.
func (s *EmailStore) Delete(id string) bool {
	deleted := false
	s.Update(func(in Inbox) Inbox {
		for i, e := range in.Emails {
			if e.ID == id {
				in.Emails = append(in.Emails[:i:i], in.Emails[i+1:]...)
				deleted = true
				break
			}
		}
		return in
	})
	return deleted
}
