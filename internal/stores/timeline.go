package stores

import (
	"context"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// TimelineAPI is the part of the backend the timeline store calls
type TimelineAPI interface {
	ListTasks(ctx context.Context, email string) ([]api.Task, error)
}

// TimelineStore is a read-only cache of timeline entries
type TimelineStore struct {
	*Resource[[]api.Task]

	client   TimelineAPI
	notifier notify.Notifier
}

// NewTimelineStore creates an empty timeline store
func NewTimelineStore(client TimelineAPI, notifier notify.Notifier) *TimelineStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &TimelineStore{
		Resource: NewResource[[]api.Task]("timeline", cloneSlice[api.Task]),
		client:   client,
		notifier: notifier,
	}
}

// Tasks returns a copy of the cached entries
func (s *TimelineStore) Tasks() []api.Task {
	return s.Value()
}

// Fetch replaces the entries with the backend's list
func (s *TimelineStore) Fetch(ctx context.Context, email string) error {
	fresh, err := s.Load(ctx, func(ctx context.Context) ([]api.Task, error) {
		return s.client.ListTasks(ctx, email)
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelWarning, "Failed to load timeline")
	}
	return err
}
