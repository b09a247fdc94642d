package stores

import (
	"context"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// CalendarAPI is the part of the backend the calendar store calls
type CalendarAPI interface {
	CalendarEvents(ctx context.Context, email string, days, limit int) ([]api.CalendarEvent, error)
}

// CalendarStore caches upcoming events and tasks
type CalendarStore struct {
	*Resource[[]api.CalendarEvent]

	client   CalendarAPI
	notifier notify.Notifier
	days     int
	limit    int
}

// NewCalendarStore creates an empty calendar store with the window used by Fetch
func NewCalendarStore(client CalendarAPI, notifier notify.Notifier, days, limit int) *CalendarStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &CalendarStore{
		Resource: NewResource[[]api.CalendarEvent]("calendar", cloneSlice[api.CalendarEvent]),
		client:   client,
		notifier: notifier,
		days:     days,
		limit:    limit,
	}
}

// Events returns a copy of the cached events
func (s *CalendarStore) Events() []api.CalendarEvent {
	return s.Value()
}

// Fetch reloads the events of the configured window
func (s *CalendarStore) Fetch(ctx context.Context, email string) error {
	fresh, err := s.Load(ctx, func(ctx context.Context) ([]api.CalendarEvent, error) {
		return s.client.CalendarEvents(ctx, email, s.days, s.limit)
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load calendar")
	}
	return err
}
