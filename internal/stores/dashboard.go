package stores

import (
	"context"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// DashboardAPI is the part of the backend the dashboard store calls
type DashboardAPI interface {
	DashboardStats(ctx context.Context, email string) (*api.DashboardStats, error)
}

// DashboardStore caches the landing-screen counters
type DashboardStore struct {
	*Resource[api.DashboardStats]

	client   DashboardAPI
	notifier notify.Notifier
}

// NewDashboardStore creates an empty dashboard store
func NewDashboardStore(client DashboardAPI, notifier notify.Notifier) *DashboardStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &DashboardStore{
		Resource: NewResource[api.DashboardStats]("dashboard", nil),
		client:   client,
		notifier: notifier,
	}
}

// Stats returns the cached counters
func (s *DashboardStore) Stats() api.DashboardStats {
	return s.Value()
}

// Fetch reloads the counters
func (s *DashboardStore) Fetch(ctx context.Context, email string) error {
	fresh, err := s.Load(ctx, func(ctx context.Context) (api.DashboardStats, error) {
		stats, err := s.client.DashboardStats(ctx, email)
		if err != nil {
			return api.DashboardStats{}, err
		}
		return *stats, nil
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load dashboard")
	}
	return err
}
