// Package app wires configuration, persistence, the session, the API client
// and every resource store into one explicitly constructed container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/config"
	"github.com/ajramos/kyra/internal/db"
	"github.com/ajramos/kyra/internal/guard"
	"github.com/ajramos/kyra/internal/notify"
	"github.com/ajramos/kyra/internal/stores"
	"github.com/ajramos/kyra/pkg/auth"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyDraft is returned when a draft or send has no content to work with
var ErrEmptyDraft = errors.New("draft prompt is empty")

// Options configures a Container
type Options struct {
	Config *config.Config
	Logger *log.Logger
	// Navigator is told where to go after a 401; nil ignores redirects
	Navigator api.Navigator
	// Output receives user notifications; nil keeps them in history only
	Output io.Writer
}

// Container owns one client instance. Nothing in it is global.
type Container struct {
	Config *config.Config

	Store     *db.Store
	Prefs     *db.PreferenceStore
	Snapshots *db.SnapshotStore

	Session  *auth.SessionStore
	Client   *api.Client
	Notifier *notify.Center
	Guard    *guard.Guard

	Email     *stores.EmailStore
	Digest    *stores.DigestStore
	Timeline  *stores.TimelineStore
	Chat      *stores.ChatStore
	Dashboard *stores.DashboardStore
	Calendar  *stores.CalendarStore
	Orgs      *stores.OrganizationStore

	logger      *log.Logger
	unsubscribe []func()
}

// New opens the database, restores the persisted session and builds every store
func New(ctx context.Context, opts Options) (*Container, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{Config: cfg, logger: opts.Logger}

	store, err := db.Open(ctx, cfg.GetDBPath())
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	c.Store = store
	c.Prefs = db.NewPreferenceStore(store)
	c.Snapshots = db.NewSnapshotStore(store)
	c.logf("app: database opened at %s", cfg.GetDBPath())

	c.Session = auth.NewSessionStore(db.NewSessionStore(store))
	c.Session.SetLogger(opts.Logger)
	if err := c.Session.Restore(ctx); err != nil {
		c.logf("app: session restore failed: %v", err)
	}
	c.logf("app: session restored, authenticated=%v", c.Session.IsAuthenticated())

	client, err := api.NewClient(cfg.API.BaseURL, cfg.GetAPITimeout(), c.Session)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	client.SetLogger(opts.Logger)
	client.SetNavigator(opts.Navigator, cfg.API.LoginPath)
	client.MirrorSession(c.Session.Snapshot())
	c.Client = client

	c.Notifier = notify.NewCenter(0)
	c.Notifier.SetLogger(opts.Logger)
	if opts.Output != nil {
		c.Notifier.SetOutput(opts.Output)
	}

	c.Guard = guard.New(c.Session)
	c.Guard.SetPaths(cfg.API.LoginPath, "")

	c.initStores()

	c.unsubscribe = append(c.unsubscribe,
		c.Session.Subscribe(client.MirrorSession),
		c.Session.Subscribe(c.onSessionChange),
	)
	return c, nil
}

func (c *Container) initStores() {
	userID := func() string { return c.Session.Snapshot().UserID }

	c.Email = stores.NewEmailStore(c.Client, c.Notifier)
	c.Digest = stores.NewDigestStore(c.Client, c.Notifier)
	c.Timeline = stores.NewTimelineStore(c.Client, c.Notifier)
	c.Chat = stores.NewChatStore(c.Client, c.Notifier, userID)
	c.Dashboard = stores.NewDashboardStore(c.Client, c.Notifier)
	c.Calendar = stores.NewCalendarStore(c.Client, c.Notifier, c.Config.Calendar.Days, c.Config.Calendar.Limit)
	c.Orgs = stores.NewOrganizationStore(c.Client, c.Notifier)

	c.Email.SetLogger(c.logger)
	c.Digest.SetLogger(c.logger)
	c.Timeline.SetLogger(c.logger)
	c.Dashboard.SetLogger(c.logger)
	c.Calendar.SetLogger(c.logger)
	c.Orgs.SetLogger(c.logger)

	if !c.Config.Storage.SnapshotsEnabled {
		c.logf("app: snapshots disabled")
		return
	}
	account := c.accountEmail
	c.Email.SetSnapshots(c.Snapshots, account)
	c.Digest.SetSnapshots(c.Snapshots, account)
	c.Timeline.SetSnapshots(c.Snapshots, account)
	c.Dashboard.SetSnapshots(c.Snapshots, account)
	c.Calendar.SetSnapshots(c.Snapshots, account)
	c.Orgs.Orgs.SetSnapshots(c.Snapshots, account)
	c.logf("app: snapshots enabled")
}

// onSessionChange drops cached data when the session ends, so the next
// account never sees the previous one's inbox.
func (c *Container) onSessionChange(s auth.Session) {
	if s.Authenticated {
		return
	}
	c.Email.Reset()
	c.Digest.Reset()
	c.Timeline.Reset()
	c.Dashboard.Reset()
	c.Calendar.Reset()
	c.Orgs.Reset()
	c.Chat.Reset()
	c.logf("app: session ended, stores cleared")
}

func (c *Container) accountEmail() string {
	return c.Session.Snapshot().Email
}

// Login establishes the session delivered by the auth redirect
func (c *Container) Login(cb auth.Callback) {
	c.Session.Login(cb.Identity, cb.Token)
	c.Notifier.Notify(notify.LevelSuccess, "Login successful")
}

// Logout ends the session and forgets the onboarding flag and the
// account's cached responses. It is safe to call when logged out.
func (c *Container) Logout(ctx context.Context) error {
	account := c.accountEmail()
	c.Session.Logout()

	var errs []error
	if err := c.Prefs.Delete(ctx, db.PrefOnboardingComplete); err != nil {
		errs = append(errs, fmt.Errorf("clear onboarding flag: %w", err))
	}
	if account != "" {
		if err := c.Snapshots.ClearAccount(ctx, account); err != nil {
			errs = append(errs, fmt.Errorf("clear snapshots: %w", err))
		}
	}
	return errors.Join(errs...)
}

// OnboardingComplete reports the persisted onboarding flag
func (c *Container) OnboardingComplete(ctx context.Context) (bool, error) {
	return c.Prefs.OnboardingComplete(ctx)
}

// CompleteOnboarding persists the onboarding flag
func (c *Container) CompleteOnboarding(ctx context.Context) error {
	return c.Prefs.SetOnboardingComplete(ctx, true)
}

// Hydrate fills stores from the last persisted responses of the current account
func (c *Container) Hydrate(ctx context.Context) error {
	if !c.Config.Storage.SnapshotsEnabled || !c.Session.IsAuthenticated() {
		return nil
	}
	hydrators := []interface {
		Name() string
		Hydrate(context.Context) (bool, error)
	}{c.Email, c.Digest, c.Timeline, c.Dashboard, c.Calendar, c.Orgs.Orgs}

	var errs []error
	for _, h := range hydrators {
		ok, err := h.Hydrate(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("hydrate %s: %w", h.Name(), err))
			continue
		}
		if ok {
			c.logf("app: hydrated %s from snapshot", h.Name())
		}
	}
	return errors.Join(errs...)
}

// Refresh loads the landing data concurrently. A failing resource does not
// cancel the others; the first error is returned.
func (c *Container) Refresh(ctx context.Context) error {
	s := c.Session.Snapshot()
	if !s.Authenticated {
		return auth.ErrNoSession
	}

	var g errgroup.Group
	g.Go(func() error { return c.Dashboard.Fetch(ctx, s.Email) })
	g.Go(func() error { return c.Digest.FetchLatest(ctx, s.Email) })
	g.Go(func() error { return c.Timeline.Fetch(ctx, s.Email) })
	g.Go(func() error { return c.Email.Fetch(ctx, c.Email.SelectedCategory()) })
	g.Go(func() error { return c.Calendar.Fetch(ctx, s.Email) })
	return g.Wait()
}

// Sync triggers a Gmail sync for the current account, then refetches the inbox
func (c *Container) Sync(ctx context.Context) error {
	s := c.Session.Snapshot()
	if !s.Authenticated {
		return auth.ErrNoSession
	}
	return c.Email.Sync(ctx, s.Email)
}

// GenerateDigest asks for a fresh digest for the current account
func (c *Container) GenerateDigest(ctx context.Context) error {
	s := c.Session.Snapshot()
	if !s.Authenticated {
		return auth.ErrNoSession
	}
	return c.Digest.Generate(ctx, s.UserID, s.Email)
}

// Draft asks the assistant to write a reply. An empty tone uses the configured one.
func (c *Container) Draft(ctx context.Context, prompt, threadID, tone string) (*api.DraftResponse, error) {
	s := c.Session.Snapshot()
	if !s.Authenticated {
		return nil, auth.ErrNoSession
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyDraft
	}
	if tone == "" {
		tone = c.Config.Draft.Tone
	}
	resp, err := c.Client.Draft(ctx, api.DraftRequest{
		ThreadID:     threadID,
		Prompt:       prompt,
		Tone:         tone,
		EmailAddress: s.Email,
	})
	if err != nil {
		c.Notifier.HandleError(err, "Failed to generate draft")
		return nil, err
	}
	return resp, nil
}

// Send sends a message from the current account
func (c *Container) Send(ctx context.Context, to, subject, body, threadID string) (*api.SendResponse, error) {
	s := c.Session.Snapshot()
	if !s.Authenticated {
		return nil, auth.ErrNoSession
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyDraft
	}
	resp, err := c.Client.Send(ctx, api.SendRequest{
		EmailAddress: s.Email,
		Recipient:    to,
		Subject:      subject,
		Body:         body,
		ThreadID:     threadID,
	})
	if err != nil {
		c.Notifier.HandleError(err, "Failed to send email")
		return nil, err
	}
	c.Notifier.Notify(notify.LevelSuccess, "Email sent")
	return resp, nil
}

// Close releases subscriptions and the database
func (c *Container) Close() error {
	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil
	return c.Store.Close()
}

func (c *Container) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
