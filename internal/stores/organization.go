package stores

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
)

// OrganizationAPI is the part of the backend the organization store calls
type OrganizationAPI interface {
	ListOrganizations(ctx context.Context) ([]api.Organization, error)
	CreateOrganization(ctx context.Context, name, planType string) (*api.Organization, error)
	ListMembers(ctx context.Context, orgID string) ([]api.Member, error)
	AddMember(ctx context.Context, orgID, userID, role string) (*api.MemberChange, error)
	UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*api.MemberChange, error)
	RemoveMember(ctx context.Context, orgID, userID string) (*api.MemberChange, error)
}

// OrganizationStore caches the user's organizations and the members of the
// selected one. Member mutations are not optimistic: the list is refetched
// after each one.
type OrganizationStore struct {
	Orgs    *Resource[[]api.Organization]
	Members *Resource[[]api.Member]

	client   OrganizationAPI
	notifier notify.Notifier

	mu       sync.Mutex
	selected string
}

// NewOrganizationStore creates an empty organization store
func NewOrganizationStore(client OrganizationAPI, notifier notify.Notifier) *OrganizationStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &OrganizationStore{
		Orgs:     NewResource[[]api.Organization]("organizations", cloneSlice[api.Organization]),
		Members:  NewResource[[]api.Member]("members", cloneSlice[api.Member]),
		client:   client,
		notifier: notifier,
	}
}

// SetLogger sets the logger of both resources
func (s *OrganizationStore) SetLogger(logger *log.Logger) {
	s.Orgs.SetLogger(logger)
	s.Members.SetLogger(logger)
}

// Selected is the organization whose members are cached
func (s *OrganizationStore) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Fetch reloads the organization list
func (s *OrganizationStore) Fetch(ctx context.Context) error {
	fresh, err := s.Orgs.Load(ctx, s.client.ListOrganizations)
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load organizations")
	}
	return err
}

// Create creates an organization and refetches the list
func (s *OrganizationStore) Create(ctx context.Context, name, planType string) (*api.Organization, error) {
	org, err := s.client.CreateOrganization(ctx, name, planType)
	if err != nil {
		if !canceled(err) {
			s.notifier.Notify(notify.LevelError, "Failed to create organization")
		}
		return nil, err
	}
	s.notifier.Notify(notify.LevelSuccess, "Organization created")
	return org, s.Fetch(ctx)
}

// Select makes orgID current and loads its members. Members of the
// previously selected organization are dropped first.
func (s *OrganizationStore) Select(ctx context.Context, orgID string) error {
	s.mu.Lock()
	changed := s.selected != orgID
	s.selected = orgID
	s.mu.Unlock()
	if changed {
		s.Members.Reset()
	}
	return s.FetchMembers(ctx)
}

// Reset forgets the organizations, the selection and its members
func (s *OrganizationStore) Reset() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
	s.Orgs.Reset()
	s.Members.Reset()
}

// FetchMembers reloads the members of the selected organization
func (s *OrganizationStore) FetchMembers(ctx context.Context) error {
	orgID := s.Selected()
	if orgID == "" {
		return ErrNoOrganization
	}
	fresh, err := s.Members.Load(ctx, func(ctx context.Context) ([]api.Member, error) {
		return s.client.ListMembers(ctx, orgID)
	})
	if err != nil && fresh && !canceled(err) {
		s.notifier.Notify(notify.LevelError, "Failed to load members")
	}
	return err
}

// AddMember adds userID with role to the selected organization
func (s *OrganizationStore) AddMember(ctx context.Context, userID, role string) error {
	return s.mutateMember(ctx, "Member invited", "Failed to invite member", func(orgID string) error {
		_, err := s.client.AddMember(ctx, orgID, userID, role)
		return err
	})
}

// UpdateRole changes the role of userID in the selected organization
func (s *OrganizationStore) UpdateRole(ctx context.Context, userID, role string) error {
	return s.mutateMember(ctx, "Role updated", "Failed to update role", func(orgID string) error {
		_, err := s.client.UpdateMemberRole(ctx, orgID, userID, role)
		return err
	})
}

// RemoveMember removes userID from the selected organization
func (s *OrganizationStore) RemoveMember(ctx context.Context, userID string) error {
	return s.mutateMember(ctx, "Member removed", "Failed to remove member", func(orgID string) error {
		_, err := s.client.RemoveMember(ctx, orgID, userID)
		return err
	})
}

func (s *OrganizationStore) mutateMember(ctx context.Context, okMsg, failMsg string, op func(orgID string) error) error {
	orgID := s.Selected()
	if orgID == "" {
		return ErrNoOrganization
	}
	if err := op(orgID); err != nil {
		if !canceled(err) {
			s.notifier.Notify(notify.LevelError, detailOr(err, failMsg))
		}
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, okMsg)
	return s.FetchMembers(ctx)
}

// detailOr prefers the backend's explanation over a generic message
func detailOr(err error, fallback string) string {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) && strings.TrimSpace(httpErr.Detail) != "" {
		return httpErr.Detail
	}
	return fallback
}
