package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func emailQuery(email string) url.Values {
	return url.Values{"email": {email}}
}

// DashboardStats fetches the landing-screen counters
func (c *Client) DashboardStats(ctx context.Context, email string) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.Do(ctx, http.MethodGet, "/dashboard/stats", nil, emailQuery(email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages lists inbox rows. CategoryAll or "" sends no category filter.
func (c *Client) ListMessages(ctx context.Context, category string) ([]Email, error) {
	q := url.Values{}
	if category != "" && category != CategoryAll {
		q.Set("category", category)
	}
	var out []Email
	if err := c.Do(ctx, http.MethodGet, "/gmail/messages", nil, q, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Email{}
	}
	return out, nil
}

// GetMessage fetches one email by internal or Gmail id
func (c *Client) GetMessage(ctx context.Context, id string) (*MessageDetail, error) {
	var out MessageDetail
	if err := c.Do(ctx, http.MethodGet, "/gmail/messages/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncGmail asks the backend to pull new mail for the account
func (c *Client) SyncGmail(ctx context.Context, email string) error {
	return c.Do(ctx, http.MethodGet, "/gmail/sync", nil, emailQuery(email), nil)
}

// Draft generates a reply body
func (c *Client) Draft(ctx context.Context, req DraftRequest) (*DraftResponse, error) {
	var out DraftResponse
	if err := c.Do(ctx, http.MethodPost, "/gmail/draft", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send sends an email
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	var out SendResponse
	if err := c.Do(ctx, http.MethodPost, "/gmail/send", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalendarEvents lists upcoming events and tasks, soonest first
func (c *Client) CalendarEvents(ctx context.Context, email string, days, limit int) ([]CalendarEvent, error) {
	q := emailQuery(email)
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []CalendarEvent
	if err := c.Do(ctx, http.MethodGet, "/calendar/events", nil, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestDigest fetches the most recent digest; Found is false when none exists
func (c *Client) LatestDigest(ctx context.Context, email string) (*LatestDigest, error) {
	var out LatestDigest
	if err := c.Do(ctx, http.MethodGet, "/digest/latest", nil, emailQuery(email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateDigest creates a new digest. The backend reports some failures in
// a 200 body; those are returned as ErrServer.
func (c *Client) GenerateDigest(ctx context.Context, userID, email string) (*GeneratedDigest, error) {
	body := map[string]string{"user_id": userID, "email": email}
	var out GeneratedDigest
	if err := c.Do(ctx, http.MethodPost, "/digest/generate", body, nil, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: generate digest: %s", ErrServer, out.Error)
	}
	return &out, nil
}

// Chat sends one message to the assistant
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.Do(ctx, http.MethodPost, "/chat", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks lists timeline entries
func (c *Client) ListTasks(ctx context.Context, email string) ([]Task, error) {
	var out []Task
	if err := c.Do(ctx, http.MethodGet, "/tasks", nil, emailQuery(email), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Task{}
	}
	return out, nil
}

// ListOrganizations lists the organizations of the current user
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var out []Organization
	if err := c.Do(ctx, http.MethodGet, "/organizations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrganization creates an organization owned by the current user
func (c *Client) CreateOrganization(ctx context.Context, name, planType string) (*Organization, error) {
	if planType == "" {
		planType = "free"
	}
	body := map[string]string{"name": name, "plan_type": planType}
	var out Organization
	if err := c.Do(ctx, http.MethodPost, "/organizations", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func membersPath(orgID string) string {
	return "/organizations/" + url.PathEscape(orgID) + "/members"
}

// ListMembers lists the members of an organization
func (c *Client) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	var out []Member
	if err := c.Do(ctx, http.MethodGet, membersPath(orgID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember adds an existing user to an organization
func (c *Client) AddMember(ctx context.Context, orgID, userID, role string) (*MemberChange, error) {
	body := map[string]string{"user_id": userID, "role": role}
	var out MemberChange
	if err := c.Do(ctx, http.MethodPost, membersPath(orgID), body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMemberRole changes a member's role
func (c *Client) UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*MemberChange, error) {
	body := map[string]string{"role": role}
	var out MemberChange
	if err := c.Do(ctx, http.MethodPatch, membersPath(orgID)+"/"+url.PathEscape(userID), body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMember removes a member from an organization
func (c *Client) RemoveMember(ctx context.Context, orgID, userID string) (*MemberChange, error) {
	var out MemberChange
	if err := c.Do(ctx, http.MethodDelete, membersPath(orgID)+"/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogInteraction records open, reply, archive or star on an email
func (c *Client) LogInteraction(ctx context.Context, emailID, action string) (*Interaction, error) {
	switch action {
	case ActionOpen, ActionReply, ActionArchive, ActionStar:
	default:
		return nil, fmt.Errorf("%w: unknown interaction %q", ErrValidation, action)
	}
	body := map[string]string{"action": action}
	var out Interaction
	if err := c.Do(ctx, http.MethodPost, "/emails/"+url.PathEscape(emailID)+"/interaction", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
