package api_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/api/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail_PriorityTier(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, api.PriorityNormal},
		{50, api.PriorityNormal},
		{51, api.PriorityHigh},
		{80, api.PriorityHigh},
		{80.5, api.PriorityUrgent},
		{81, api.PriorityUrgent},
		{100, api.PriorityUrgent},
	}

	for _, tt := range tests {
		e := api.Email{PriorityScore: tt.score}
		assert.Equal(t, tt.want, e.PriorityTier(), "score %v", tt.score)
	}
}

func TestEmail_PriorityTierFollowsScore(t *testing.T) {
	e := api.Email{PriorityScore: 90}
	assert.Equal(t, api.PriorityUrgent, e.PriorityTier())
	e.PriorityScore = 10
	assert.Equal(t, api.PriorityNormal, e.PriorityTier())
}

func TestEmail_DecodesBackendShape(t *testing.T) {
	raw := `{"id":"e1","gmail_id":"g1","thread_id":"t1","subject":"Hi","from":"bob@x.io",
		"snippet":"hello","timestamp":"2025-01-02T10:00:00","isRead":false,"labels":["Work"],"score":72,"summary":"short"}`
	var e api.Email
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "bob@x.io", e.Sender)
	assert.Equal(t, 72.0, e.PriorityScore)
	assert.Equal(t, 2025, e.ReceivedAt().Year())
	assert.Equal(t, api.PriorityHigh, e.PriorityTier())
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2025-03-01T08:30:00+00:00", "2025-03-01T08:30:00.123456", "2025-03-01T08:30:00Z", "2025-03-01"} {
		assert.False(t, api.ParseTime(s).IsZero(), s)
	}
	assert.True(t, api.ParseTime("No due date").IsZero())
	assert.True(t, api.ParseTime("").IsZero())
}

func TestListMessages_CategoryParam(t *testing.T) {
	client, _, backend := newTestClient(t)
	ctx := context.Background()
	backend.SetEmails(api.CategoryAll, []api.Email{{ID: "1"}, {ID: "2"}})
	backend.SetEmails("Urgent", nil)

	all, err := client.ListMessages(ctx, api.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	urgent, err := client.ListMessages(ctx, "Urgent")
	require.NoError(t, err)
	assert.NotNil(t, urgent)
	assert.Empty(t, urgent)

	reqs := backend.RequestsFor(apitest.RouteMessages)
	require.Len(t, reqs, 2)
	_, sent := reqs[0].Query["category"]
	assert.False(t, sent)
	assert.Equal(t, "Urgent", reqs[1].Query.Get("category"))
}

func TestGetMessage(t *testing.T) {
	client, _, backend := newTestClient(t)
	backend.SetEmails(api.CategoryAll, []api.Email{{ID: "e1", GmailID: "g1", Subject: "Hello"}})

	msg, err := client.GetMessage(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Subject)

	_, err = client.GetMessage(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestDigestEndpoints(t *testing.T) {
	client, _, backend := newTestClient(t)
	ctx := context.Background()

	latest, err := client.LatestDigest(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, latest.Found)

	gen, err := client.GenerateDigest(ctx, "u-1", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Digest for ada@example.com", gen.Content)

	latest, err = client.LatestDigest(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, latest.Found)
	assert.Equal(t, gen.Content, latest.Content)

	// failures reported inside a 200 body
	_, err = client.GenerateDigest(ctx, "", "")
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Len(t, backend.RequestsFor(apitest.RouteDigestGenerate), 2)
}

func TestChat_ConversationIDEncoding(t *testing.T) {
	client, _, backend := newTestClient(t)
	ctx := context.Background()

	resp, err := client.Chat(ctx, api.ChatRequest{Query: "hi", UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "echo: hi", resp.Response)

	id := resp.ConversationID
	_, err = client.Chat(ctx, api.ChatRequest{Query: "again", ConversationID: &id, UserID: "u-1"})
	require.NoError(t, err)

	reqs := backend.RequestsFor(apitest.RouteChat)
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"query":"hi","conversation_id":null,"user_id":"u-1"}`, string(reqs[0].Body))
	assert.JSONEq(t, `{"query":"again","conversation_id":"conv-1","user_id":"u-1"}`, string(reqs[1].Body))
}

func TestDraftAndSend(t *testing.T) {
	client, _, backend := newTestClient(t)
	ctx := context.Background()

	draft, err := client.Draft(ctx, api.DraftRequest{Prompt: "say yes", Tone: "Friendly", EmailAddress: "ada@example.com", ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "[Friendly] say yes", draft.DraftBody)
	assert.Equal(t, "t1", draft.ThreadID)

	sent, err := client.Send(ctx, api.SendRequest{EmailAddress: "ada@example.com", Recipient: "bob@x.io", Subject: "Re", Body: draft.DraftBody})
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Status)

	_, err = client.Send(ctx, api.SendRequest{EmailAddress: "ada@example.com"})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Len(t, backend.RequestsFor(apitest.RouteSend), 2)
}

func TestCalendarEvents_Params(t *testing.T) {
	client, _, backend := newTestClient(t)
	backend.Events = []api.CalendarEvent{{ID: "1", Title: "Standup"}, {ID: "2"}, {ID: "3"}}

	events, err := client.CalendarEvents(context.Background(), "ada@example.com", 3, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	req := backend.RequestsFor(apitest.RouteEvents)[0]
	assert.Equal(t, "3", req.Query.Get("days"))
	assert.Equal(t, "2", req.Query.Get("limit"))
}

func TestOrganizationEndpoints(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	org, err := client.CreateOrganization(ctx, "Acme", "")
	require.NoError(t, err)
	assert.Equal(t, "owner", org.Role)
	assert.Equal(t, "free", org.PlanType)

	orgs, err := client.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 1)

	_, err = client.AddMember(ctx, org.ID, "u-2", "member")
	require.NoError(t, err)
	change, err := client.UpdateMemberRole(ctx, org.ID, "u-2", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", change.NewRole)

	members, err := client.ListMembers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "admin", members[0].Role)

	_, err = client.RemoveMember(ctx, org.ID, "u-2")
	require.NoError(t, err)
	_, err = client.RemoveMember(ctx, org.ID, "u-2")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestLogInteraction(t *testing.T) {
	client, _, backend := newTestClient(t)

	in, err := client.LogInteraction(context.Background(), "e1", api.ActionArchive)
	require.NoError(t, err)
	assert.Equal(t, "archive", in.Action)
	assert.Equal(t, "e1", in.EmailID)

	_, err = client.LogInteraction(context.Background(), "e1", "delete")
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Len(t, backend.Interactions(), 1)
}
