package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/api/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const loginCallback = "http://localhost:8765/auth/callback?token=tok-1&email=ann@example.com&user_id=u-1&name=Ann"

// setupEnv points every path at a temp dir and the API at a fake backend
func setupEnv(t *testing.T) *apitest.Backend {
	t.Helper()
	dir := t.TempDir()
	backend := apitest.NewBackend(t)
	t.Setenv("KYRA_CONFIG", filepath.Join(dir, "config.json"))
	t.Setenv("KYRA_DB", filepath.Join(dir, "kyra.sqlite3"))
	t.Setenv("KYRA_LOG_FILE", filepath.Join(dir, "kyra.log"))
	t.Setenv("KYRA_API_URL", backend.URL())
	t.Setenv("KYRA_LOGIN_URL", "")
	return backend
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func login(t *testing.T) {
	t.Helper()
	_, _, err := runCLI(t, "", "login", "--callback-url", loginCallback)
	require.NoError(t, err)
}

func TestGetConfigPath_Priority(t *testing.T) {
	t.Setenv("KYRA_CONFIG", "/env/config.json")

	// flag wins
	assert.Equal(t, "/custom/config.json", getConfigPath("/custom/config.json"))

	// then env
	assert.Equal(t, "/env/config.json", getConfigPath(""))

	// then default
	t.Setenv("KYRA_CONFIG", "")
	assert.True(t, strings.HasSuffix(getConfigPath(""), filepath.Join("kyra", "config.json")))
}

func TestGetConfigPath_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	assert.Equal(t, filepath.Join(home, "kyra.json"), getConfigPath("~/kyra.json"))
}

func TestGetLogPath(t *testing.T) {
	assert.Equal(t, "/var/log/kyra.log", getLogPath("/var/log/kyra.log"))
	assert.True(t, strings.HasSuffix(getLogPath(""), "kyra.log"))
}

func TestRootCommand_Tree(t *testing.T) {
	root := newRootCmd(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{
		"login", "logout", "whoami", "dashboard", "inbox", "show", "sync",
		"archive", "read", "delete", "draft", "send", "chat", "digest",
		"timeline", "calendar", "stats", "orgs", "guard", "config", "version",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Kyra")
	assert.Contains(t, out, "Platform:")
}

func TestConfigInitAndShow(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, _, err := runCLI(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, _, err = runCLI(t, "", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, _, err = runCLI(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	// env overrides apply on top of the file
	assert.Contains(t, out, os.Getenv("KYRA_API_URL"))
}

func TestProtectedCommands_RequireLogin(t *testing.T) {
	backend := setupEnv(t)

	for _, args := range [][]string{
		{"inbox"},
		{"sync"},
		{"chat", "hello"},
		{"timeline"},
		{"digest"},
		{"orgs"},
		{"dashboard"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := runCLI(t, "", args...)
			assert.ErrorIs(t, err, errLoginRequired)
		})
	}
	assert.Empty(t, backend.Requests())
}

func TestLogin_CallbackURL(t *testing.T) {
	setupEnv(t)

	out, errOut, err := runCLI(t, "", "login", "--callback-url", loginCallback)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ann (ann@example.com)")
	assert.Contains(t, out, "Welcome to Kyra")
	assert.Contains(t, errOut, "Login successful")

	// onboarding is shown once and the session survives the process
	out, _, err = runCLI(t, "", "login", "--callback-url", loginCallback)
	require.NoError(t, err)
	assert.Contains(t, out, "Already logged in as ann@example.com")

	out, _, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ann <ann@example.com> (user u-1)\n", out)
}

func TestLogin_InvalidCallback(t *testing.T) {
	setupEnv(t)

	_, _, err := runCLI(t, "", "login", "--callback-url", "http://localhost/auth/callback?email=ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token, user_id")
}

func TestLogout(t *testing.T) {
	setupEnv(t)
	login(t)

	out, _, err := runCLI(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, _, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", out)

	// logging in again shows onboarding again
	out, _, err = runCLI(t, "", "login", "--callback-url", loginCallback)
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome to Kyra")
}

func TestInbox_FetchThenOffline(t *testing.T) {
	backend := setupEnv(t)
	backend.SetEmails(api.CategoryAll, []api.Email{
		{ID: "e1", Sender: "Bob <bob@example.com>", Subject: "Quarterly report", PriorityScore: 90},
		{ID: "e2", Sender: "Carol <carol@example.com>", Subject: "Lunch?", IsRead: true},
	})
	login(t)

	out, _, err := runCLI(t, "", "inbox")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly report")
	assert.Contains(t, out, "Lunch?")

	reqs := backend.RequestsFor(apitest.RouteMessages)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok-1", reqs[0].Auth)
	// All is never sent as a filter
	assert.Empty(t, reqs[0].Query.Get("category"))

	out, _, err = runCLI(t, "", "--offline", "inbox")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly report")
	assert.Len(t, backend.RequestsFor(apitest.RouteMessages), 1)
}

func TestInbox_Category(t *testing.T) {
	backend := setupEnv(t)
	backend.SetEmails("Work", []api.Email{{ID: "w1", Subject: "Standup notes"}})
	login(t)

	out, _, err := runCLI(t, "", "inbox", "--category", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "Standup notes")

	reqs := backend.RequestsFor(apitest.RouteMessages)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Work", reqs[0].Query.Get("category"))
}

func TestArchive(t *testing.T) {
	backend := setupEnv(t)
	backend.SetEmails(api.CategoryAll, []api.Email{{ID: "e1", Subject: "Old news"}})
	login(t)

	out, _, err := runCLI(t, "", "archive", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived: Old news")

	interactions := backend.Interactions()
	require.Len(t, interactions, 1)
	assert.Equal(t, "e1", interactions[0].EmailID)
	assert.Equal(t, api.ActionArchive, interactions[0].Action)

	_, _, err = runCLI(t, "", "archive", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the inbox")
}

func TestArchive_BackendFailure(t *testing.T) {
	backend := setupEnv(t)
	backend.SetEmails(api.CategoryAll, []api.Email{{ID: "e1", Subject: "Old news"}})
	backend.Fail(apitest.RouteInteraction, 500, "boom")
	login(t)

	_, errOut, err := runCLI(t, "", "archive", "e1")
	require.Error(t, err)
	assert.Contains(t, errOut, "Failed to archive email")
}

func TestChat_OneShotAndLoop(t *testing.T) {
	backend := setupEnv(t)
	login(t)

	out, _, err := runCLI(t, "", "chat", "what", "is", "urgent?")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: what is urgent?")
	assert.Contains(t, out, "> matched what is urgent?")

	out, _, err = runCLI(t, "first\nsecond\n/reset\nthird\n/quit\nignored\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: first")
	assert.Contains(t, out, "echo: second")
	assert.Contains(t, out, "Started a new conversation")
	assert.NotContains(t, out, "echo: ignored")

	reqs := backend.RequestsFor(apitest.RouteChat)
	require.Len(t, reqs, 4)
	assert.Contains(t, string(reqs[1].Body), `"conversation_id":null`)
	assert.Contains(t, string(reqs[2].Body), `"conversation_id":"conv-2"`)
	// reset starts a fresh conversation
	assert.Contains(t, string(reqs[3].Body), `"conversation_id":null`)
}

func TestChat_LoopStopsWhenSessionEnds(t *testing.T) {
	backend := setupEnv(t)
	login(t)
	backend.SetValidToken("rotated")

	out, errOut, err := runCLI(t, "first\nsecond\nthird\n", "chat")
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Contains(t, errOut, "Your session has expired")
	assert.NotContains(t, out, "echo:")
	assert.Len(t, backend.RequestsFor(apitest.RouteChat), 1)
}

func TestChat_LoopKeepsGoingAfterServerError(t *testing.T) {
	backend := setupEnv(t)
	login(t)
	backend.Fail(apitest.RouteChat, 500, "boom")

	out, errOut, err := runCLI(t, "first\nsecond\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Couldn't reach Kyra")
	assert.NotContains(t, out, "echo:")
	assert.Len(t, backend.RequestsFor(apitest.RouteChat), 2)
}

func TestDigest(t *testing.T) {
	backend := setupEnv(t)
	login(t)

	out, _, err := runCLI(t, "", "digest")
	require.NoError(t, err)
	assert.Contains(t, out, "No digest generated yet today.")

	out, errOut, err := runCLI(t, "", "digest", "--generate")
	require.NoError(t, err)
	assert.Contains(t, errOut, "New digest generated")
	assert.Contains(t, out, "Digest for ann@example.com")
	assert.Len(t, backend.RequestsFor(apitest.RouteDigestGenerate), 1)
}

func TestDashboard_PartialFailure(t *testing.T) {
	backend := setupEnv(t)
	backend.SetEmails(api.CategoryAll, []api.Email{{ID: "e1", Subject: "Still here"}})
	backend.Fail(apitest.RouteTasks, 500, "boom")
	login(t)

	out, _, err := runCLI(t, "", "dashboard")
	require.Error(t, err)
	assert.Contains(t, out, "== Stats")
	assert.Contains(t, out, "Still here")
	assert.Contains(t, out, "Nothing scheduled")
}

func TestOrgs_SelectAndManageMembers(t *testing.T) {
	backend := setupEnv(t)
	login(t)

	out, _, err := runCLI(t, "", "orgs", "create", "Acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Created Acme (org-1)")

	_, _, err = runCLI(t, "", "orgs", "members")
	assert.Error(t, err)

	_, _, err = runCLI(t, "", "orgs", "use", "org-1")
	require.NoError(t, err)

	out, errOut, err := runCLI(t, "", "orgs", "members", "add", "u-2", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Member invited")
	assert.Contains(t, out, "u-2@example.com")

	out, _, err = runCLI(t, "", "orgs")
	require.NoError(t, err)
	assert.Contains(t, out, "* org-1")

	_, errOut, err = runCLI(t, "", "orgs", "members", "remove", "nobody")
	require.Error(t, err)
	assert.Contains(t, errOut, "User is not a member of this organization")
	assert.NotEmpty(t, backend.RequestsFor(apitest.RouteMembersRemove))
}

func TestGuardCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := runCLI(t, "", "guard", "/mail", "/auth/login", "/about")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect /auth/login?from=%2Fmail")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "allow")
	assert.Contains(t, lines[2], "public")

	login(t)
	out, _, err = runCLI(t, "", "guard", "/mail", "/auth/login")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "allow")
	assert.Contains(t, lines[1], "redirect /app/dashboard")
}

func TestUnauthorized_EndsSession(t *testing.T) {
	backend := setupEnv(t)
	login(t)
	backend.SetValidToken("rotated")

	_, errOut, err := runCLI(t, "", "inbox")
	require.Error(t, err)
	assert.Contains(t, errOut, "Your session has expired")

	_, _, err = runCLI(t, "", "inbox")
	assert.ErrorIs(t, err, errLoginRequired)
}

func TestSend_ReadsBodyFromStdin(t *testing.T) {
	backend := setupEnv(t)
	login(t)

	_, _, err := runCLI(t, "", "send", "hi")
	require.Error(t, err)

	out, errOut, err := runCLI(t, "Hello from stdin\n", "send", "--to", "bob@example.com", "-s", "Hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent")
	assert.Contains(t, errOut, "Email sent")

	reqs := backend.RequestsFor(apitest.RouteSend)
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Body), "Hello from stdin")
}
