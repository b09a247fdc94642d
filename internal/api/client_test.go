package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/api/apitest"
	"github.com/ajramos/kyra/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ada = auth.Identity{UserID: "u-1", Email: "ada@example.com", DisplayName: "Ada"}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func newTestClient(t *testing.T) (*api.Client, *auth.SessionStore, *apitest.Backend) {
	t.Helper()
	backend := apitest.NewBackend(t)
	session := auth.NewSessionStore(nil)
	client, err := api.NewClient(backend.URL(), 5*time.Second, session)
	require.NoError(t, err)
	return client, session, backend
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "://bad"} {
		_, err := api.NewClient(raw, time.Second, nil)
		assert.Error(t, err, raw)
	}
}

func TestClient_AttachesBearerToken(t *testing.T) {
	client, session, backend := newTestClient(t)
	ctx := context.Background()

	_, err := client.DashboardStats(ctx, "ada@example.com")
	require.NoError(t, err)

	session.Login(ada, "tok-1")
	_, err = client.DashboardStats(ctx, "ada@example.com")
	require.NoError(t, err)

	reqs := backend.RequestsFor(apitest.RouteStats)
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Auth)
	assert.Equal(t, "Bearer tok-1", reqs[1].Auth)
	assert.Equal(t, "ada@example.com", reqs[1].Query.Get("email"))
}

func TestClient_TokenFixedAtDispatch(t *testing.T) {
	client, session, backend := newTestClient(t)
	session.Login(ada, "old-token")

	entered := make(chan struct{})
	release := make(chan struct{})
	backend.Hook(apitest.RouteTasks, func(*http.Request) {
		close(entered)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := client.ListTasks(context.Background(), "ada@example.com")
		done <- err
	}()

	<-entered
	session.Login(ada, "new-token")
	close(release)
	require.NoError(t, <-done)

	reqs := backend.RequestsFor(apitest.RouteTasks)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer old-token", reqs[0].Auth)
}

func TestClient_UnauthorizedLogsOutAndRedirects(t *testing.T) {
	client, session, backend := newTestClient(t)
	nav := &recordingNavigator{}
	client.SetNavigator(nav, "/auth/login")

	session.Login(ada, "expired")
	backend.SetValidToken("fresh")

	_, err := client.ListMessages(context.Background(), api.CategoryAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.False(t, api.IsRetryableError(err))
	assert.True(t, api.IsPermanentError(err))

	assert.False(t, session.IsAuthenticated())
	assert.Equal(t, []string{"/auth/login"}, nav.Paths())

	// logged out: the next request carries no token
	_, err = client.ListMessages(context.Background(), api.CategoryAll)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	reqs := backend.RequestsFor(apitest.RouteMessages)
	assert.Empty(t, reqs[len(reqs)-1].Auth)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		target    error
		retryable bool
	}{
		{"bad_request", http.StatusBadRequest, api.ErrValidation, false},
		{"forbidden", http.StatusForbidden, api.ErrValidation, false},
		{"not_found", http.StatusNotFound, api.ErrNotFound, false},
		{"unprocessable", http.StatusUnprocessableEntity, api.ErrValidation, false},
		{"internal", http.StatusInternalServerError, api.ErrServer, true},
		{"bad_gateway", http.StatusBadGateway, api.ErrServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, session, backend := newTestClient(t)
			session.Login(ada, "tok")
			backend.Fail(apitest.RouteDigestLatest, tt.status, "boom "+tt.name)

			_, err := client.LatestDigest(context.Background(), "ada@example.com")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.NotErrorIs(t, err, api.ErrUnauthorized)
			assert.Equal(t, tt.retryable, api.IsRetryableError(err))

			var httpErr *api.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "boom "+tt.name, httpErr.Detail)
			assert.Equal(t, "/digest/latest", httpErr.Path)

			// other statuses leave the session alone
			assert.True(t, session.IsAuthenticated())
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/v1"
	srv.Close()

	session := auth.NewSessionStore(nil)
	session.Login(ada, "tok")
	client, err := api.NewClient(url, time.Second, session)
	require.NoError(t, err)

	err = client.SyncGmail(context.Background(), "ada@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.True(t, api.IsRetryableError(err))
	assert.True(t, session.IsAuthenticated())
}

func TestClient_ContextCanceled(t *testing.T) {
	client, _, backend := newTestClient(t)
	release := make(chan struct{})
	defer close(release)
	backend.Hook(apitest.RouteSync, func(*http.Request) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.SyncGmail(ctx, "ada@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, api.ErrNetwork)
}

func TestClient_ValidationDetailList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","prompt"],"msg":"field required"}]}`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = client.Draft(context.Background(), api.DraftRequest{})
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Contains(t, httpErr.Detail, "field required")
}

func TestClient_MirrorSessionCookie(t *testing.T) {
	client, session, backend := newTestClient(t)
	session.Subscribe(client.MirrorSession)

	session.Login(ada, "cookie-tok")
	require.Len(t, client.Cookies(), 1)
	assert.Equal(t, "cookie-tok", client.Cookies()[0].Value)

	_, err := client.ListOrganizations(context.Background())
	require.NoError(t, err)
	reqs := backend.RequestsFor(apitest.RouteOrgsList)
	require.Len(t, reqs, 1)
	assert.Equal(t, "cookie-tok", reqs[0].Cookie)

	session.Logout()
	assert.Empty(t, client.Cookies())
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = client.DashboardStats(context.Background(), "a@b.c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode GET /dashboard/stats")
}

func TestHTTPError_Message(t *testing.T) {
	err := &api.HTTPError{Method: "GET", Path: "/tasks", StatusCode: 404, Detail: "User not found"}
	assert.Equal(t, "GET /tasks: 404 Not Found: User not found", err.Error())

}
