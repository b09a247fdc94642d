// Package apitest provides an in-process fake of the Kyra backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/kyra/internal/api"
	"github.com/gorilla/mux"
)

// Route names usable with Fail and Hook
const (
	RouteStats          = "stats"
	RouteMessages       = "messages"
	RouteMessage        = "message"
	RouteSync           = "sync"
	RouteDraft          = "draft"
	RouteSend           = "send"
	RouteEvents         = "events"
	RouteDigestLatest   = "digest_latest"
	RouteDigestGenerate = "digest_generate"
	RouteChat           = "chat"
	RouteTasks          = "tasks"
	RouteOrgsList       = "orgs_list"
	RouteOrgsCreate     = "orgs_create"
	RouteMembersList    = "members_list"
	RouteMembersAdd     = "members_add"
	RouteMembersUpdate  = "members_update"
	RouteMembersRemove  = "members_remove"
	RouteInteraction    = "interaction"
)

// Request is a recorded call
type Request struct {
	Route  string
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Cookie string
	Body   []byte
}

type failure struct {
	status int
	detail string
}

// Backend serves the /api/v1 surface from in-memory state
type Backend struct {
	server *httptest.Server

	mu sync.Mutex
	// Emails by category; CategoryAll holds the unfiltered list
	Emails map[string][]api.Email
	Stats  api.DashboardStats
	// Digest is the latest digest; nil means none generated yet
	Digest  *string
	Tasks   []api.Task
	Events  []api.CalendarEvent
	Orgs    []api.Organization
	Members map[string][]api.Member
	// ValidToken, when set, makes every other bearer token a 401
	ValidToken string

	requests     []Request
	failures     map[string]failure
	hooks        map[string]func(*http.Request)
	conversation int
	interactions []api.Interaction
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t testing.TB) *Backend {
	b := &Backend{
		Emails:   map[string][]api.Email{},
		Members:  map[string][]api.Member{},
		failures: map[string]failure{},
		hooks:    map[string]func(*http.Request){},
	}

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(b.record)
	v1.HandleFunc("/dashboard/stats", b.handleStats).Methods(http.MethodGet).Name(RouteStats)
	v1.HandleFunc("/gmail/messages", b.handleMessages).Methods(http.MethodGet).Name(RouteMessages)
	v1.HandleFunc("/gmail/messages/{id}", b.handleMessage).Methods(http.MethodGet).Name(RouteMessage)
	v1.HandleFunc("/gmail/sync", b.handleOK).Methods(http.MethodGet).Name(RouteSync)
	v1.HandleFunc("/gmail/draft", b.handleDraft).Methods(http.MethodPost).Name(RouteDraft)
	v1.HandleFunc("/gmail/send", b.handleSend).Methods(http.MethodPost).Name(RouteSend)
	v1.HandleFunc("/calendar/events", b.handleEvents).Methods(http.MethodGet).Name(RouteEvents)
	v1.HandleFunc("/digest/latest", b.handleDigestLatest).Methods(http.MethodGet).Name(RouteDigestLatest)
	v1.HandleFunc("/digest/generate", b.handleDigestGenerate).Methods(http.MethodPost).Name(RouteDigestGenerate)
	v1.HandleFunc("/chat", b.handleChat).Methods(http.MethodPost).Name(RouteChat)
	v1.HandleFunc("/tasks", b.handleTasks).Methods(http.MethodGet).Name(RouteTasks)
	v1.HandleFunc("/organizations", b.handleOrgsList).Methods(http.MethodGet).Name(RouteOrgsList)
	v1.HandleFunc("/organizations", b.handleOrgsCreate).Methods(http.MethodPost).Name(RouteOrgsCreate)
	v1.HandleFunc("/organizations/{org}/members", b.handleMembersList).Methods(http.MethodGet).Name(RouteMembersList)
	v1.HandleFunc("/organizations/{org}/members", b.handleMembersAdd).Methods(http.MethodPost).Name(RouteMembersAdd)
	v1.HandleFunc("/organizations/{org}/members/{user}", b.handleMembersUpdate).Methods(http.MethodPatch).Name(RouteMembersUpdate)
	v1.HandleFunc("/organizations/{org}/members/{user}", b.handleMembersRemove).Methods(http.MethodDelete).Name(RouteMembersRemove)
	v1.HandleFunc("/emails/{id}/interaction", b.handleInteraction).Methods(http.MethodPost).Name(RouteInteraction)

	b.server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// URL is the base URL including /api/v1
func (b *Backend) URL() string {
	return b.server.URL + "/api/v1"
}

// Close stops the server
func (b *Backend) Close() {
	b.server.Close()
}

// Fail makes route answer with status until Recover is called
func (b *Backend) Fail(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, detail: detail}
}

// Recover clears a failure set with Fail
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Hook runs fn before route is handled; fn may block to delay the response
func (b *Backend) Hook(route string, fn func(*http.Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.hooks, route)
		return
	}
	b.hooks[route] = fn
}

// SetEmails sets the list served for category
func (b *Backend) SetEmails(category string, emails []api.Email) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Emails[category] = emails
}

// SetDigest sets the latest digest; nil means none
func (b *Backend) SetDigest(content *string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Digest = content
}

// SetValidToken restricts accepted bearer tokens
func (b *Backend) SetValidToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ValidToken = token
}

// Requests returns a copy of every recorded call
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsFor returns the recorded calls of one route
func (b *Backend) RequestsFor(route string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// Interactions returns the logged interactions
func (b *Backend) Interactions() []api.Interaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.Interaction, len(b.interactions))
	copy(out, b.interactions)
	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if cur := mux.CurrentRoute(r); cur != nil {
			route = cur.GetName()
		}
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		cookie := ""
		if c, err := r.Cookie("token"); err == nil {
			cookie = c.Value
		}

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Route:  route,
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Cookie: cookie,
			Body:   body,
		})
		hook := b.hooks[route]
		fail, failing := b.failures[route]
		validToken := b.ValidToken
		b.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if validToken != "" && r.Header.Get("Authorization") != "Bearer "+validToken {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if failing {
			writeError(w, fail.status, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (b *Backend) handleOK(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (b *Backend) handleStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, b.Stats)
}

func (b *Backend) handleMessages(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = api.CategoryAll
	}
	b.mu.Lock()
	emails := b.Emails[category]
	b.mu.Unlock()
	if emails == nil {
		emails = []api.Email{}
	}
	writeJSON(w, emails)
}

func (b *Backend) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.Emails {
		for _, e := range list {
			if e.ID == id || e.GmailID == id {
				writeJSON(w, api.MessageDetail{
					ID:        e.ID,
					GmailID:   e.GmailID,
					ThreadID:  e.ThreadID,
					Subject:   e.Subject,
					Sender:    e.Sender,
					Body:      e.Snippet,
					Timestamp: e.Timestamp,
					Score:     e.PriorityScore,
				})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Email not found")
}

func (b *Backend) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req api.DraftRequest
	if err := decode(r, &req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}
	writeJSON(w, api.DraftResponse{
		DraftBody: fmt.Sprintf("[%s] %s", req.Tone, req.Prompt),
		ThreadID:  req.ThreadID,
	})
}

func (b *Backend) handleSend(w http.ResponseWriter, r *http.Request) {
	var req api.SendRequest
	if err := decode(r, &req); err != nil || req.Recipient == "" {
		writeError(w, http.StatusUnprocessableEntity, "recipient is required")
		return
	}
	writeJSON(w, api.SendResponse{Status: "sent", MessageID: "sent-1"})
}

func (b *Backend) handleEvents(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	events := append([]api.CalendarEvent(nil), b.Events...)
	b.mu.Unlock()
	limit := len(events)
	if _, err := fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit); err == nil && limit < len(events) {
		events = events[:limit]
	}
	if events == nil {
		events = []api.CalendarEvent{}
	}
	writeJSON(w, events)
}

func (b *Backend) handleDigestLatest(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Digest == nil {
		writeJSON(w, api.LatestDigest{Found: false, Content: "No digest generated yet today."})
		return
	}
	writeJSON(w, api.LatestDigest{Found: true, Content: *b.Digest, CreatedAt: time.Now().UTC().Format(time.RFC3339)})
}

func (b *Backend) handleDigestGenerate(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = decode(r, &req)
	if req["user_id"] == "" && req["email"] == "" {
		writeJSON(w, api.GeneratedDigest{Error: "user_id or email is required"})
		return
	}
	content := "Digest for " + req["email"]
	b.mu.Lock()
	b.Digest = &content
	b.mu.Unlock()
	writeJSON(w, api.GeneratedDigest{Message: "Digest generated", Content: content})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	b.mu.Lock()
	id := ""
	if req.ConversationID != nil {
		id = *req.ConversationID
	} else {
		b.conversation++
		id = fmt.Sprintf("conv-%d", b.conversation)
	}
	b.mu.Unlock()
	writeJSON(w, api.ChatResponse{
		Response:       "echo: " + req.Query,
		ConversationID: id,
		Explanation:    "matched " + req.Query,
	})
}

func (b *Backend) handleTasks(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	tasks := b.Tasks
	b.mu.Unlock()
	if tasks == nil {
		tasks = []api.Task{}
	}
	writeJSON(w, tasks)
}

func (b *Backend) handleOrgsList(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	orgs := b.Orgs
	b.mu.Unlock()
	if orgs == nil {
		orgs = []api.Organization{}
	}
	writeJSON(w, orgs)
}

func (b *Backend) handleOrgsCreate(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decode(r, &req); err != nil || req["name"] == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	b.mu.Lock()
	org := api.Organization{
		ID:       fmt.Sprintf("org-%d", len(b.Orgs)+1),
		Name:     req["name"],
		PlanType: req["plan_type"],
		Role:     "owner",
	}
	b.Orgs = append(b.Orgs, org)
	b.mu.Unlock()
	writeJSON(w, org)
}

func (b *Backend) handleMembersList(w http.ResponseWriter, r *http.Request) {
	org := mux.Vars(r)["org"]
	b.mu.Lock()
	members := b.Members[org]
	b.mu.Unlock()
	if members == nil {
		members = []api.Member{}
	}
	writeJSON(w, members)
}

func (b *Backend) handleMembersAdd(w http.ResponseWriter, r *http.Request) {
	org := mux.Vars(r)["org"]
	var req map[string]string
	if err := decode(r, &req); err != nil || req["user_id"] == "" {
		writeError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	b.mu.Lock()
	b.Members[org] = append(b.Members[org], api.Member{
		UserID: req["user_id"],
		Email:  req["user_id"] + "@example.com",
		Role:   req["role"],
	})
	b.mu.Unlock()
	writeJSON(w, api.MemberChange{Status: "member_added", UserID: req["user_id"]})
}

func (b *Backend) handleMembersUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req map[string]string
	_ = decode(r, &req)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.Members[vars["org"]] {
		if m.UserID == vars["user"] {
			b.Members[vars["org"]][i].Role = req["role"]
			writeJSON(w, api.MemberChange{Status: "role_updated", UserID: m.UserID, NewRole: req["role"]})
			return
		}
	}
	writeError(w, http.StatusNotFound, "User is not a member of this organization")
}

func (b *Backend) handleMembersRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.Members[vars["org"]]
	for i, m := range members {
		if m.UserID == vars["user"] {
			b.Members[vars["org"]] = append(members[:i:i], members[i+1:]...)
			writeJSON(w, api.MemberChange{Status: "member_removed", UserID: m.UserID})
			return
		}
	}
	writeError(w, http.StatusNotFound, "User is not a member of this organization")
}

func (b *Backend) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	b.mu.Lock()
	in := api.Interaction{
		ID:        fmt.Sprintf("int-%d", len(b.interactions)+1),
		EmailID:   mux.Vars(r)["id"],
		Action:    req["action"],
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	b.interactions = append(b.interactions, in)
	b.mu.Unlock()
	writeJSON(w, in)
}
