package stores

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/notify"
	"github.com/google/uuid"
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const fallbackAnswer = "I recall... something."

// ChatAPI is the part of the backend the chat store calls
type ChatAPI interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

// ChatMessage is one entry of the conversation
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// ChatStore holds one conversation. Messages are only ever appended until
// Reset. Sends are serialized so each one carries the conversation id
// adopted from the previous reply.
type ChatStore struct {
	client   ChatAPI
	notifier notify.Notifier
	userID   func() string
	now      func() time.Time

	sendMu sync.Mutex

	mu             sync.Mutex
	messages       []ChatMessage
	conversationID string
	epoch          uint64
	sending        int
	lastErr        error
	subs           map[int]func()
	nextSub        int
}

// NewChatStore creates an empty conversation. userID supplies the sender
// for each request.
func NewChatStore(client ChatAPI, notifier notify.Notifier, userID func() string) *ChatStore {
	if notifier == nil {
		notifier = notify.Discard
	}
	if userID == nil {
		userID = func() string { return "" }
	}
	return &ChatStore{
		client:   client,
		notifier: notifier,
		userID:   userID,
		now:      time.Now,
		subs:     map[int]func(){},
	}
}

// Messages returns a copy of the conversation
func (s *ChatStore) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.messages)
}

// ConversationID is empty until the first reply
func (s *ChatStore) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Loading reports whether a send is in flight
func (s *ChatStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending > 0
}

// LastError is the error of the latest failed send
func (s *ChatStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe calls fn after every change. The returned func unsubscribes.
func (s *ChatStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Send appends the user message, asks the assistant and appends its reply.
// A reply for a conversation cleared by Reset is dropped and
// ErrConversationReset returned, joined with the request error if any.
func (s *ChatStore) Send(ctx context.Context, query string) (*ChatMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyMessage
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	epoch := s.epoch
	convID := s.conversationID
	s.messages = append(s.messages, ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   query,
		Timestamp: s.now(),
	})
	s.sending++
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.sending--
		s.mu.Unlock()
		s.notify()
	}()

	req := api.ChatRequest{Query: query, UserID: s.userID()}
	if convID != "" {
		req.ConversationID = &convID
	}
	resp, err := s.client.Chat(ctx, req)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err != nil {
			return nil, errors.Join(ErrConversationReset, err)
		}
		return nil, ErrConversationReset
	}
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		if !canceled(err) {
			s.notifier.Notify(notify.LevelError, "Couldn't reach Kyra")
		}
		return nil, err
	}

	if resp.ConversationID != "" {
		s.conversationID = resp.ConversationID
	}
	content := resp.Response
	if content == "" {
		content = fallbackAnswer
	}
	reply := ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: s.now(),
		Reasoning: resp.Explanation,
	}
	s.messages = append(s.messages, reply)
	s.lastErr = nil
	s.mu.Unlock()

	return &reply, nil
}

// Reset starts a new conversation. Replies still in flight are dropped.
func (s *ChatStore) Reset() {
	s.mu.Lock()
	s.epoch++
	s.messages = nil
	s.conversationID = ""
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

func (s *ChatStore) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
