package api

import (
	"strings"
	"time"
)

// Priority tiers derived from an email's score
const (
	PriorityUrgent = "Urgent"
	PriorityHigh   = "High"
	PriorityNormal = "Normal"
)

// CategoryAll lists every category; it is never sent to the backend
const CategoryAll = "All"

// Interaction actions accepted by LogInteraction
const (
	ActionOpen    = "open"
	ActionReply   = "reply"
	ActionArchive = "archive"
	ActionStar    = "star"
)

// Email is one inbox row
type Email struct {
	ID            string   `json:"id"`
	GmailID       string   `json:"gmail_id"`
	ThreadID      string   `json:"thread_id,omitempty"`
	Sender        string   `json:"from"`
	Subject       string   `json:"subject"`
	Snippet       string   `json:"snippet"`
	Timestamp     string   `json:"timestamp"`
	IsRead        bool     `json:"isRead"`
	Labels        []string `json:"labels"`
	PriorityScore float64  `json:"score"`
	Summary       string   `json:"summary,omitempty"`
}

// PriorityTier is recomputed from the score on every call
func (e Email) PriorityTier() string {
	switch {
	case e.PriorityScore > 80:
		return PriorityUrgent
	case e.PriorityScore > 50:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// ReceivedAt parses Timestamp, returning the zero time when it is empty or malformed
func (e Email) ReceivedAt() time.Time {
	return ParseTime(e.Timestamp)
}

// MessageDetail is a single email with its body
type MessageDetail struct {
	ID          string  `json:"id"`
	GmailID     string  `json:"gmail_id"`
	ThreadID    string  `json:"thread_id,omitempty"`
	Subject     string  `json:"subject"`
	Sender      string  `json:"from"`
	Body        string  `json:"body"`
	Timestamp   string  `json:"timestamp"`
	Category    string  `json:"category,omitempty"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

// DashboardStats is the aggregate shown on the landing screen
type DashboardStats struct {
	UrgentEmails   int `json:"urgent_emails"`
	PendingTasks   int `json:"pending_tasks"`
	UpcomingEvents int `json:"upcoming_events"`
	TotalThings    int `json:"total_things"`
	InboxHealth    int `json:"inbox_health"`
	TotalUnread    int `json:"total_unread"`
}

// DraftRequest asks the backend to write a reply
type DraftRequest struct {
	ThreadID     string `json:"thread_id,omitempty"`
	Prompt       string `json:"prompt"`
	Tone         string `json:"tone,omitempty"`
	EmailAddress string `json:"email_address"`
}

// DraftResponse carries the generated body
type DraftResponse struct {
	DraftBody string `json:"draft_body"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// SendRequest sends a message through the user's Gmail account
type SendRequest struct {
	EmailAddress string `json:"email_address"`
	Recipient    string `json:"recipient"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	ThreadID     string `json:"thread_id,omitempty"`
}

// SendResponse confirms a sent message
type SendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// CalendarEvent is either a Google Calendar event or a pending task
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Time        string `json:"time,omitempty"`
	Kind        string `json:"type"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
}

// LatestDigest is the answer of GET /digest/latest
type LatestDigest struct {
	Found     bool   `json:"found"`
	Content   string `json:"content"`
	Date      string `json:"date,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// GeneratedDigest is the answer of POST /digest/generate
type GeneratedDigest struct {
	Message string `json:"message,omitempty"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ChatRequest is one user turn. A nil ConversationID asks the backend to start one.
type ChatRequest struct {
	Query          string  `json:"query"`
	ConversationID *string `json:"conversation_id"`
	UserID         string  `json:"user_id"`
}

// ChatResponse is the assistant's answer
type ChatResponse struct {
	Response          string   `json:"response"`
	ConversationID    string   `json:"conversation_id"`
	ConversationTitle string   `json:"conversation_title,omitempty"`
	Sources           []string `json:"sources,omitempty"`
	Explanation       string   `json:"explanation,omitempty"`
}

// Task kinds and statuses
const (
	KindEvent = "event"
	KindTask  = "task"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusConflict  = "conflict"
)

// Task is one timeline entry
type Task struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Time           string `json:"time"`
	Kind           string `json:"type"`
	Status         string `json:"status"`
	ConflictReason string `json:"conflictReason,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

// Organization is one the current user belongs to
type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PlanType string `json:"plan_type"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at,omitempty"`
}

// Member is a user inside an organization
type Member struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at,omitempty"`
}

// MemberChange is the acknowledgement of a membership mutation
type MemberChange struct {
	Status  string `json:"status"`
	UserID  string `json:"user_id"`
	NewRole string `json:"new_role,omitempty"`
}

// Interaction is a logged user action on an email
type Interaction struct {
	ID        string `json:"id"`
	EmailID   string `json:"email_id"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime accepts the ISO forms the backend emits, with or without offset
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
