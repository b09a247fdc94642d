package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/stores"
)

// NoDigest is shown when the backend has no digest for today
const NoDigest = "No digest generated yet today."

// FormatDigest renders the digest text; nil means none exists
func FormatDigest(content *string, width int) string {
	if content == nil || strings.TrimSpace(*content) == "" {
		return NoDigest
	}
	return FormatBody(*content, FormatOptions{WrapWidth: width, Links: true})
}

// FormatStats renders the dashboard counters
func FormatStats(s api.DashboardStats) string {
	rows := [][2]string{
		{"Urgent emails", fmt.Sprint(s.UrgentEmails)},
		{"Unread", fmt.Sprint(s.TotalUnread)},
		{"Pending tasks", fmt.Sprint(s.PendingTasks)},
		{"Upcoming events", fmt.Sprint(s.UpcomingEvents)},
		{"Total things", fmt.Sprint(s.TotalThings)},
		{"Inbox health", fmt.Sprintf("%d%%", s.InboxHealth)},
	}
	return table(rows)
}

// FormatTask renders one timeline entry; conflicts carry their reason
func FormatTask(t api.Task, width int) string {
	status := t.Status
	if status == "" {
		status = api.StatusPending
	}
	line := fmt.Sprintf("%s  %s  %s", fitWidth(t.Time, 8), fitWidth(status, 9), t.Title)
	if t.Duration != "" {
		line += " (" + t.Duration + ")"
	}
	line = fitLine(line, width)
	if t.Status == api.StatusConflict && t.ConflictReason != "" {
		line += "\n" + strings.Repeat(" ", 21) + "! " + t.ConflictReason
	}
	return line
}

// FormatEvent renders one calendar entry
func FormatEvent(e api.CalendarEvent, width int) string {
	when := e.Time
	if t := api.ParseTime(e.StartTime); !t.IsZero() {
		when = t.Format("Mon 02 15:04")
	}
	line := fmt.Sprintf("%s  %s", fitWidth(when, 12), e.Title)
	if e.Location != "" {
		line += " @ " + e.Location
	}
	return fitLine(line, width)
}

// FormatChatMessage renders one turn of the conversation
func FormatChatMessage(m stores.ChatMessage, width int) string {
	who := "you"
	if m.Role == stores.RoleAssistant {
		who = "kyra"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s %s]\n", who, m.Timestamp.Format(time.Kitchen))
	b.WriteString(FormatBody(m.Content, FormatOptions{WrapWidth: width}))
	if m.Reasoning != "" {
		b.WriteString("\n")
		b.WriteString(WrapTextPreserving("> "+strings.TrimSpace(m.Reasoning), width))
	}
	return b.String()
}

// FormatOrganization renders one organization row
func FormatOrganization(o api.Organization, selected bool) string {
	mark := " "
	if selected {
		mark = "*"
	}
	return fmt.Sprintf("%s %s  %s  %s (%s)", mark, fitWidth(o.ID, 12), fitWidth(o.Role, 8), o.Name, o.PlanType)
}

// FormatMember renders one member row
func FormatMember(m api.Member) string {
	name := m.Name
	if name == "" {
		name = m.Email
	}
	return fmt.Sprintf("%s  %s  %s", fitWidth(m.UserID, 12), fitWidth(m.Role, 8), name)
}

func table(rows [][2]string) string {
	w := 0
	for _, r := range rows {
		w = max(w, len(r[0]))
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fitWidth(r[0], w)+"  "+r[1])
	}
	return strings.Join(lines, "\n")
}

func fitLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return strings.TrimRight(fitWidth(s, width), " ")
}
