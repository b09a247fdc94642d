package render

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ajramos/kyra/internal/api"
	"github.com/mattn/go-runewidth"
)

// minRowWidth keeps rows usable on very narrow terminals
const minRowWidth = 40

// EmailRenderer handles email rendering and formatting
type EmailRenderer struct {
	now         func() time.Time
	senderWidth int
	dateWidth   int
	maxChips    int
}

// NewEmailRenderer creates a new email renderer
func NewEmailRenderer() *EmailRenderer {
	return &EmailRenderer{
		now:         time.Now,
		senderWidth: 22,
		dateWidth:   6,
		maxChips:    3,
	}
}

// SetClock replaces the time source used for relative dates
func (er *EmailRenderer) SetClock(now func() time.Time) {
	if now != nil {
		er.now = now
	}
}

// FormatEmailList formats an email for list display:
// "● !! Sender | Subject [Label] | 2h"
func (er *EmailRenderer) FormatEmailList(e api.Email, maxWidth int) string {
	sender := extractSenderName(e.Sender)
	if sender == "" {
		sender = "(No sender)"
	}
	subject := strings.TrimSpace(e.Subject)
	if subject == "" {
		subject = "(No subject)"
	}

	if maxWidth < minRowWidth {
		maxWidth = minRowWidth
	}
	marker := readMarker(e) + tierMarker(e.PriorityTier()) + " "
	suffix := er.buildChips(e.Labels)
	// separators " | " twice
	subjectWidth := maxWidth - runewidth.StringWidth(marker) - er.senderWidth - er.dateWidth - 6 - runewidth.StringWidth(suffix)
	if subjectWidth < 10 {
		subjectWidth = 10
	}

	return fmt.Sprintf("%s%s | %s%s | %s",
		marker,
		fitWidth(sender, er.senderWidth),
		fitWidth(subject, subjectWidth),
		suffix,
		rightFit(er.formatRelativeTime(e.ReceivedAt()), er.dateWidth),
	)
}

// FormatMessage renders a full email: header, body and link references
func (er *EmailRenderer) FormatMessage(m *api.MessageDetail, width int) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(er.FormatHeaderPlain(m.Subject, m.Sender, api.ParseTime(m.Timestamp), m.Category))
	if tier := (api.Email{PriorityScore: m.Score}).PriorityTier(); tier != api.PriorityNormal {
		fmt.Fprintf(&b, "\nPriority: %s (%.0f)", tier, m.Score)
	}
	if strings.TrimSpace(m.Explanation) != "" {
		fmt.Fprintf(&b, "\nWhy: %s", strings.TrimSpace(m.Explanation))
	}
	b.WriteString("\n\n")
	b.WriteString(FormatBody(m.Body, FormatOptions{WrapWidth: width, Links: true}))
	return b.String()
}

// FormatHeaderPlain returns a plain header without markup
func (er *EmailRenderer) FormatHeaderPlain(subject, from string, date time.Time, category string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "From: %s\n", from)
	if !date.IsZero() {
		fmt.Fprintf(&b, "Date: %s", formatDate(date))
	} else {
		b.WriteString("Date: unknown")
	}
	if strings.TrimSpace(category) != "" {
		fmt.Fprintf(&b, "\nCategory: %s", category)
	}
	return b.String()
}

// buildChips returns label chips like "  [Work] [Finance] [+2]"
func (er *EmailRenderer) buildChips(labels []string) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		upper := strings.ToUpper(l)
		switch {
		case upper == "UNREAD", upper == "STARRED", upper == "IMPORTANT":
			continue
		case upper == "INBOX", upper == "SENT", upper == "DRAFT", upper == "SPAM", upper == "TRASH":
			continue
		}
		if name := normalizeLabelDisplay(l); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(" ")
	for i, n := range names {
		if i == er.maxChips {
			fmt.Fprintf(&b, " [+%d]", len(names)-er.maxChips)
			break
		}
		b.WriteString(" [" + n + "]")
	}
	return b.String()
}

func readMarker(e api.Email) string {
	if e.IsRead {
		return " "
	}
	return "●"
}

func tierMarker(tier string) string {
	switch tier {
	case api.PriorityUrgent:
		return "!!"
	case api.PriorityHigh:
		return "! "
	default:
		return "  "
	}
}

// toTitleCase converts strings like "AWS", "spam", "aws-partners" to "Aws", "Spam", "Aws Partners"
func toTitleCase(s string) string {
	repl := strings.NewReplacer("_", " ", "-", " ", ".", " ")
	parts := strings.Fields(repl.Replace(s))
	for i, p := range parts {
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

// normalizeLabelDisplay maps CATEGORY_* to the bare category name
func normalizeLabelDisplay(label string) string {
	if strings.HasPrefix(strings.ToUpper(label), "CATEGORY_") {
		label = label[len("CATEGORY_"):]
	}
	return toTitleCase(label)
}

func extractSenderName(from string) string {
	from = strings.TrimSpace(from)
	// "Name <email@domain.com>"
	if i := strings.Index(from, "<"); i > 0 && strings.Contains(from[i:], ">") {
		return strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.Trim(from, "<>")
}

// fitWidth truncates and pads on the right to fit a fixed width
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "...")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// rightFit truncates and right-aligns to width
func rightFit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.TruncateLeft(s, width, "")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s = strings.Repeat(" ", pad) + s
	}
	return s
}

func (er *EmailRenderer) formatRelativeTime(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	diff := er.now().Sub(date)

	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return date.Format("Jan 2")
	}
}

func formatDate(date time.Time) string {
	return date.Format("Mon, 02 Jan 2006 15:04")
}
