// Package notify delivers short user-facing messages (the CLI's toasts).
package notify

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a message
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the log tag of the level
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// Notification is one delivered message
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// Notifier is what stores use to surface outcomes to the user
type Notifier interface {
	Notify(level Level, msg string)
}

// Discard drops every notification
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Level, string) {}

const defaultHistory = 50

// Center records recent notifications, logs them and echoes them to an
// optional writer.
type Center struct {
	mu      sync.RWMutex
	recent  []Notification
	max     int
	logger  *log.Logger
	out     io.Writer
	nextID  int
	watches map[int]func(Notification)
	now     func() time.Time
}

// NewCenter keeps up to history notifications; zero selects the default
func NewCenter(history int) *Center {
	if history <= 0 {
		history = defaultHistory
	}
	return &Center{
		max:     history,
		watches: map[int]func(Notification){},
		now:     time.Now,
	}
}

// SetLogger sets the logger every notification is written to
func (c *Center) SetLogger(logger *log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// SetOutput echoes formatted notifications to w; nil disables it
func (c *Center) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// Notify implements Notifier
func (c *Center) Notify(level Level, msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	n := Notification{Level: level, Message: msg, Time: c.now()}

	c.mu.Lock()
	c.recent = append(c.recent, n)
	if len(c.recent) > c.max {
		c.recent = c.recent[len(c.recent)-c.max:]
	}
	logger, out := c.logger, c.out
	watches := make([]func(Notification), 0, len(c.watches))
	for _, fn := range c.watches {
		watches = append(watches, fn)
	}
	c.mu.Unlock()

	if logger != nil {
		logger.Printf("%s: %s", level, msg)
	}
	if out != nil {
		fmt.Fprintln(out, Format(n))
	}
	for _, fn := range watches {
		fn(n)
	}
}

// HandleError logs err and shows userMsg as an error
func (c *Center) HandleError(err error, userMsg string) {
	if err == nil {
		return
	}
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		logger.Printf("ERROR: %v", err)
	}
	if userMsg == "" {
		userMsg = "An error occurred"
	}
	c.Notify(LevelError, userMsg)
}

// Recent returns the kept notifications, oldest first
func (c *Center) Recent() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Notification, len(c.recent))
	copy(out, c.recent)
	return out
}

// Last returns the most recent notification
func (c *Center) Last() (Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.recent) == 0 {
		return Notification{}, false
	}
	return c.recent[len(c.recent)-1], true
}

// Subscribe calls fn for every notification until the returned func is called
func (c *Center) Subscribe(fn func(Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.watches[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watches, id)
	}
}

// Format renders a notification with its icon
func Format(n Notification) string {
	var icon string
	switch n.Level {
	case LevelInfo:
		icon = "ℹ️"
	case LevelWarning:
		icon = "⚠️"
	case LevelError:
		icon = "❌"
	case LevelSuccess:
		icon = "✅"
	default:
		icon = "•"
	}
	return fmt.Sprintf("%s %s", icon, n.Message)
}
