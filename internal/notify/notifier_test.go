package notify

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_NotifyRecordsAndEchoes(t *testing.T) {
	var out, logs bytes.Buffer
	c := NewCenter(0)
	c.SetOutput(&out)
	c.SetLogger(log.New(&logs, "", 0))

	c.Notify(LevelSuccess, "Sync complete")

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, LevelSuccess, last.Level)
	assert.Equal(t, "Sync complete", last.Message)
	assert.Equal(t, "✅ Sync complete\n", out.String())
	assert.Equal(t, "SUCCESS: Sync complete\n", logs.String())
}

func TestCenter_IgnoresBlankMessages(t *testing.T) {
	c := NewCenter(0)
	c.Notify(LevelInfo, "   ")
	assert.Empty(t, c.Recent())
}

func TestCenter_HistoryIsBounded(t *testing.T) {
	c := NewCenter(2)
	c.Notify(LevelInfo, "one")
	c.Notify(LevelInfo, "two")
	c.Notify(LevelInfo, "three")

	recent := c.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Message)
	assert.Equal(t, "three", recent[1].Message)
}

func TestCenter_HandleError(t *testing.T) {
	var logs bytes.Buffer
	c := NewCenter(0)
	c.SetLogger(log.New(&logs, "", 0))

	c.HandleError(nil, "ignored")
	assert.Empty(t, c.Recent())

	c.HandleError(errors.New("dial tcp: refused"), "")
	last, _ := c.Last()
	assert.Equal(t, LevelError, last.Level)
	assert.Equal(t, "An error occurred", last.Message)
	assert.Contains(t, logs.String(), "ERROR: dial tcp: refused")
}

func TestCenter_Subscribe(t *testing.T) {
	c := NewCenter(0)
	var got []string
	cancel := c.Subscribe(func(n Notification) { got = append(got, n.Message) })

	c.Notify(LevelWarning, "first")
	cancel()
	c.Notify(LevelWarning, "second")

	assert.Equal(t, []string{"first"}, got)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelInfo, "ℹ️ x"},
		{LevelWarning, "⚠️ x"},
		{LevelError, "❌ x"},
		{LevelSuccess, "✅ x"},
		{Level(99), "• x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(Notification{Level: tt.level, Message: "x"}))
	}
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
