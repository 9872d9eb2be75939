package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/planning"
)

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "0%", FormatPercentage(0))
	assert.Equal(t, "67%", FormatPercentage(2.0/3.0))
	assert.Equal(t, "100%", FormatPercentage(1))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"negative", -time.Second, "0.0s"},
		{"sub_second", 250 * time.Millisecond, "0.2s"},
		{"seconds", 12*time.Second + 340*time.Millisecond, "12.3s"},
		{"minutes", 3*time.Minute + 7*time.Second, "3m 7s"},
		{"hours", 2*time.Hour + 15*time.Minute + 30*time.Second, "2h 15m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "a b c", Truncate("a\nb\n\tc", 10))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC)
	ok, failed := true, false

	tests := []struct {
		name string
		ev   orchestrator.Event
		want string
	}{
		{"status", orchestrator.Event{Type: orchestrator.EventStatus, Time: ts, Message: "Planning"}, "09:05:07 status   Planning"},
		{"plan", orchestrator.Event{Type: orchestrator.EventPlan, Time: ts, Tasks: make([]planning.Task, 3)}, "09:05:07 plan     3 tasks"},
		{"task ok", orchestrator.Event{Type: orchestrator.EventTaskComplete, Time: ts, Task: "Read docs", Success: &ok}, "09:05:07 task     ✓ Read docs"},
		{"task failed", orchestrator.Event{Type: orchestrator.EventTaskComplete, Time: ts, Task: "Read docs", Success: &failed}, "09:05:07 task     ✗ Read docs"},
		{"answer", orchestrator.Event{Type: orchestrator.EventAnswer, Time: ts, Content: "four"}, "09:05:07 answer   4 chars"},
		{"error", orchestrator.Event{Type: orchestrator.EventError, Time: ts, Message: "boom"}, "09:05:07 error    boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.ev))
		})
	}
}
