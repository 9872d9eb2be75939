package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

// FormatPercentage formats a ratio (0-1) as a percentage.
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// FormatDuration formats d as "Xh Ym", "Xm Ys" or "X.Xs".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
// Newlines are flattened to spaces.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// FormatEvent renders a one-line description of ev.
func FormatEvent(ev orchestrator.Event) string {
	ts := ev.Time.Format("15:04:05")
	switch ev.Type {
	case orchestrator.EventPlan:
		return fmt.Sprintf("%s plan     %d tasks", ts, len(ev.Tasks))
	case orchestrator.EventTaskComplete:
		mark := "✓"
		if !ev.Succeeded() {
			mark = "✗"
		}
		return fmt.Sprintf("%s task     %s %s", ts, mark, Truncate(ev.Task, 60))
	case orchestrator.EventAnswer:
		return fmt.Sprintf("%s answer   %d chars", ts, len(ev.Content))
	case orchestrator.EventError:
		return fmt.Sprintf("%s error    %s", ts, Truncate(ev.Message, 60))
	default:
		return fmt.Sprintf("%s status   %s", ts, Truncate(ev.Message, 60))
	}
}
