package planning

import (
	"strings"
	"unicode"
)

// PlannedTask is one candidate line extracted from plan text.
type PlannedTask struct {
	Title    string
	Priority Priority
}

const markerChars = "-*0123456789. "

// ParsePlan extracts task candidates from generated plan text. A trimmed line
// is a candidate when it starts with "-", "*" or a digit; the leading marker is
// stripped and empty remainders are dropped.
func ParsePlan(text string) []PlannedTask {
	var out []PlannedTask
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := rune(line[0])
		if first != '-' && first != '*' && !unicode.IsDigit(first) {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line, markerChars))
		if title == "" {
			continue
		}
		out = append(out, PlannedTask{Title: title, Priority: ClassifyPriority(title)})
	}
	return out
}

var (
	urgentWords   = []string{"critical", "urgent", "important"}
	optionalWords = []string{"optional", "nice to have"}
)

// ClassifyPriority assigns a priority from keywords in the task text.
func ClassifyPriority(text string) Priority {
	lower := strings.ToLower(text)
	for _, w := range urgentWords {
		if strings.Contains(lower, w) {
			return PriorityHigh
		}
	}
	for _, w := range optionalWords {
		if strings.Contains(lower, w) {
			return PriorityLow
		}
	}
	return PriorityMedium
}
