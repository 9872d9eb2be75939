package planning

import (
	"fmt"
	"strings"
)

// DisplayText renders the graph as a markdown checklist grouped by status.
func (g *Graph) DisplayText() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var b strings.Builder
	b.WriteString("# TODO List\n")

	for _, status := range Statuses {
		var group []*Task
		for _, id := range g.order {
			if t := g.tasks[id]; t.Status == status {
				group = append(group, t)
			}
		}
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n\n## %s\n", status.Title())
		for _, t := range group {
			check := " "
			if t.Status == StatusCompleted {
				check = "x"
			}
			fmt.Fprintf(&b, "\n- [%s] %s %s", check, strings.Repeat("!", int(t.Priority)), t.Title)
			if t.Description != "" {
				fmt.Fprintf(&b, "\n  - %s", t.Description)
			}
			if t.AssignedTo != "" {
				fmt.Fprintf(&b, "\n  - Assigned to: %s", t.AssignedTo)
			}
			if len(t.Dependencies) > 0 {
				fmt.Fprintf(&b, "\n  - Dependencies: %s", strings.Join(t.Dependencies, ", "))
			}
			if len(t.Notes) > 0 {
				b.WriteString("\n  - Notes:")
				for _, n := range t.Notes {
					fmt.Fprintf(&b, "\n    - %s", n)
				}
			}
		}
	}

	s := g.summaryLocked()
	fmt.Fprintf(&b, "\n\n---\n**Summary**: %d tasks, %.1f%% complete", s.TotalTasks, s.CompletionRate)
	return b.String()
}
