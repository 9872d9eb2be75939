package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const planningPromptTemplate = `Based on the user query, create a comprehensive task plan.

User Query: %s

Generate a structured TODO list that:
1. Breaks down the query into logical subtasks
2. Orders tasks by dependencies and priority
3. Identifies opportunities for parallel execution
4. Estimates complexity for each task
5. Suggests appropriate sub-agents for specialized tasks

Format the response as a structured list with clear task descriptions.`

func planningPrompt(query string) string {
	return fmt.Sprintf(planningPromptTemplate, query)
}

func synthesisPrompt(query string, parts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following research components, provide a comprehensive answer to: %s\n\n", query)
	b.WriteString("Components:\n")
	for _, p := range parts {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nProvide a thorough, well-structured response that addresses all aspects of the query.")
	return b.String()
}

// excerpt truncates s to n bytes on a rune boundary and marks the cut.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s + "..."
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
