package secrets

import "time"

// Result is the outcome of scrubbing one piece of content.
type Result struct {
	Original      string         `json:"-"`
	Scrubbed      string         `json:"scrubbed"`
	Findings      []Finding      `json:"findings,omitempty"`
	ByRule        map[string]int `json:"by_rule,omitempty"`
	TotalFindings int            `json:"total_findings"`
	Duration      time.Duration  `json:"duration"`
}

// Finding locates a detected secret. The matched value is never kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Source      string `json:"source"` // "regex" or "gitleaks"
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	Line        int    `json:"line"`
}

// HasFindings reports whether anything was detected.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// RuleIDs returns the distinct rules that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	return ids
}
