// Package secrets redacts credentials from text produced during an agent run.
//
// Delegated sub-agent output and the final answer are scrubbed before they are
// written to the store or returned to a caller. Detection combines a compact
// regex rule set with, optionally, the gitleaks default ruleset. Findings keep
// rule ids and positions but never the matched value.
package secrets
