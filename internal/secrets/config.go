package secrets

import (
	"fmt"
	"regexp"
)

// Config configures the scrubber.
type Config struct {
	Enabled         bool     `koanf:"enabled"`
	Rules           []Rule   `koanf:"rules"`
	RedactionString string   `koanf:"redaction_string"`
	AllowList       []string `koanf:"allow_list"`

	// Gitleaks adds the gitleaks default ruleset on top of Rules.
	Gitleaks bool `koanf:"gitleaks"`
	// AllowlistPath points at a gitleaks-style TOML allowlist. Optional.
	AllowlistPath string `koanf:"allowlist_path"`
}

// Rule is one regex detection rule.
type Rule struct {
	ID          string   `koanf:"id"`
	Description string   `koanf:"description"`
	Pattern     string   `koanf:"pattern"`
	Keywords    []string `koanf:"keywords"`
	Severity    string   `koanf:"severity"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig enables the built-in rules with "[REDACTED]" replacement.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		RedactionString: "[REDACTED]",
		Rules:           DefaultRules(),
	}
}

func (c *Config) compile() ([]*compiledRule, []*regexp.Regexp, error) {
	rules := make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i)
		}
		if rule.Pattern == "" {
			return nil, nil, fmt.Errorf("%w: rule %s has no pattern", ErrInvalidRule, rule.ID)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRule, rule.ID, err)
		}
		cr := &compiledRule{Rule: rule, pattern: re}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		rules = append(rules, cr)
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: allow_list %d: %v", ErrInvalidAllowlist, i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}
