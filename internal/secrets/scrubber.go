package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Scrubber detects and redacts secrets.
type Scrubber interface {
	// Scrub returns the content with every detected secret replaced.
	Scrub(content string) *Result
	// Check detects secrets but leaves Scrubbed equal to the input.
	Check(content string) *Result
	IsEnabled() bool
}

type span struct {
	start, end  int
	ruleID      string
	description string
	severity    string
	source      string
}

type scrubber struct {
	redaction string
	rules     []*compiledRule
	allow     []*regexp.Regexp
	gitleaks  *gitleaksDetector
	logger    *zap.Logger
}

// Option configures New.
type Option func(*scrubber)

// WithLogger logs a warning (rule ids only) whenever secrets are redacted.
func WithLogger(l *zap.Logger) Option {
	return func(s *scrubber) {
		if l != nil {
			s.logger = l.Named("secrets")
		}
	}
}

// New builds a Scrubber from cfg. A nil cfg uses DefaultConfig. A disabled
// config yields a NoopScrubber.
func New(cfg *Config, opts ...Option) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return &NoopScrubber{}, nil
	}

	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	if cfg.AllowlistPath != "" {
		al, err := LoadAllowlist(cfg.AllowlistPath)
		if err != nil {
			return nil, err
		}
		for _, pattern := range al.Regexes {
			allow = append(allow, regexp.MustCompile(pattern))
		}
	}

	s := &scrubber{
		redaction: cfg.RedactionString,
		rules:     rules,
		allow:     allow,
		logger:    zap.NewNop(),
	}
	if s.redaction == "" {
		s.redaction = "[REDACTED]"
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Gitleaks {
		g, err := newGitleaksDetector(allow)
		if err != nil {
			return nil, err
		}
		s.gitleaks = g
	}
	return s, nil
}

// MustNew is New that panics on error.
func MustNew(cfg *Config, opts ...Option) Scrubber {
	s, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("secrets: %v", err))
	}
	return s
}

func (s *scrubber) IsEnabled() bool { return true }

func (s *scrubber) Check(content string) *Result {
	r := s.Scrub(content)
	r.Scrubbed = r.Original
	return r
}

func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	res := &Result{
		Original: content,
		Scrubbed: content,
		ByRule:   map[string]int{},
	}

	spans := s.regexSpans(content)
	if s.gitleaks != nil {
		spans = append(spans, s.gitleaks.spans(content)...)
	}

	for _, sp := range spans {
		res.Findings = append(res.Findings, Finding{
			RuleID:      sp.ruleID,
			Description: sp.description,
			Severity:    sp.severity,
			Source:      sp.source,
			StartIndex:  sp.start,
			EndIndex:    sp.end,
			Line:        strings.Count(content[:sp.start], "\n") + 1,
		})
		res.ByRule[sp.ruleID]++
	}
	res.TotalFindings = len(res.Findings)

	if len(spans) > 0 {
		res.Scrubbed = redact(content, spans, s.redaction)
		s.logger.Warn("secrets redacted",
			zap.Int("findings", res.TotalFindings),
			zap.Strings("rules", res.RuleIDs()))
	}
	res.Duration = time.Since(start)
	return res
}

func (s *scrubber) regexSpans(content string) []span {
	var out []span
	for _, rule := range s.rules {
		if len(rule.keywords) > 0 && !anyMatch(rule.keywords, content) {
			continue
		}
		for _, loc := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[loc[0]:loc[1]]) {
				continue
			}
			out = append(out, span{
				start:       loc[0],
				end:         loc[1],
				ruleID:      rule.ID,
				description: rule.Description,
				severity:    rule.Severity,
				source:      "regex",
			})
		}
	}
	return out
}

func (s *scrubber) allowed(match string) bool {
	return anyMatch(s.allow, match)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// redact replaces the union of spans. Overlapping and adjacent spans collapse
// into a single replacement.
func redact(content string, spans []span, replacement string) string {
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	var b strings.Builder
	cursor := 0
	for i := 0; i < len(sorted); {
		start, end := sorted[i].start, sorted[i].end
		i++
		for i < len(sorted) && sorted[i].start <= end {
			if sorted[i].end > end {
				end = sorted[i].end
			}
			i++
		}
		if start < cursor {
			start = cursor
		}
		b.WriteString(content[cursor:start])
		b.WriteString(replacement)
		cursor = end
	}
	b.WriteString(content[cursor:])
	return b.String()
}

// NoopScrubber passes content through unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Original: content, Scrubbed: content, ByRule: map[string]int{}}
}

func (n NoopScrubber) Check(content string) *Result { return n.Scrub(content) }

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = (*NoopScrubber)(nil)
)
