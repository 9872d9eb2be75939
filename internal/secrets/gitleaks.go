package secrets

import (
	"fmt"
	"regexp"
	"strings"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// gitleaksDetector runs the gitleaks default ruleset over a string.
type gitleaksDetector struct {
	detector *detect.Detector
}

func newGitleaksDetector(allow []*regexp.Regexp) (*gitleaksDetector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorInit, err)
	}
	if len(allow) > 0 {
		al := &gitleaksconfig.Allowlist{Description: "deepagent allowlist"}
		for _, re := range allow {
			al.Regexes = append(al.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		d.Config.Allowlists = append(d.Config.Allowlists, al)
	}
	return &gitleaksDetector{detector: d}, nil
}

// spans returns the byte ranges of every reported secret. Gitleaks reports
// line and column positions, so each secret value is located by search.
func (g *gitleaksDetector) spans(content string) []span {
	var out []span
	for _, f := range g.detector.DetectString(content) {
		if f.Secret == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(content[from:], f.Secret)
			if idx < 0 {
				break
			}
			start := from + idx
			out = append(out, span{
				start:       start,
				end:         start + len(f.Secret),
				ruleID:      f.RuleID,
				description: f.Description,
				severity:    "high",
				source:      "gitleaks",
			})
			from = start + len(f.Secret)
		}
	}
	return out
}
