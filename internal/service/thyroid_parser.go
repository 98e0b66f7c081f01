package service

import (
	"regexp"
	"strconv"

	"github.com/labpanel-mcp-server/internal/domain"
)

var freePrefix = regexp.MustCompile(`(?i)free\s*$`)

var thyroidPatterns = []struct {
	testName string
	re       *regexp.Regexp
	// skipFree rejects matches preceded by "Free" so T3 does not read the Free T3 row.
	skipFree bool
}{
	{TestTSH, regexp.MustCompile(`(?i)\bTSH\s*:?\s*(\d+(?:\.\d+)?)`), false},
	{TestFreeT3, regexp.MustCompile(`(?i)\bFree\s*T3\s*:?\s*(\d+(?:\.\d+)?)`), false},
	{TestFreeT4, regexp.MustCompile(`(?i)\bFree\s*T4\s*:?\s*(\d+(?:\.\d+)?)`), false},
	{TestT3, regexp.MustCompile(`(?i)\bT3\s*:?\s*(\d+(?:\.\d+)?)`), true},
	{TestT4, regexp.MustCompile(`(?i)\bT4\s*:?\s*(\d+(?:\.\d+)?)`), true},
}

// parseThyroid reads TSH, T3, T4 and their free fractions. Thyroid reports
// rarely print a machine-readable range, so none is attached here.
func (p *PanelParser) parseThyroid(text string) *domain.TestSet {
	tests := domain.NewTestSet()
	for _, tp := range thyroidPatterns {
		for _, loc := range tp.re.FindAllStringSubmatchIndex(text, -1) {
			if tp.skipFree && freePrefix.MatchString(text[:loc[0]]) {
				continue
			}
			v, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
			if err != nil || !domain.IsFinite(v) {
				continue
			}
			tests.Add(domain.TestResult{
				TestName: tp.testName,
				Value:    v,
				Unit:     UnitFor(tp.testName),
			})
			break
		}
	}
	return tests
}
