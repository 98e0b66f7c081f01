package service

import (
	"regexp"

	"github.com/labpanel-mcp-server/internal/domain"
)

var (
	labelBilirubinTotal      = regexp.MustCompile(`(?i)BILIRUBIN\s*TOTAL|TOTAL\s*BILIRUBIN`)
	labelBilirubinConjugated = regexp.MustCompile(`(?i)BILIRUBIN\s*CONJUGATED|\bDIRECT\s*BILIRUBIN`)
	labelSGPT                = regexp.MustCompile(`(?i)S\.?\s?G\.?\s?P\.?\s?T\b|\bALT\b`)
	labelSGOT                = regexp.MustCompile(`(?i)S\.?\s?G\.?\s?O\.?\s?T\b|\bAST\b`)
	labelAlkalinePhosphatase = regexp.MustCompile(`(?i)ALKALINE\s*PHOSPHATASE|\bALP\b`)

	// enzyme results often print the unit after the value: "56 U/L".
	valueBeforeEnzymeUnit = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*I?U/L\s*$`)
)

// Liver function rows carry their result at the end of the line, e.g.
// "S.G.P.T (A.L.T) Less Than 40 56".
var liverLineRules = []lineRule{
	{
		testName: TestBilirubinTotal,
		label:    labelBilirubinTotal,
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestBilirubinConjugated,
		label:    labelBilirubinConjugated,
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestBilirubinUnconjugated,
		label:    regexp.MustCompile(`(?i)BILIRUBIN\s*UNCONJUGATED|INDIRECT\s*BILIRUBIN`),
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestSGPT,
		label:    labelSGPT,
		values:   []valueStrategy{endOfLineValue(false), captureValue(valueBeforeEnzymeUnit)},
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestSGOT,
		label:    labelSGOT,
		values:   []valueStrategy{endOfLineValue(false), captureValue(valueBeforeEnzymeUnit)},
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestAlkalinePhosphatase,
		label:    labelAlkalinePhosphatase,
		values:   []valueStrategy{endOfLineValue(false), captureValue(valueBeforeEnzymeUnit)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestGammaGT,
		label:    regexp.MustCompile(`(?i)GAMMA\s*G\.?\s?T\.?|\bGGT\b`),
		values:   []valueStrategy{endOfLineValue(false), captureValue(valueBeforeEnzymeUnit)},
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestTotalProtein,
		label:    regexp.MustCompile(`(?i)TOTAL\s*PROTEIN`),
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestAlbumin,
		label:    regexp.MustCompile(`(?i)^ALBUMIN\s`),
		exclude:  regexp.MustCompile(`(?i)GLOBULINS`),
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestGlobulins,
		label:    regexp.MustCompile(`(?i)GLOBULINS`),
		values:   []valueStrategy{endOfLineValue(true)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestAGRatio,
		label:    regexp.MustCompile(`(?i)A\s*/\s*G\s*RATIO`),
		values:   []valueStrategy{endOfLineValue(false)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
}

var liverFallbackRules = []fallbackRule{
	{
		testName:    TestBilirubinTotal,
		labels:      []*regexp.Regexp{labelBilirubinTotal},
		decimalOnly: true,
		bound:       func(b domain.PlausibilityBounds) domain.Bound { return b.Bilirubin },
		ranges:      []rangeStrategy{intervalOnLine},
	},
	{
		testName:    TestBilirubinConjugated,
		labels:      []*regexp.Regexp{labelBilirubinConjugated},
		decimalOnly: true,
		bound:       func(b domain.PlausibilityBounds) domain.Bound { return b.Bilirubin },
		ranges:      []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestSGPT,
		labels:   []*regexp.Regexp{labelSGPT},
		bound:    func(b domain.PlausibilityBounds) domain.Bound { return b.Transaminase },
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestSGOT,
		labels:   []*regexp.Regexp{labelSGOT},
		bound:    func(b domain.PlausibilityBounds) domain.Bound { return b.Transaminase },
		ranges:   []rangeStrategy{lessThanOnLine, intervalOnLine},
	},
	{
		testName: TestAlkalinePhosphatase,
		labels:   []*regexp.Regexp{labelAlkalinePhosphatase},
		bound:    func(b domain.PlausibilityBounds) domain.Bound { return b.AlkalinePhosphatase },
		ranges:   []rangeStrategy{intervalOnLine},
	},
}

func (p *PanelParser) parseLiverFunction(text string) *domain.TestSet {
	tests := domain.NewTestSet()
	p.applyLineRules(text, liverLineRules, tests)
	p.applyFallbackRules(text, liverFallbackRules, tests)
	return tests
}
