package service

import (
	"regexp"

	"github.com/labpanel-mcp-server/internal/domain"
)

var (
	unitGramsPerDL = regexp.MustCompile(`(?i)g/dl?`)
	unitPercent    = regexp.MustCompile(`%`)
	unitFemtoliter = regexp.MustCompile(`(?i)\bfl?\b`)
	unitPicogram   = regexp.MustCompile(`(?i)\b(?:pg|ng)\b`)

	labelTotalRBC = regexp.MustCompile(`(?i)Total\s*RBC`)
	labelPlatelet = regexp.MustCompile(`(?i)Platelet\s*Count`)
	labelWBC      = regexp.MustCompile(`(?i)WBC\s*Count|\bTLC\b`)
)

// cbcLineRules recognize complete blood count rows such as
// "Hb 12 - 16 g/dl 13.2" or "Platelet Count 150 - 400 x10^9/l 210".
var cbcLineRules = []lineRule{
	{
		testName: TestHb,
		label:    regexp.MustCompile(`(?i)^Hb\s`),
		unit:     unitGramsPerDL,
		values:   []valueStrategy{numberAfterUnit(unitGramsPerDL)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName:   TestTotalRBC,
		label:      labelTotalRBC,
		values:     []valueStrategy{numberAfterUnit(multiplierUnit), lastCandidateAfter(labelTotalRBC, true)},
		ranges:     []rangeStrategy{fixedRange(4, 6)},
		correctRBC: true,
	},
	{
		testName: TestHCT,
		label:    regexp.MustCompile(`(?i)^HCT\s`),
		unit:     unitPercent,
		values:   []valueStrategy{numberAfterUnit(unitPercent)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestMCV,
		label:    regexp.MustCompile(`(?i)^MCV\s`),
		unit:     unitFemtoliter,
		values:   []valueStrategy{numberAfterUnit(unitFemtoliter)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestMCH,
		label:    regexp.MustCompile(`(?i)^MCH\s`),
		unit:     unitPicogram,
		values:   []valueStrategy{numberAfterUnit(unitPicogram)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestMCHC,
		label:    regexp.MustCompile(`(?i)^MCHC\s`),
		unit:     unitGramsPerDL,
		values:   []valueStrategy{numberAfterUnit(unitGramsPerDL)},
		ranges:   []rangeStrategy{intervalOnLine},
	},
	{
		testName: TestPlateletCount,
		label:    labelPlatelet,
		values:   []valueStrategy{numberAfterUnit(multiplierUnit), lastCandidateAfter(labelPlatelet, false)},
		ranges:   []rangeStrategy{fixedRange(150, 400)},
	},
	{
		testName: TestWBCCount,
		label:    labelWBC,
		values:   []valueStrategy{numberAfterUnit(multiplierUnit), lastCandidateAfter(labelWBC, true)},
		ranges:   []rangeStrategy{fixedRange(4, 11)},
	},
	differentialRule(TestNeutrophils, `(?i)^Neutrophils\s`, 40, 75),
	differentialRule(TestLymphocytes, `(?i)^Lymphocytes\s`, 20, 50),
	differentialRule(TestMonocytes, `(?i)^Monocytes\s`, 2, 10),
	differentialRule(TestEosinophils, `(?i)^Eosinophils\s`, 1, 6),
}

// differentialRule builds a white cell differential row: a percentage with a
// standard range when the line prints none.
func differentialRule(testName, label string, min, max float64) lineRule {
	return lineRule{
		testName: testName,
		label:    regexp.MustCompile(label),
		unit:     unitPercent,
		values:   []valueStrategy{numberAfterUnit(unitPercent)},
		ranges:   []rangeStrategy{fixedRange(min, max)},
	}
}

var cbcFallbackRules = []fallbackRule{
	{
		testName:    TestTotalRBC,
		labels:      []*regexp.Regexp{labelTotalRBC, regexp.MustCompile(`(?i)\bRBC\b`)},
		decimalOnly: true,
		bound:       func(b domain.PlausibilityBounds) domain.Bound { return b.TotalRBC },
		ranges:      []rangeStrategy{fixedRange(4, 6)},
		correctRBC:  true,
	},
	{
		testName: TestPlateletCount,
		labels:   []*regexp.Regexp{labelPlatelet, regexp.MustCompile(`(?i)Platelet`)},
		bound:    func(b domain.PlausibilityBounds) domain.Bound { return b.PlateletCount },
		ranges:   []rangeStrategy{fixedRange(150, 400)},
	},
	{
		testName:    TestWBCCount,
		labels:      []*regexp.Regexp{labelWBC, regexp.MustCompile(`(?i)\bWBC\b`)},
		decimalOnly: true,
		bound:       func(b domain.PlausibilityBounds) domain.Bound { return b.WBCCount },
		ranges:      []rangeStrategy{fixedRange(4, 11)},
	},
}

func (p *PanelParser) parseCBC(text string) *domain.TestSet {
	tests := domain.NewTestSet()
	p.applyLineRules(text, cbcLineRules, tests)
	p.applyFallbackRules(text, cbcFallbackRules, tests)
	return tests
}
