package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestParser() *PanelParser {
	return NewPanelParser(newTestLogger(), domain.DefaultParserConfig())
}

const cbcReport = `COMPLETE BLOOD COUNT
Hb 12 - 16 g/dl 6.5
Total RBC 4.0 - 6.0 x10^12/l 9.8
HCT 36 - 46 % 38.5
MCV 80 - 100 fl 85
MCH 27 - 32 pg 29.5
MCHC 32 - 36 g/dl 33.1
Platelet Count 150 - 400 x10^9/l 210
WBC Count 4 - 11 x10^9/l 7.5
Neutrophils 40 - 75 % 60`

func requireTest(t *testing.T, tests *domain.TestSet, name string) domain.TestResult {
	t.Helper()
	result, ok := tests.Get(name)
	require.True(t, ok, "expected test %q", name)
	return result
}

func assertInterval(t *testing.T, r *domain.NormalRange, min, max float64) {
	t.Helper()
	gotMin, gotMax, ok := r.Bounds()
	require.True(t, ok, "expected an interval range")
	assert.Equal(t, min, gotMin)
	assert.Equal(t, max, gotMax)
}

func TestPanelParser_CBC(t *testing.T) {
	result := newTestParser().ParseTestResults(cbcReport, domain.ReportTypeCBC)

	require.True(t, result.Success)
	assert.Equal(t, domain.ReportTypeCBC, result.ReportType)
	assert.Equal(t, []string{
		TestHb, TestTotalRBC, TestHCT, TestMCV, TestMCH, TestMCHC,
		TestPlateletCount, TestWBCCount, TestNeutrophils,
	}, result.Data.Names())

	hb := requireTest(t, result.Data, TestHb)
	assert.Equal(t, 6.5, hb.Value)
	assert.Equal(t, "g/dL", hb.Unit)
	assertInterval(t, hb.NormalRange, 12, 16)

	rbc := requireTest(t, result.Data, TestTotalRBC)
	assert.Equal(t, 4.8, rbc.Value)
	assertInterval(t, rbc.NormalRange, 4, 6)

	assert.Equal(t, 38.5, requireTest(t, result.Data, TestHCT).Value)
	assert.Equal(t, 85.0, requireTest(t, result.Data, TestMCV).Value)
	assert.Equal(t, 29.5, requireTest(t, result.Data, TestMCH).Value)
	assert.Equal(t, 33.1, requireTest(t, result.Data, TestMCHC).Value)
	assert.Equal(t, 210.0, requireTest(t, result.Data, TestPlateletCount).Value)
	assert.Equal(t, 7.5, requireTest(t, result.Data, TestWBCCount).Value)

	neutrophils := requireTest(t, result.Data, TestNeutrophils)
	assert.Equal(t, 60.0, neutrophils.Value)
	assertInterval(t, neutrophils.NormalRange, 40, 75)
}

func TestPanelParser_CBCFirstOccurrenceWins(t *testing.T) {
	text := "Hb 12 - 16 g/dl 13.1\nHb 12 - 16 g/dl 9.0"
	result := newTestParser().ParseTestResults(text, domain.ReportTypeCBC)

	assert.Equal(t, 13.1, requireTest(t, result.Data, TestHb).Value)
}

func TestPanelParser_CBCFallback(t *testing.T) {
	t.Run("labels without table layout", func(t *testing.T) {
		result := newTestParser().ParseTestResults("RBC: 4.52\nPlatelet 250\nWBC 8.1", domain.ReportTypeCBC)

		assert.Equal(t, []string{TestTotalRBC, TestPlateletCount, TestWBCCount}, result.Data.Names())
		assert.Equal(t, 4.52, requireTest(t, result.Data, TestTotalRBC).Value)
		assert.Equal(t, 250.0, requireTest(t, result.Data, TestPlateletCount).Value)
		assert.Equal(t, 8.1, requireTest(t, result.Data, TestWBCCount).Value)
	})

	t.Run("implausible values dropped", func(t *testing.T) {
		result := newTestParser().ParseTestResults("Platelet 9000\nWBC 85.5", domain.ReportTypeCBC)
		assert.Equal(t, 0, result.Data.Len())
	})

	t.Run("skipped when enough tests found", func(t *testing.T) {
		text := cbcReport + "\nRBC 3.3"
		result := newTestParser().ParseTestResults(text, domain.ReportTypeCBC)
		assert.Equal(t, 4.8, requireTest(t, result.Data, TestTotalRBC).Value)
	})
}

func TestPanelParser_CorrectRBC(t *testing.T) {
	p := newTestParser()

	assert.Equal(t, 4.8, p.correctRBC(9.8))
	assert.Equal(t, 5.2, p.correctRBC(10.2))
	assert.Equal(t, 3.25, p.correctRBC(8.25))
	assert.Equal(t, 5.2, p.correctRBC(5.2))
	assert.Equal(t, 5.5, p.correctRBC(5.5))
	assert.Equal(t, 13.5, p.correctRBC(13.5))
	assert.Equal(t, 8.0, p.correctRBC(8.0))
}

func TestPanelParser_CorrectedRBCStored(t *testing.T) {
	result := newTestParser().ParseTestResults("Total RBC 4 - 6 x10^12/l 10.2", domain.ReportTypeCBC)

	assert.Equal(t, 5.2, requireTest(t, result.Data, TestTotalRBC).Value)
}

func TestNewPanelParser_DefaultsThresholdOnly(t *testing.T) {
	config := domain.DefaultParserConfig()
	config.FallbackThreshold = 0
	config.RBCCorrectionOffset = 4
	config.Bounds.PlateletCount = domain.Bound{Min: 10, Max: 2000}

	p := NewPanelParser(newTestLogger(), config)

	assert.Equal(t, domain.DefaultParserConfig().FallbackThreshold, p.config.FallbackThreshold)
	assert.Equal(t, 4.0, p.config.RBCCorrectionOffset)
	assert.Equal(t, domain.Bound{Min: 10, Max: 2000}, p.config.Bounds.PlateletCount)
	assert.Equal(t, 5.2, p.correctRBC(9.2))
}

func TestPanelParser_LiverFunction(t *testing.T) {
	text := `LIVER FUNCTION TEST
BILIRUBIN TOTAL 0.3 - 1.2 0.8
BILIRUBIN CONJUGATED Less Than 0.3 0.1
BILIRUBIN UNCONJUGATED 0.1 - 1.0 0.7
S.G.P.T (A.L.T) Less Than 40 56
S.G.O.T (A.S.T) Less Than 40 35
ALKALINE PHOSPHATASE 40 - 129 110
TOTAL PROTEIN 6.4 - 8.3 7.1
ALBUMIN 3.5 - 5.2 4.2
GLOBULINS 2.0 - 3.5 2.9`

	result := newTestParser().ParseTestResults(text, domain.ReportTypeLiverFunction)
	require.True(t, result.Success)

	total := requireTest(t, result.Data, TestBilirubinTotal)
	assert.Equal(t, 0.8, total.Value)
	assert.Equal(t, "mg/dL", total.Unit)
	assertInterval(t, total.NormalRange, 0.3, 1.2)

	conjugated := requireTest(t, result.Data, TestBilirubinConjugated)
	assert.Equal(t, 0.1, conjugated.Value)
	assertInterval(t, conjugated.NormalRange, 0, 0.3)

	assert.Equal(t, 0.7, requireTest(t, result.Data, TestBilirubinUnconjugated).Value)

	sgpt := requireTest(t, result.Data, TestSGPT)
	assert.Equal(t, 56.0, sgpt.Value)
	assertInterval(t, sgpt.NormalRange, 0, 40)

	assert.Equal(t, 35.0, requireTest(t, result.Data, TestSGOT).Value)
	assert.Equal(t, 110.0, requireTest(t, result.Data, TestAlkalinePhosphatase).Value)
	assert.Equal(t, 7.1, requireTest(t, result.Data, TestTotalProtein).Value)
	assert.Equal(t, 4.2, requireTest(t, result.Data, TestAlbumin).Value)
	assert.Equal(t, 2.9, requireTest(t, result.Data, TestGlobulins).Value)
}

func TestPanelParser_LiverFallback(t *testing.T) {
	text := "Liver panel: SGPT value 48 U/L; Total Bilirubin measured 1.4 mg/dl"
	result := newTestParser().ParseTestResults(text, domain.ReportTypeLiverFunction)

	assert.Equal(t, 48.0, requireTest(t, result.Data, TestSGPT).Value)
	assert.Equal(t, 1.4, requireTest(t, result.Data, TestBilirubinTotal).Value)
}

func TestPanelParser_Diabetes(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		status   domain.GlycemicStatus
	}{
		{
			name:     "flagged result beats legend",
			text:     "HbA1c 9.9 % H\nNormal: < 5.7 %\nPre-Diabetes: 5.7 - 6.4 %\nDiabetes: >= 6.5 %",
			expected: 9.9,
			status:   domain.GlycemicDiabetes,
		},
		{
			name:     "labelled result",
			text:     "Glycosylated Hemoglobin (HbA1c) 6.1 %\nNormal < 5.7 %\nDiabetes >= 6.5 %",
			expected: 6.1,
			status:   domain.GlycemicPreDiabetes,
		},
		{
			name:     "unlabelled result with diabetes legend",
			text:     "Result 7.4 %\nReference: Normal < 5.7 %, Pre-Diabetes 5.7 - 6.4 %, Diabetes >= 6.5 %",
			expected: 7.4,
			status:   domain.GlycemicDiabetes,
		},
		{
			name:     "result below diabetic band with full legend",
			text:     "Result 6.0 %\nReference: Normal < 5.7 %, Pre-Diabetes 5.7 - 6.4 %, Diabetes >= 6.5 %",
			expected: 6.0,
			status:   domain.GlycemicPreDiabetes,
		},
		{
			name:     "largest plausible percentage",
			text:     "Glycated value 5.2 %\nEstimated 3.1 %",
			expected: 5.2,
			status:   domain.GlycemicNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestParser().ParseTestResults(tt.text, domain.ReportTypeDiabetes)
			require.True(t, result.Success)

			hba1c := requireTest(t, result.Data, TestHbA1c)
			assert.Equal(t, tt.expected, hba1c.Value)
			assert.Equal(t, tt.status, hba1c.Status)
			assert.Equal(t, "%", hba1c.Unit)
			assert.True(t, hba1c.NormalRange.IsCategorical())
		})
	}

	t.Run("no result", func(t *testing.T) {
		result := newTestParser().ParseTestResults("HbA1c not performed", domain.ReportTypeDiabetes)
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.Data.Len())
	})
}

func TestPanelParser_Thyroid(t *testing.T) {
	text := "THYROID PROFILE\nTSH 2.5\nFree T3 3.1\nFree T4 1.2\nT3 120\nT4 8.1"
	result := newTestParser().ParseTestResults(text, domain.ReportTypeThyroid)

	assert.Equal(t, []string{TestTSH, TestFreeT3, TestFreeT4, TestT3, TestT4}, result.Data.Names())
	assert.Equal(t, 2.5, requireTest(t, result.Data, TestTSH).Value)
	assert.Equal(t, 3.1, requireTest(t, result.Data, TestFreeT3).Value)
	assert.Equal(t, 120.0, requireTest(t, result.Data, TestT3).Value)
	assert.Equal(t, 8.1, requireTest(t, result.Data, TestT4).Value)
	assert.Nil(t, requireTest(t, result.Data, TestTSH).NormalRange)
}

func TestPanelParser_ThyroidColonWithoutSpace(t *testing.T) {
	result := newTestParser().ParseTestResults("TSH:2.5\nFree T4:1.3\nT3:110", domain.ReportTypeThyroid)

	assert.Equal(t, []string{TestTSH, TestFreeT4, TestT3}, result.Data.Names())
	assert.Equal(t, 2.5, requireTest(t, result.Data, TestTSH).Value)
	assert.Equal(t, 1.3, requireTest(t, result.Data, TestFreeT4).Value)
	assert.Equal(t, 110.0, requireTest(t, result.Data, TestT3).Value)
}

func TestPanelParser_ReportTypeResolution(t *testing.T) {
	p := newTestParser()

	t.Run("detects missing type", func(t *testing.T) {
		result := p.ParseTestResults("THYROID PROFILE\nTSH 5.2", "")
		assert.Equal(t, domain.ReportTypeThyroid, result.ReportType)
		assert.Equal(t, 1, result.Data.Len())
	})

	t.Run("unknown report yields empty set", func(t *testing.T) {
		result := p.ParseTestResults("lipid profile", domain.ReportTypeOther)
		assert.True(t, result.Success)
		assert.Equal(t, domain.ReportTypeOther, result.ReportType)
		assert.Equal(t, 0, result.Data.Len())
	})

	t.Run("empty text", func(t *testing.T) {
		result := p.ParseTestResults("", domain.ReportTypeCBC)
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.Data.Len())
	})
}
