package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

func newTestEngine() *RecommendationEngine {
	return NewRecommendationEngine(newTestLogger())
}

func interval(min, max float64) *domain.NormalRange {
	return domain.MustIntervalRange(min, max)
}

func TestRecommendationEngine_AnalyzeTest(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name           string
		test           domain.TestResult
		status         domain.TestStatus
		severity       domain.Severity
		deviation      domain.DeviationType
		interpretation string
	}{
		{
			name:           "hemoglobin critical low",
			test:           domain.TestResult{TestName: TestHb, Value: 6.5, NormalRange: interval(12, 16)},
			status:         domain.StatusAbnormal,
			severity:       domain.SeverityCritical,
			deviation:      domain.DeviationLow,
			interpretation: "Hemoglobin is low (6.5 g/dL), suggesting possible anemia.",
		},
		{
			name:      "hemoglobin low",
			test:      domain.TestResult{TestName: TestHb, Value: 10.2, NormalRange: interval(12, 16)},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityHigh,
			deviation: domain.DeviationLow,
		},
		{
			name:           "within range",
			test:           domain.TestResult{TestName: TestHb, Value: 13, NormalRange: interval(12, 16)},
			status:         domain.StatusNormal,
			severity:       domain.SeverityNone,
			interpretation: "Hb is within normal range.",
		},
		{
			name:      "boundary value is normal",
			test:      domain.TestResult{TestName: TestPlateletCount, Value: 150, NormalRange: interval(150, 400)},
			status:    domain.StatusNormal,
			severity:  domain.SeverityNone,
			deviation: domain.DeviationNone,
		},
		{
			name:      "platelets critical",
			test:      domain.TestResult{TestName: TestPlateletCount, Value: 40, NormalRange: interval(150, 400)},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityCritical,
			deviation: domain.DeviationLow,
		},
		{
			name:      "transaminase over ten times upper limit",
			test:      domain.TestResult{TestName: TestSGPT, Value: 450, NormalRange: interval(0, 40)},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityCritical,
			deviation: domain.DeviationHigh,
		},
		{
			name:      "transaminase mildly raised",
			test:      domain.TestResult{TestName: TestSGOT, Value: 56, NormalRange: interval(0, 40)},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityModerate,
			deviation: domain.DeviationHigh,
		},
		{
			name:           "no specific rule",
			test:           domain.TestResult{TestName: TestMCV, Value: 70, NormalRange: interval(80, 100)},
			status:         domain.StatusAbnormal,
			severity:       domain.SeverityModerate,
			deviation:      domain.DeviationLow,
			interpretation: "MCV is low (70).",
		},
		{
			name:           "hba1c diabetic",
			test:           domain.TestResult{TestName: TestHbA1c, Value: 9.9, NormalRange: domain.HbA1cRange(), Status: domain.GlycemicDiabetes},
			status:         domain.StatusAbnormal,
			severity:       domain.SeverityHigh,
			deviation:      domain.DeviationHigh,
			interpretation: "HbA1c indicates diabetes (9.9%). Blood sugar control is needed.",
		},
		{
			name:      "hba1c severe",
			test:      domain.TestResult{TestName: TestHbA1c, Value: 10.5, Status: domain.GlycemicDiabetes},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityCritical,
			deviation: domain.DeviationHigh,
		},
		{
			name:     "hba1c without status graded by value",
			test:     domain.TestResult{TestName: TestHbA1c, Value: 6.0},
			status:   domain.StatusAbnormal,
			severity: domain.SeverityModerate,
		},
		{
			name:      "tsh high",
			test:      domain.TestResult{TestName: TestTSH, Value: 12, NormalRange: interval(0.4, 4.0)},
			status:    domain.StatusAbnormal,
			severity:  domain.SeverityHigh,
			deviation: domain.DeviationHigh,
		},
		{
			name:           "no range available",
			test:           domain.TestResult{TestName: TestTSH, Value: 2.5},
			status:         domain.StatusAbnormal,
			severity:       domain.SeverityNone,
			deviation:      domain.DeviationNone,
			interpretation: "TSH value is 2.5. Normal range not available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := engine.AnalyzeTest(tt.test)
			require.NoError(t, err)

			assert.Equal(t, tt.status, analysis.Status)
			assert.Equal(t, tt.severity, analysis.Severity)
			if tt.deviation != "" || tt.status == domain.StatusNormal {
				assert.Equal(t, tt.deviation, analysis.Deviation)
			}
			if tt.interpretation != "" {
				assert.Equal(t, tt.interpretation, analysis.Interpretation)
			}
			assert.NotNil(t, analysis.Recommendations)
			assert.NotNil(t, analysis.Lifestyle)
			assert.NotNil(t, analysis.MedicalAdvice)
		})
	}
}

func TestRecommendationEngine_AnalyzeTestRejectsNonFinite(t *testing.T) {
	_, err := newTestEngine().AnalyzeTest(domain.TestResult{TestName: TestHb, Value: math.NaN()})
	assert.ErrorIs(t, err, domain.ErrNonFiniteValue)
}

func TestRecommendationEngine_TransaminaseUrgentAdvice(t *testing.T) {
	analysis, err := newTestEngine().AnalyzeTest(domain.TestResult{TestName: TestSGPT, Value: 450, NormalRange: interval(0, 40)})
	require.NoError(t, err)

	require.Len(t, analysis.MedicalAdvice, 2)
	assert.Contains(t, analysis.MedicalAdvice[0], "URGENT")
	assert.Contains(t, analysis.Recommendations, "Complete alcohol cessation")
}

func TestRecommendationEngine_FailingTestIsSkipped(t *testing.T) {
	engine := newTestEngine()
	engine.rules = map[ruleKey]recommendationRule{
		{TestHb, domain.DeviationLow}: func(string, float64, *domain.NormalRange) (domain.TestAnalysis, bool) {
			panic("broken rule")
		},
		{TestPlateletCount, domain.DeviationLow}: plateletsLow,
	}

	tests := domain.NewTestSet()
	tests.Add(domain.TestResult{TestName: TestHb, Value: 6.5, NormalRange: interval(12, 16)})
	tests.Add(domain.TestResult{TestName: TestPlateletCount, Value: 40, NormalRange: interval(150, 400)})
	tests.Add(domain.TestResult{TestName: TestWBCCount, Value: 7.5, NormalRange: interval(4, 11)})

	result := engine.GenerateRecommendations(tests, domain.ReportTypeCBC, domain.PatientInfo{})
	require.True(t, result.Success)

	require.Len(t, result.Data.AbnormalTests, 1)
	assert.Equal(t, TestPlateletCount, result.Data.AbnormalTests[0].TestName)
	require.Len(t, result.Data.NormalTests, 1)
	assert.Equal(t, TestWBCCount, result.Data.NormalTests[0].TestName)
}

func TestRecommendationEngine_GenerateRecommendations(t *testing.T) {
	engine := newTestEngine()

	t.Run("critical finding", func(t *testing.T) {
		tests := domain.NewTestSet()
		tests.Add(domain.TestResult{TestName: TestHb, Value: 6.5, Unit: "g/dL", NormalRange: interval(12, 16)})
		tests.Add(domain.TestResult{TestName: TestPlateletCount, Value: 210, NormalRange: interval(150, 400)})
		tests.Add(domain.TestResult{TestName: TestWBCCount, Value: 7.5, NormalRange: interval(4, 11)})

		result := engine.GenerateRecommendations(tests, domain.ReportTypeCBC, domain.PatientInfo{})
		require.True(t, result.Success)
		report := result.Data

		assert.Equal(t, domain.StatusAbnormal, report.OverallStatus)
		assert.Equal(t, domain.SeverityCritical, report.Severity)
		require.Len(t, report.AbnormalTests, 1)
		assert.Equal(t, TestHb, report.AbnormalTests[0].TestName)
		assert.Contains(t, report.AbnormalTests[0].Interpretation, "possible anemia")
		assert.Len(t, report.NormalTests, 2)
		require.NotEmpty(t, report.MedicalAdvice)
		assert.Equal(t, criticalAdvisory, report.MedicalAdvice[0])
		assert.Contains(t, report.Recommendations, "Iron-rich foods like spinach, red meat, and lentils")
		assert.Len(t, report.FollowUp, 6)
		assert.Equal(t, universalFollowUp, report.FollowUp[3:])
	})

	t.Run("all normal", func(t *testing.T) {
		tests := domain.NewTestSet()
		tests.Add(domain.TestResult{TestName: TestHb, Value: 13.5, NormalRange: interval(12, 16)})

		result := engine.GenerateRecommendations(tests, domain.ReportTypeOther, domain.PatientInfo{})
		require.True(t, result.Success)

		assert.Equal(t, domain.StatusNormal, result.Data.OverallStatus)
		assert.Equal(t, domain.SeverityNone, result.Data.Severity)
		assert.Equal(t, []string{allNormalMessage}, result.Data.Recommendations)
		assert.Empty(t, result.Data.MedicalAdvice)
		assert.Equal(t, universalFollowUp, result.Data.FollowUp)
	})

	t.Run("moderate findings get consult advisory", func(t *testing.T) {
		tests := domain.NewTestSet()
		tests.Add(domain.TestResult{TestName: TestSGPT, Value: 56, NormalRange: interval(0, 40)})
		tests.Add(domain.TestResult{TestName: TestSGOT, Value: 60, NormalRange: interval(0, 40)})

		result := engine.GenerateRecommendations(tests, domain.ReportTypeLiverFunction, domain.PatientInfo{})
		require.True(t, result.Success)

		assert.Equal(t, domain.SeverityModerate, result.Data.Severity)
		assert.Equal(t, consultAdvisory, result.Data.MedicalAdvice[len(result.Data.MedicalAdvice)-1])
		assert.Equal(t, 1, countOf(result.Data.Recommendations, "Complete alcohol cessation"))
	})

	t.Run("undetermined results", func(t *testing.T) {
		tests := domain.NewTestSet()
		tests.Add(domain.TestResult{TestName: TestTSH, Value: 2.5})

		result := engine.GenerateRecommendations(tests, domain.ReportTypeThyroid, domain.PatientInfo{})
		require.True(t, result.Success)

		assert.Equal(t, domain.StatusAbnormal, result.Data.OverallStatus)
		assert.Equal(t, domain.SeverityNone, result.Data.Severity)
		assert.Contains(t, result.Data.MedicalAdvice, consultAdvisory)
	})

	t.Run("non-finite value skipped", func(t *testing.T) {
		tests := domain.NewTestSet()
		tests.Add(domain.TestResult{TestName: TestHb, Value: math.Inf(1), NormalRange: interval(12, 16)})
		tests.Add(domain.TestResult{TestName: TestWBCCount, Value: 7.5, NormalRange: interval(4, 11)})

		result := engine.GenerateRecommendations(tests, domain.ReportTypeCBC, domain.PatientInfo{})
		require.True(t, result.Success)
		assert.Empty(t, result.Data.AbnormalTests)
		assert.Len(t, result.Data.NormalTests, 1)
	})

	t.Run("empty set", func(t *testing.T) {
		result := engine.GenerateRecommendations(domain.NewTestSet(), domain.ReportTypeCBC, domain.PatientInfo{})
		require.True(t, result.Success)
		assert.Equal(t, domain.StatusNormal, result.Data.OverallStatus)
		assert.NotNil(t, result.Data.AbnormalTests)
		assert.NotNil(t, result.Data.NormalTests)
	})
}

func countOf(items []string, item string) int {
	n := 0
	for _, i := range items {
		if i == item {
			n++
		}
	}
	return n
}
