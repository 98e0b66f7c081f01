package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// RecommendationEngine grades parsed test results and produces patient-facing advice.
type RecommendationEngine struct {
	logger *logrus.Logger
	rules  map[ruleKey]recommendationRule
}

// NewRecommendationEngine creates a new recommendation engine
func NewRecommendationEngine(logger *logrus.Logger) *RecommendationEngine {
	return &RecommendationEngine{
		logger: logger,
		rules:  recommendationRules,
	}
}

// GenerateRecommendations analyzes every test and aggregates the results into
// a report. A test whose analysis fails is logged and skipped; a failure of
// the engine itself is reported through Success=false and never panics out.
func (e *RecommendationEngine) GenerateRecommendations(tests *domain.TestSet, reportType domain.ReportType, patient domain.PatientInfo) (result *domain.RecommendationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"report_type": reportType,
				"panic":       r,
			}).Error("Recommendation generation panicked")
			result = &domain.RecommendationResult{
				Success: false,
				Error:   fmt.Sprintf("failed to generate recommendations: %v", r),
			}
		}
	}()

	report := &domain.RecommendationReport{
		OverallStatus:   domain.StatusNormal,
		Severity:        domain.SeverityNone,
		AbnormalTests:   []domain.AbnormalTest{},
		NormalTests:     []domain.NormalTest{},
		Recommendations: []string{},
		Lifestyle:       []string{},
		MedicalAdvice:   []string{},
		FollowUp:        []string{},
	}

	for _, test := range tests.Results() {
		analysis, err := e.analyzeIsolated(test)
		if err != nil {
			e.logger.WithError(err).WithField("test", test.TestName).Warn("Failed to analyze test")
			continue
		}

		if analysis.Status == domain.StatusAbnormal {
			report.AbnormalTests = append(report.AbnormalTests, domain.AbnormalTest{
				TestName:     test.TestName,
				Value:        test.Value,
				Unit:         test.Unit,
				NormalRange:  test.NormalRange,
				TestAnalysis: analysis,
			})
			report.Recommendations = append(report.Recommendations, analysis.Recommendations...)
			report.Lifestyle = append(report.Lifestyle, analysis.Lifestyle...)
			report.MedicalAdvice = append(report.MedicalAdvice, analysis.MedicalAdvice...)
			continue
		}

		report.NormalTests = append(report.NormalTests, domain.NormalTest{
			TestName: test.TestName,
			Value:    test.Value,
			Unit:     test.Unit,
		})
	}

	e.applyAdvisories(report)

	report.FollowUp = append(report.FollowUp, followUpByReportType[reportType]...)
	report.FollowUp = append(report.FollowUp, universalFollowUp...)

	report.Recommendations = dedupe(report.Recommendations)
	report.Lifestyle = dedupe(report.Lifestyle)
	report.MedicalAdvice = dedupe(report.MedicalAdvice)

	e.logger.WithFields(logrus.Fields{
		"report_type":    reportType,
		"overall_status": report.OverallStatus,
		"severity":       report.Severity,
		"abnormal_tests": len(report.AbnormalTests),
		"normal_tests":   len(report.NormalTests),
		"has_age":        patient.Age != nil,
		"has_gender":     patient.Gender != nil,
	}).Info("Generated recommendations")

	return &domain.RecommendationResult{Success: true, Data: report}
}

// applyAdvisories sets the report-level status and severity and adds the
// advisory that matches the worst finding.
func (e *RecommendationEngine) applyAdvisories(report *domain.RecommendationReport) {
	if len(report.AbnormalTests) == 0 {
		report.Recommendations = append(report.Recommendations, allNormalMessage)
		return
	}

	report.OverallStatus = domain.StatusAbnormal
	severities := make([]domain.Severity, 0, len(report.AbnormalTests))
	for _, t := range report.AbnormalTests {
		severities = append(severities, t.Severity)
	}
	report.Severity = domain.MaxSeverity(severities...)

	switch report.Severity {
	case domain.SeverityCritical:
		report.MedicalAdvice = append([]string{criticalAdvisory}, report.MedicalAdvice...)
	case domain.SeverityHigh:
		report.MedicalAdvice = append([]string{highAdvisory}, report.MedicalAdvice...)
	default:
		report.MedicalAdvice = append(report.MedicalAdvice, consultAdvisory)
	}
}

// AnalyzeTest grades a single result. HbA1c results carrying a glycemic
// status are graded from that status; other results are compared to their
// numeric range. A result with no usable range is abnormal with an
// undetermined direction and no severity.
func (e *RecommendationEngine) AnalyzeTest(test domain.TestResult) (domain.TestAnalysis, error) {
	if !domain.IsFinite(test.Value) {
		return domain.TestAnalysis{}, fmt.Errorf("%s: %w", test.TestName, domain.ErrNonFiniteValue)
	}

	if test.TestName == TestHbA1c && test.Status.IsValid() {
		return withEmptyLists(glycemicAnalysis(test.Value, test.Status)), nil
	}

	if test.NormalRange.IsInterval() {
		deviation := test.NormalRange.Deviation(test.Value)
		if deviation == domain.DeviationNone {
			return withEmptyLists(domain.TestAnalysis{
				Status:         domain.StatusNormal,
				Severity:       domain.SeverityNone,
				Interpretation: fmt.Sprintf("%s is within normal range.", test.TestName),
			}), nil
		}

		analysis, ok := domain.TestAnalysis{}, false
		if rule, exists := e.rules[ruleKey{test.TestName, deviation}]; exists {
			analysis, ok = rule(test.TestName, test.Value, test.NormalRange)
		}
		if !ok {
			analysis = defaultAnalysis(test.TestName, test.Value, deviation)
		}
		analysis.Status = domain.StatusAbnormal
		analysis.Deviation = deviation
		return withEmptyLists(analysis), nil
	}

	if test.TestName == TestHbA1c {
		return withEmptyLists(glycemicAnalysis(test.Value, domain.GlycemicStatusFor(test.Value))), nil
	}

	return withEmptyLists(domain.TestAnalysis{
		Status:          domain.StatusAbnormal,
		Severity:        domain.SeverityNone,
		Deviation:       domain.DeviationNone,
		Interpretation:  fmt.Sprintf("%s value is %s. Normal range not available.", test.TestName, domain.FormatValue(test.Value)),
		Recommendations: []string{genericConsultAdvice},
	}), nil
}

// analyzeIsolated runs AnalyzeTest and turns a panic into an error so the
// remaining tests are still graded.
func (e *RecommendationEngine) analyzeIsolated(test domain.TestResult) (analysis domain.TestAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: analysis panicked: %v", test.TestName, r)
		}
	}()
	return e.AnalyzeTest(test)
}

func withEmptyLists(a domain.TestAnalysis) domain.TestAnalysis {
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	if a.Lifestyle == nil {
		a.Lifestyle = []string{}
	}
	if a.MedicalAdvice == nil {
		a.MedicalAdvice = []string{}
	}
	return a
}

// dedupe removes repeated strings, keeping the first occurrence.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
