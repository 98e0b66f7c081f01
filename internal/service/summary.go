package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/labpanel-mcp-server/internal/domain"
)

const (
	maxKeyFindings    = 3
	allNormalFindings = "All test parameters are within normal limits"
)

// GenerateSummaryReport condenses a recommendation report into a digest.
// A nil report is summarized as an empty one. Key findings list the
// high and critical results, worst first, capped at three.
func GenerateSummaryReport(patient domain.PatientInfo, reportType domain.ReportType, report *domain.RecommendationReport) domain.Summary {
	summary := domain.Summary{
		PatientName:   patient.Name,
		ReportType:    reportType,
		OverallStatus: domain.StatusNormal,
		Severity:      domain.SeverityNone,
		KeyFindings:   []string{},
	}
	if report == nil {
		report = &domain.RecommendationReport{}
	}

	if report.OverallStatus != "" {
		summary.OverallStatus = report.OverallStatus
	}
	if report.Severity != "" {
		summary.Severity = report.Severity
	}
	summary.AbnormalCount = len(report.AbnormalTests)
	summary.TotalTests = len(report.AbnormalTests) + len(report.NormalTests)

	if len(report.AbnormalTests) == 0 {
		summary.KeyFindings = append(summary.KeyFindings, allNormalFindings)
		return summary
	}

	significant := make([]domain.AbnormalTest, 0, len(report.AbnormalTests))
	for _, t := range report.AbnormalTests {
		if t.Severity.Rank() >= domain.SeverityHigh.Rank() {
			significant = append(significant, t)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		return significant[i].Severity.Rank() > significant[j].Severity.Rank()
	})
	if len(significant) > maxKeyFindings {
		significant = significant[:maxKeyFindings]
	}
	for _, t := range significant {
		summary.KeyFindings = append(summary.KeyFindings, formatFinding(t))
	}
	return summary
}

func formatFinding(t domain.AbnormalTest) string {
	value := strings.TrimSpace(domain.FormatValue(t.Value) + " " + t.Unit)
	return fmt.Sprintf("%s: %s (%s)", t.TestName, value, t.Severity)
}
