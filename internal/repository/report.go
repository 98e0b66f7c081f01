package repository

import (
	"encoding/json"
	"fmt"

	"github.com/labpanel-mcp-server/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// reportRow is the column form of a stored report. Structured parts are
// kept as JSON documents.
type reportRow struct {
	PatientName     string
	OverallStatus   string
	Severity        string
	PatientInfo     []byte
	Panel           []byte
	Recommendations []byte
	Summary         []byte
}

func encodeReport(report *domain.StoredReport) (*reportRow, error) {
	patientInfo, err := json.Marshal(report.PatientInfo)
	if err != nil {
		return nil, fmt.Errorf("encoding patient info: %w", err)
	}
	panel, err := json.Marshal(report.Panel)
	if err != nil {
		return nil, fmt.Errorf("encoding panel: %w", err)
	}
	var recommendations []byte
	if report.Recommendations != nil {
		if recommendations, err = json.Marshal(report.Recommendations); err != nil {
			return nil, fmt.Errorf("encoding recommendations: %w", err)
		}
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	return &reportRow{
		PatientName:     report.PatientInfo.NameOrEmpty(),
		OverallStatus:   string(report.Summary.OverallStatus),
		Severity:        string(report.Summary.Severity),
		PatientInfo:     patientInfo,
		Panel:           panel,
		Recommendations: recommendations,
		Summary:         summary,
	}, nil
}

func decodeReport(report *domain.StoredReport, row *reportRow) error {
	if len(row.PatientInfo) > 0 {
		if err := json.Unmarshal(row.PatientInfo, &report.PatientInfo); err != nil {
			return fmt.Errorf("decoding patient info: %w", err)
		}
	}
	if len(row.Panel) > 0 {
		if err := json.Unmarshal(row.Panel, &report.Panel); err != nil {
			return fmt.Errorf("decoding panel: %w", err)
		}
	}
	if report.Panel.Tests == nil {
		report.Panel.Tests = domain.NewTestSet()
	}
	if len(row.Recommendations) > 0 && string(row.Recommendations) != "null" {
		report.Recommendations = &domain.RecommendationReport{}
		if err := json.Unmarshal(row.Recommendations, report.Recommendations); err != nil {
			return fmt.Errorf("decoding recommendations: %w", err)
		}
	}
	if len(row.Summary) > 0 {
		if err := json.Unmarshal(row.Summary, &report.Summary); err != nil {
			return fmt.Errorf("decoding summary: %w", err)
		}
	}
	return nil
}

func validateReport(report *domain.StoredReport) error {
	if report.ID == "" {
		return domain.NewValidationError("id", "report id is required", nil)
	}
	if !report.ReportType.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidReportType, report.ReportType)
	}
	if report.Status == "" {
		report.Status = domain.ReportStatusPending
	}
	if !report.Status.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidReportStatus, report.Status)
	}
	return nil
}

func normalizeFilter(filter domain.ReportFilter) domain.ReportFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
