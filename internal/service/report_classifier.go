package service

import (
	"strings"

	"github.com/labpanel-mcp-server/internal/domain"
)

// reportKeywords drives report type detection. Entries are checked in order
// and the first entry with a filename or text hit wins.
var reportKeywords = []struct {
	reportType domain.ReportType
	filename   []string
	text       []string
}{
	{
		reportType: domain.ReportTypeCBC,
		filename:   []string{"cbc"},
		text:       []string{"complete blood count", "blood c/e", "hematology"},
	},
	{
		reportType: domain.ReportTypeLiverFunction,
		filename:   []string{"liver"},
		text:       []string{"liver function", "bilirubin", "sgpt", "sgot"},
	},
	{
		reportType: domain.ReportTypeDiabetes,
		filename:   []string{"diabetes", "sugar"},
		text:       []string{"hba1c", "glycosylated hemoglobin", "diabetes"},
	},
	{
		reportType: domain.ReportTypeThyroid,
		filename:   []string{"thyroid"},
		text:       []string{"thyroid", "tsh", "endocrine"},
	},
}

// ClassifyReportType infers the panel type from the file name and the
// extracted text. Matching is case-insensitive and never fails; unknown
// reports classify as Other.
func ClassifyReportType(filename, text string) domain.ReportType {
	name := strings.ToLower(filename)
	body := strings.ToLower(text)

	for _, entry := range reportKeywords {
		if containsAny(name, entry.filename) || containsAny(body, entry.text) {
			return entry.reportType
		}
	}
	return domain.ReportTypeOther
}

// DetectReportType infers the panel type from text alone.
func DetectReportType(text string) domain.ReportType {
	return ClassifyReportType("", text)
}

func containsAny(haystack string, needles []string) bool {
	if haystack == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
