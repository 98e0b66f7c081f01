// Package domain contains the core entities for laboratory report interpretation:
// patient identity recovered from report text, lab-panel types, parsed test results
// with their normal ranges, and the graded recommendations derived from them.
package domain

import (
	"errors"
	"strings"
)

// ReportType identifies the lab panel a report belongs to.
type ReportType string

const (
	ReportTypeCBC           ReportType = "CBC"
	ReportTypeLiverFunction ReportType = "Liver Function"
	ReportTypeDiabetes      ReportType = "Diabetes"
	ReportTypeThyroid       ReportType = "Thyroid"
	ReportTypeOther         ReportType = "Other"
)

// Gender is the patient gender recovered from a report.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Severity grades an abnormal finding. Values are ordered:
// none < moderate < high < critical.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// TestStatus is the normal/abnormal verdict for a test or a whole report.
type TestStatus string

const (
	StatusNormal   TestStatus = "normal"
	StatusAbnormal TestStatus = "abnormal"
)

// DeviationType records the direction of an abnormal value.
// An empty deviation means the direction could not be determined.
type DeviationType string

const (
	DeviationNone DeviationType = ""
	DeviationLow  DeviationType = "low"
	DeviationHigh DeviationType = "high"
)

// GlycemicStatus is the categorical band of an HbA1c result.
type GlycemicStatus string

const (
	GlycemicNormal      GlycemicStatus = "Normal"
	GlycemicPreDiabetes GlycemicStatus = "Pre-Diabetes"
	GlycemicDiabetes    GlycemicStatus = "Diabetes"
)

// HbA1c thresholds shared by the parser and the recommendation engine.
const (
	HbA1cPreDiabetesThreshold = 5.7
	HbA1cDiabetesThreshold    = 6.5
)

// ReportStatus is the review state of a persisted report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusReviewed  ReportStatus = "reviewed"
	ReportStatusCompleted ReportStatus = "completed"
)

// Validation errors for report data integrity
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidReportType     = errors.New("invalid report type")
	ErrInvalidGender         = errors.New("invalid gender")
	ErrInvalidSeverity       = errors.New("invalid severity")
	ErrInvalidRange          = errors.New("invalid normal range")
	ErrInvalidReportStatus   = errors.New("invalid report status")
	ErrNonFiniteValue        = errors.New("test value is not a finite number")
	ErrDuplicateReference    = errors.New("reference value with the same criteria already exists")
	ErrUnsupportedMimeType   = errors.New("unsupported file type for text extraction")
	ErrExtractionUnavailable = errors.New("text extraction backend not configured")
)

// AllReportTypes lists the panel types in classifier priority order, followed by Other.
func AllReportTypes() []ReportType {
	return []ReportType{
		ReportTypeCBC,
		ReportTypeLiverFunction,
		ReportTypeDiabetes,
		ReportTypeThyroid,
		ReportTypeOther,
	}
}

// IsValid reports whether rt is one of the known panel types.
func (rt ReportType) IsValid() bool {
	switch rt {
	case ReportTypeCBC, ReportTypeLiverFunction, ReportTypeDiabetes, ReportTypeThyroid, ReportTypeOther:
		return true
	default:
		return false
	}
}

func (rt ReportType) String() string {
	return string(rt)
}

// ParseReportType resolves a report type case-insensitively. Common
// aliases such as "lft" or "liver" are accepted.
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cbc", "complete blood count":
		return ReportTypeCBC, nil
	case "liver function", "liver", "lft", "liver_function":
		return ReportTypeLiverFunction, nil
	case "diabetes", "hba1c":
		return ReportTypeDiabetes, nil
	case "thyroid", "tft":
		return ReportTypeThyroid, nil
	case "other":
		return ReportTypeOther, nil
	default:
		return "", ErrInvalidReportType
	}
}

// IsValid reports whether g is a known gender.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// ParseGender maps a gender token by its first letter, the way lab reports
// abbreviate it (M, Male, F, Fem, ...).
func ParseGender(token string) (Gender, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	switch {
	case token == "":
		return "", false
	case strings.HasPrefix(token, "m"):
		return GenderMale, true
	case strings.HasPrefix(token, "f"):
		return GenderFemale, true
	case token == "other" || token == "o":
		return GenderOther, true
	default:
		return "", false
	}
}

// Rank returns the ordinal position of the severity; unknown values rank as none.
func (s Severity) Rank() int {
	switch s {
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// IsValid validates the severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

func (s Severity) String() string {
	return string(s)
}

// MaxSeverity returns the most severe of the given severities, or none.
func MaxSeverity(severities ...Severity) Severity {
	max := SeverityNone
	for _, s := range severities {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}

// GlycemicStatusFor classifies an HbA1c percentage against the 5.7/6.5 thresholds.
func GlycemicStatusFor(value float64) GlycemicStatus {
	switch {
	case value >= HbA1cDiabetesThreshold:
		return GlycemicDiabetes
	case value >= HbA1cPreDiabetesThreshold:
		return GlycemicPreDiabetes
	default:
		return GlycemicNormal
	}
}

// IsValid validates the glycemic status.
func (gs GlycemicStatus) IsValid() bool {
	switch gs {
	case GlycemicNormal, GlycemicPreDiabetes, GlycemicDiabetes:
		return true
	default:
		return false
	}
}

// IsValid validates the report review state.
func (rs ReportStatus) IsValid() bool {
	switch rs {
	case ReportStatusPending, ReportStatusReviewed, ReportStatusCompleted:
		return true
	default:
		return false
	}
}
