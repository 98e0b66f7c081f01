package domain

import (
	"time"
)

// Core Data Models

// PatientInfo holds the identity fields recovered from report text.
// Every field is optional; nil means the field was not found.
type PatientInfo struct {
	Name             *string    `json:"name"`
	Age              *int       `json:"age"`
	Gender           *Gender    `json:"gender"`
	RegistrationDate *time.Time `json:"registration_date"`
	PatientNumber    *string    `json:"patient_number"`
}

// IsEmpty reports whether nothing was extracted.
func (p PatientInfo) IsEmpty() bool {
	return p.Name == nil && p.Age == nil && p.Gender == nil && p.RegistrationDate == nil && p.PatientNumber == nil
}

// NameOrEmpty returns the patient name or "".
func (p PatientInfo) NameOrEmpty() string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

// ParsedPanel is the structured form of one report: its panel type and tests.
type ParsedPanel struct {
	ReportType ReportType `json:"report_type"`
	Tests      *TestSet   `json:"tests"`
}

// TestAnalysis is the verdict for a single test.
type TestAnalysis struct {
	Status          TestStatus    `json:"status"`
	Severity        Severity      `json:"severity"`
	Deviation       DeviationType `json:"deviation,omitempty"`
	Interpretation  string        `json:"interpretation"`
	Recommendations []string      `json:"recommendations"`
	Lifestyle       []string      `json:"lifestyle"`
	MedicalAdvice   []string      `json:"medical_advice"`
}

// AbnormalTest pairs a test's identity with its analysis.
type AbnormalTest struct {
	TestName    string       `json:"test_name"`
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	NormalRange *NormalRange `json:"normal_range,omitempty"`
	TestAnalysis
}

// NormalTest is a test that fell within its range.
type NormalTest struct {
	TestName string  `json:"test_name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}

// RecommendationReport aggregates per-test analyses into report-level advice.
type RecommendationReport struct {
	OverallStatus   TestStatus     `json:"overall_status"`
	Severity        Severity       `json:"severity"`
	AbnormalTests   []AbnormalTest `json:"abnormal_tests"`
	NormalTests     []NormalTest   `json:"normal_tests"`
	Recommendations []string       `json:"recommendations"`
	Lifestyle       []string       `json:"lifestyle"`
	MedicalAdvice   []string       `json:"medical_advice"`
	FollowUp        []string       `json:"follow_up"`
}

// Summary is the short digest shown alongside a report.
type Summary struct {
	PatientName   *string    `json:"patient_name"`
	ReportType    ReportType `json:"report_type"`
	OverallStatus TestStatus `json:"overall_status"`
	Severity      Severity   `json:"severity"`
	TotalTests    int        `json:"total_tests"`
	AbnormalCount int        `json:"abnormal_count"`
	KeyFindings   []string   `json:"key_findings"`
}

// Request/Response Models

// ParseResult is the outcome of parsing report text into tests.
// On failure Data is empty and Error carries the message.
type ParseResult struct {
	Success    bool       `json:"success"`
	Data       *TestSet   `json:"data"`
	ReportType ReportType `json:"report_type"`
	Error      string     `json:"error,omitempty"`
}

// Panel returns the parse result as a ParsedPanel.
func (r *ParseResult) Panel() ParsedPanel {
	tests := r.Data
	if tests == nil {
		tests = NewTestSet()
	}
	return ParsedPanel{ReportType: r.ReportType, Tests: tests}
}

// RecommendationResult is the outcome of the recommendation engine.
type RecommendationResult struct {
	Success bool                  `json:"success"`
	Data    *RecommendationReport `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// ExtractionResult is the raw text recovered from an uploaded document.
type ExtractionResult struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages,omitempty"`
	Source     string  `json:"source"`
	Error      string  `json:"error,omitempty"`
}

// TextQuality reports whether extracted text is usable for parsing.
type TextQuality struct {
	IsValid     bool     `json:"is_valid"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// ReferenceGender scopes a stored reference value; "both" matches any patient.
type ReferenceGender string

const (
	ReferenceGenderMale   ReferenceGender = "male"
	ReferenceGenderFemale ReferenceGender = "female"
	ReferenceGenderOther  ReferenceGender = "other"
	ReferenceGenderBoth   ReferenceGender = "both"
)

// IsValid validates the reference gender.
func (g ReferenceGender) IsValid() bool {
	switch g {
	case ReferenceGenderMale, ReferenceGenderFemale, ReferenceGenderOther, ReferenceGenderBoth:
		return true
	default:
		return false
	}
}

// ReferenceValue is a stored per-demographic normal range for one test.
type ReferenceValue struct {
	ID           string          `json:"id"`
	TestCategory ReportType      `json:"test_category"`
	TestName     string          `json:"test_name"`
	TestUnit     string          `json:"test_unit"`
	MinValue     float64         `json:"min_value"`
	MaxValue     float64         `json:"max_value"`
	Gender       ReferenceGender `json:"gender"`
	AgeMin       int             `json:"age_min"`
	AgeMax       int             `json:"age_max"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks a reference value before it is stored.
func (r *ReferenceValue) Validate() error {
	if !r.TestCategory.IsValid() {
		return NewValidationError("test_category", "unknown report type", r.TestCategory)
	}
	if r.TestName == "" {
		return NewValidationError("test_name", "test name is required", nil)
	}
	if !IsFinite(r.MinValue) || !IsFinite(r.MaxValue) || r.MinValue > r.MaxValue {
		return NewValidationError("min_value", "min value must be finite and not exceed max value", r.MinValue)
	}
	if r.Gender == "" {
		r.Gender = ReferenceGenderBoth
	}
	if !r.Gender.IsValid() {
		return NewValidationError("gender", "gender must be male, female, other or both", r.Gender)
	}
	if r.AgeMax == 0 {
		r.AgeMax = 150
	}
	if r.AgeMin < 0 || r.AgeMin > r.AgeMax {
		return NewValidationError("age_min", "age range is invalid", r.AgeMin)
	}
	return nil
}

// Matches reports whether the reference applies to a patient of the given gender and age.
func (r *ReferenceValue) Matches(gender Gender, age int) bool {
	if r.Gender != ReferenceGenderBoth && string(r.Gender) != string(gender) {
		return false
	}
	return age >= r.AgeMin && age <= r.AgeMax
}

// Range returns the stored bounds as an interval range.
func (r *ReferenceValue) Range() (*NormalRange, error) {
	return NewIntervalRange(r.MinValue, r.MaxValue)
}

// ReferenceComparison compares one test against its stored reference value.
type ReferenceComparison struct {
	TestName     string   `json:"test_name"`
	Value        float64  `json:"value"`
	Unit         string   `json:"unit"`
	ReferenceMin *float64 `json:"reference_min"`
	ReferenceMax *float64 `json:"reference_max"`
	IsNormal     *bool    `json:"is_normal"`
	Status       string   `json:"status"`
}

// Comparison statuses
const (
	ComparisonNormal   = "Normal"
	ComparisonLow      = "Low"
	ComparisonHigh     = "High"
	ComparisonNotFound = "Reference not found"
)

// AnalysisResult is the full pipeline output for one uploaded report.
type AnalysisResult struct {
	ReportID             string                 `json:"report_id,omitempty"`
	FileName             string                 `json:"file_name,omitempty"`
	PatientInfo          PatientInfo            `json:"patient_info"`
	ReportType           ReportType             `json:"report_type"`
	Extraction           *ExtractionResult      `json:"extraction,omitempty"`
	Quality              *TextQuality           `json:"quality,omitempty"`
	Parse                *ParseResult           `json:"parse"`
	Recommendations      *RecommendationResult  `json:"recommendations"`
	Summary              Summary                `json:"summary"`
	ReferenceComparisons []ReferenceComparison  `json:"reference_comparisons,omitempty"`
	ProcessingTime       time.Duration          `json:"processing_time"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	Timestamp            time.Time              `json:"timestamp"`
}

// StoredReport is a persisted analysis with its review state.
type StoredReport struct {
	ID              string                `json:"id"`
	FileName        string                `json:"file_name"`
	MimeType        string                `json:"mime_type"`
	ExtractedText   string                `json:"extracted_text,omitempty"`
	PatientInfo     PatientInfo           `json:"patient_info"`
	ReportType      ReportType            `json:"report_type"`
	Panel           ParsedPanel           `json:"panel"`
	Recommendations *RecommendationReport `json:"recommendations,omitempty"`
	Summary         Summary               `json:"summary"`
	Status          ReportStatus          `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ReportFilter narrows a report listing.
type ReportFilter struct {
	ReportType ReportType
	Status     ReportStatus
	Limit      int
	Offset     int
}
