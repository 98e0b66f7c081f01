package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// fieldPattern is one candidate regex for a patient field. group selects the
// capture to use; 0 means the whole match.
type fieldPattern struct {
	name  string
	re    *regexp.Regexp
	group int
}

// Name patterns run from layout-specific to generic; the first candidate that
// survives normalization wins.
var namePatterns = []fieldPattern{
	{"bracketed_age_suffix", regexp.MustCompile(`(?i)\)\s*([A-Z\s]+?)\s+\d+\s*Yrs?\s*\)\s*/\s*(?:Male|Female|M|F)\b`), 1},
	{"patient_name_terminated", regexp.MustCompile(`(?i)Patient\s*Name\s*:?\s*([A-Z\s]+?)(?:\s*Father|\s*Registration|\s*$)`), 1},
	{"patient_name", regexp.MustCompile(`(?i)Patient\s*Name\s*:?\s*([A-Z\s]+)`), 1},
	{"patient_details_y", regexp.MustCompile(`(?i)Patient\s*Details\s*:?\s*([A-Z\s]+?)\s+\d+\s*\(Y\)`), 1},
	{"patient_details_yr", regexp.MustCompile(`(?i)Patient\s*Details\s*:?\s*([A-Z\s]+?)\s+\d+\s*Yr`), 1},
	{"two_words_before_age", regexp.MustCompile(`(?i)([A-Z]+\s+[A-Z]+)\s+\d+\s*Yrs?`), 1},
}

// Fallback name patterns, tried only when no primary pattern matched.
var titleNamePatterns = []fieldPattern{
	{"title_prefixed", regexp.MustCompile(`(?i)\b(?:MR|MS|DR|MISS|MRS)\.?[ \t]+[A-Z]+(?:[ \t]+[A-Z]+)?`), 0},
	{"two_capitalized_words", regexp.MustCompile(`\b([A-Z]{3,}[ \t]+[A-Z]{3,})\b`), 1},
	{"patient_name_loose", regexp.MustCompile(`(?i)Patient\s*Name\s*:?\s*([A-Z\s]{4,})`), 1},
}

var ageGenderPatterns = []fieldPattern{
	{"yrs_bracketed", regexp.MustCompile(`(?i)(\d+)\s*Yrs?\)\s*/\s*(\w+)`), 0},
	{"yrs", regexp.MustCompile(`(?i)(\d+)\s*Yrs?\s*/\s*(\w+)`), 0},
	{"age_sex_label", regexp.MustCompile(`(?i)Age\s*/\s*Sex\s*:?\s*(\d+)\s*Year\(s\)\s*/\s*(\w+)`), 0},
	{"year_s", regexp.MustCompile(`(?i)(\d+)\s*Year\(s\)\s*/\s*(\w+)`), 0},
	{"y_bracketed", regexp.MustCompile(`(?i)(\d+)\s*\(Y\)\s*/\s*(\w+)`), 0},
	{"generic", regexp.MustCompile(`(?i)(\d+)\s*(?:Years|Year|Y)\s*/\s*(\w+)`), 0},
}

var registrationDatePatterns = []fieldPattern{
	{"registration_date", regexp.MustCompile(`(?i)Registration\s*Date\s*:?\s*(\d{1,2}[-/]\w+[-/]\d{2,4})`), 1},
	{"date_with_time", regexp.MustCompile(`(\d{1,2}[-/][A-Za-z]{3}[-/]\d{4})\s+\d{1,2}:\d{2}`), 1},
	{"day_month_year", regexp.MustCompile(`(\d{1,2}[-/]\w+[-/]\d{4})`), 1},
	{"iso", regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), 1},
}

var patientNumberPatterns = []fieldPattern{
	{"patient_number", regexp.MustCompile(`(?i)Patient\s*(?:Number|No\.?)\s*:?\s*([A-Z0-9-]+)`), 1},
	{"case_number", regexp.MustCompile(`(?i)Case\s*(?:Number|No\.?)\s*:?\s*([A-Z0-9-]+)`), 1},
	{"mr_number", regexp.MustCompile(`(\d{5}-\d{2}-\d{2})`), 1},
}

var (
	nameNoiseWords    = regexp.MustCompile(`(?i)\b(?:Patient|Name|Details|Registration|Date)\b`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	uppercaseName     = regexp.MustCompile(`^[A-Z ]+$`)
	hasDigit          = regexp.MustCompile(`\d`)
	namedMonthDate    = regexp.MustCompile(`^(\d{1,2})[-/]([A-Za-z]+)[-/](\d{2,4})$`)
	numericDateLayout = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "2006-01-02", "01/02/2006"}
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

const maxPlausibleAge = 150

// PatientInfoExtractor recovers patient identity fields from OCR'd report text.
type PatientInfoExtractor struct {
	logger *logrus.Logger
}

// NewPatientInfoExtractor creates a new patient info extractor
func NewPatientInfoExtractor(logger *logrus.Logger) *PatientInfoExtractor {
	return &PatientInfoExtractor{logger: logger}
}

// Extract scans text for name, age, gender, registration date and patient
// number. Each field is resolved independently; a field that cannot be found
// stays nil. Extract never fails.
func (e *PatientInfoExtractor) Extract(text string) (info domain.PatientInfo) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("Patient info extraction panicked")
			info = domain.PatientInfo{}
		}
	}()

	info.Name = e.extractName(text)
	info.Age, info.Gender = e.extractAgeGender(text)
	info.RegistrationDate = e.extractRegistrationDate(text)
	info.PatientNumber = e.extractPatientNumber(text)

	e.logger.WithFields(logrus.Fields{
		"has_name":           info.Name != nil,
		"has_age":            info.Age != nil,
		"has_gender":         info.Gender != nil,
		"has_registration":   info.RegistrationDate != nil,
		"has_patient_number": info.PatientNumber != nil,
	}).Debug("Extracted patient info")

	return info
}

func (e *PatientInfoExtractor) extractName(text string) *string {
	for _, patterns := range [][]fieldPattern{namePatterns, titleNamePatterns} {
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if name, ok := normalizeName(m[p.group]); ok {
				e.logger.WithField("pattern", p.name).Debug("Matched patient name")
				return &name
			}
		}
	}
	return nil
}

// normalizeName strips label words, collapses whitespace and accepts only
// upper-case names longer than two characters.
func normalizeName(raw string) (string, bool) {
	name := nameNoiseWords.ReplaceAllString(raw, "")
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	if len(name) <= 2 || !uppercaseName.MatchString(name) {
		return "", false
	}
	return name, true
}

func (e *PatientInfoExtractor) extractAgeGender(text string) (*int, *domain.Gender) {
	for _, p := range ageGenderPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		age, err := strconv.Atoi(m[1])
		if err != nil || age < 0 || age > maxPlausibleAge {
			continue
		}
		var gender *domain.Gender
		if g, ok := domain.ParseGender(m[2]); ok && g != domain.GenderOther {
			gender = &g
		}
		return &age, gender
	}
	return nil, nil
}

func (e *PatientInfoExtractor) extractRegistrationDate(text string) *time.Time {
	for _, p := range registrationDatePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, err := parseReportDate(m[p.group]); err == nil {
			return &d
		}
	}
	return nil
}

func (e *PatientInfoExtractor) extractPatientNumber(text string) *string {
	for _, p := range patientNumberPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		number := strings.Trim(strings.TrimSpace(m[p.group]), "-")
		if number != "" && hasDigit.MatchString(number) {
			return &number
		}
	}
	return nil
}

// parseReportDate understands day-monthname-year forms (12-Mar-2024, 5/March/24)
// and falls back to common numeric layouts, day first.
func parseReportDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if m := namedMonthDate.FindStringSubmatch(raw); m != nil {
		month, ok := monthNames[strings.ToLower(m[2])]
		if ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				year += 2000
			}
			d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if d.Day() != day || d.Month() != month {
				return time.Time{}, fmt.Errorf("invalid calendar date %q", raw)
			}
			return d, nil
		}
	}
	for _, layout := range numericDateLayout {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
