package ocr

import (
	"strings"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Default quality thresholds for extracted text.
const (
	DefaultMinConfidence = 70.0
	DefaultMinTextLength = 50
)

var medicalTerms = []string{"patient", "test", "result", "normal", "value", "range", "lab", "report"}

// QualityThresholds tunes ValidateExtractedText. Zero fields take the defaults.
type QualityThresholds struct {
	MinConfidence float64
	MinTextLength int
}

// ValidateExtractedText flags text that is unlikely to parse well. The text
// stays usable unless more than two checks fail.
func ValidateExtractedText(text string, confidence float64, th QualityThresholds) domain.TextQuality {
	if th.MinConfidence <= 0 {
		th.MinConfidence = DefaultMinConfidence
	}
	if th.MinTextLength <= 0 {
		th.MinTextLength = DefaultMinTextLength
	}

	q := domain.TextQuality{
		IsValid:     true,
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if confidence < th.MinConfidence {
		q.Warnings = append(q.Warnings, "Low OCR confidence. Results may be inaccurate.")
		q.Suggestions = append(q.Suggestions, "Try uploading a higher quality image.")
	}

	if len([]rune(text)) < th.MinTextLength {
		q.Warnings = append(q.Warnings, "Very little text extracted.")
		q.Suggestions = append(q.Suggestions, "Ensure the image is clear and contains visible text.")
	}

	if !containsMedicalTerm(text) {
		q.Warnings = append(q.Warnings, "No medical terms detected in extracted text.")
		q.Suggestions = append(q.Suggestions, "Verify that the uploaded file is a medical report.")
	}

	if len(q.Warnings) > 2 {
		q.IsValid = false
	}
	return q
}

func containsMedicalTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range medicalTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
