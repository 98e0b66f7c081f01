package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/labpanel-mcp-server/internal/domain"
)

var (
	// a result the lab printed with an abnormal flag: "9.9 % H", "9.9 (H)", "9.9 % HIGH".
	flaggedPercent = regexp.MustCompile(`(?i)(\d+\.\d+)\s*%?\s*(?:\(H\)|\bH\b|\bHIGH\b|↑|\*)`)

	hba1cLabelledPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)HbA1c.*?(\d+\.\d+)\s*%`),
		regexp.MustCompile(`(?i)Glycosylated.*?(\d+\.\d+)\s*%`),
		regexp.MustCompile(`(?i)(\d+\.\d+)\s*%.*?Diabetes`),
	}

	percentValue = regexp.MustCompile(`(\d+\.\d+)\s*%`)
)

// parseDiabetes resolves the HbA1c result. Reports print a legend with the
// band boundaries (5.7, 6.4, 6.5) next to the result, so those exact values
// are never taken as the measurement. Resolution order:
//  1. a percentage carrying an abnormal flag
//  2. the first HbA1c-labelled percentage
//  3. when the report mentions diabetes, the largest percentage in the diabetic band
//  4. the largest plausible percentage
func (p *PanelParser) parseDiabetes(text string) *domain.TestSet {
	tests := domain.NewTestSet()
	normalRange := domain.HbA1cRange()
	boundaries := normalRange.Boundaries()
	bound := p.config.Bounds.HbA1c

	accept := func(v float64) bool {
		return bound.Contains(v) && !isBoundary(v, boundaries)
	}

	value, found := firstAccepted(flaggedPercent, text, accept)
	if !found {
		for _, re := range hba1cLabelledPatterns {
			if value, found = firstAccepted(re, text, accept); found {
				break
			}
		}
	}
	if !found && strings.Contains(strings.ToLower(text), "diabetes") {
		diabeticBand := domain.Bound{Min: domain.HbA1cDiabetesThreshold, Max: bound.Max}
		value, found = maxPercent(text, func(v float64) bool {
			return diabeticBand.Contains(v) && !isBoundary(v, boundaries)
		})
	}
	if !found {
		value, found = maxPercent(text, accept)
	}
	if !found {
		return tests
	}

	tests.Add(domain.TestResult{
		TestName:    TestHbA1c,
		Value:       value,
		Unit:        UnitFor(TestHbA1c),
		NormalRange: normalRange,
		Status:      domain.GlycemicStatusFor(value),
	})
	return tests
}

func firstAccepted(re *regexp.Regexp, text string, accept func(float64) bool) (float64, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && accept(v) {
			return v, true
		}
	}
	return 0, false
}

func maxPercent(text string, accept func(float64) bool) (float64, bool) {
	var max float64
	found := false
	for _, m := range percentValue.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || !accept(v) {
			continue
		}
		if !found || v > max {
			max, found = v, true
		}
	}
	return max, found
}

func isBoundary(v float64, boundaries []float64) bool {
	for _, b := range boundaries {
		if v == b {
			return true
		}
	}
	return false
}
