package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// valueStrategy pulls a candidate value out of a single line.
type valueStrategy func(line string) (float64, bool)

// rangeStrategy pulls a normal range out of a single line.
type rangeStrategy func(line string) *domain.NormalRange

// lineRule recognizes one test on one line of a report.
type lineRule struct {
	testName string
	label    *regexp.Regexp
	exclude  *regexp.Regexp
	// unit, when set, must appear on the line for the rule to apply.
	unit   *regexp.Regexp
	values []valueStrategy
	ranges []rangeStrategy
	// correctRBC enables the Total RBC digit-shift correction.
	correctRBC bool
}

// fallbackRule recovers a test from the whole text when line rules found too little.
type fallbackRule struct {
	testName string
	labels   []*regexp.Regexp
	// decimalOnly restricts candidates to numbers with a fractional part.
	decimalOnly bool
	bound       func(b domain.PlausibilityBounds) domain.Bound
	ranges      []rangeStrategy
	correctRBC  bool
}

var (
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	decimalPattern   = regexp.MustCompile(`\d+\.\d+`)
	leadingNumber    = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)(?:[^\d.]|$)`)
	rangePairPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[-–]\s*(\d+(?:\.\d+)?)`)
	lessThanPattern  = regexp.MustCompile(`(?i)(?:Less\s*Than|<)\s*(\d+(?:\.\d+)?)`)
	// multiplier units such as x10^9/l print digits that are not results.
	multiplierUnit = regexp.MustCompile(`[xX]\s*10\S*`)
)

// PanelParser turns report text into structured test results.
type PanelParser struct {
	logger *logrus.Logger
	config domain.ParserConfig
}

// NewPanelParser creates a new panel parser
func NewPanelParser(logger *logrus.Logger, config domain.ParserConfig) *PanelParser {
	if config.FallbackThreshold <= 0 {
		config.FallbackThreshold = domain.DefaultParserConfig().FallbackThreshold
	}
	return &PanelParser{logger: logger, config: config}
}

// ParseTestResults dispatches text to the panel parser for reportType. An
// empty or unknown report type is detected from the text. Parsing never
// returns an error; failures produce Success=false with an empty test set.
func (p *PanelParser) ParseTestResults(text string, reportType domain.ReportType) (result *domain.ParseResult) {
	resolved := reportType
	if !resolved.IsValid() || resolved == domain.ReportTypeOther {
		resolved = DetectReportType(text)
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"report_type": resolved,
				"panic":       r,
			}).Error("Panel parsing panicked")
			result = &domain.ParseResult{
				Success:    false,
				Data:       domain.NewTestSet(),
				ReportType: resolved,
				Error:      fmt.Sprintf("failed to parse test results: %v", r),
			}
		}
	}()

	var tests *domain.TestSet
	switch resolved {
	case domain.ReportTypeCBC:
		tests = p.parseCBC(text)
	case domain.ReportTypeLiverFunction:
		tests = p.parseLiverFunction(text)
	case domain.ReportTypeDiabetes:
		tests = p.parseDiabetes(text)
	case domain.ReportTypeThyroid:
		tests = p.parseThyroid(text)
	default:
		tests = domain.NewTestSet()
	}

	p.logger.WithFields(logrus.Fields{
		"requested_type": reportType,
		"report_type":    resolved,
		"tests_found":    tests.Len(),
	}).Info("Parsed test results")

	return &domain.ParseResult{
		Success:    true,
		Data:       tests,
		ReportType: resolved,
	}
}

// applyLineRules walks the text line by line. A line feeds at most one test
// and the first line that yields a test wins.
func (p *PanelParser) applyLineRules(text string, rules []lineRule, tests *domain.TestSet) {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		for _, rule := range rules {
			if tests.Has(rule.testName) {
				continue
			}
			if result, ok := p.matchLine(rule, line); ok {
				tests.Add(result)
				break
			}
		}
	}
}

func (p *PanelParser) matchLine(rule lineRule, line string) (domain.TestResult, bool) {
	if !rule.label.MatchString(line) {
		return domain.TestResult{}, false
	}
	if rule.exclude != nil && rule.exclude.MatchString(line) {
		return domain.TestResult{}, false
	}
	if rule.unit != nil && !rule.unit.MatchString(line) {
		return domain.TestResult{}, false
	}

	for _, strategy := range rule.values {
		value, ok := strategy(line)
		if !ok || !domain.IsFinite(value) {
			continue
		}
		if rule.correctRBC {
			value = p.correctRBC(value)
		}
		return domain.TestResult{
			TestName:    rule.testName,
			Value:       value,
			Unit:        UnitFor(rule.testName),
			NormalRange: firstRange(rule.ranges, line),
		}, true
	}
	return domain.TestResult{}, false
}

// applyFallbackRules rescans the whole text for tests the line rules missed.
// Candidates outside the plausibility bound are skipped, not clamped.
func (p *PanelParser) applyFallbackRules(text string, rules []fallbackRule, tests *domain.TestSet) {
	if tests.Len() >= p.config.FallbackThreshold {
		return
	}
	for _, rule := range rules {
		if tests.Has(rule.testName) {
			continue
		}
		if result, ok := p.scanFallback(rule, text); ok {
			tests.Add(result)
			p.logger.WithFields(logrus.Fields{
				"test":  rule.testName,
				"value": result.Value,
			}).Debug("Recovered test from fallback scan")
		}
	}
}

func (p *PanelParser) scanFallback(rule fallbackRule, text string) (domain.TestResult, bool) {
	bound := rule.bound(p.config.Bounds)
	for _, label := range rule.labels {
		for _, loc := range label.FindAllStringIndex(text, -1) {
			segment := restOfLine(text, loc[1])
			for _, candidate := range fallbackCandidates(segment, rule.decimalOnly) {
				value := candidate
				if rule.correctRBC {
					value = p.correctRBC(value)
				}
				if !bound.Contains(value) {
					continue
				}
				return domain.TestResult{
					TestName:    rule.testName,
					Value:       value,
					Unit:        UnitFor(rule.testName),
					NormalRange: firstRange(rule.ranges, segment),
				}, true
			}
		}
	}
	return domain.TestResult{}, false
}

// correctRBC undoes the fixed digit shift OCR introduces in red cell counts.
func (p *PanelParser) correctRBC(value float64) float64 {
	if value <= p.config.RBCCorrectionTrigger {
		return value
	}
	places := decimalPlaces(value)
	if n := decimalPlaces(p.config.RBCCorrectionOffset); n > places {
		places = n
	}
	corrected := roundTo(value-p.config.RBCCorrectionOffset, places)
	if p.config.RBCCorrectionWindow.Contains(corrected) {
		return corrected
	}
	return value
}

// decimalPlaces counts the fraction digits of v's shortest decimal form.
func decimalPlaces(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

// fallbackCandidates lists the numbers on a segment that can be results:
// range bounds, "Less Than" limits and multiplier units are blanked first.
func fallbackCandidates(segment string, decimalOnly bool) []float64 {
	cleaned := rangePairPattern.ReplaceAllString(segment, " ")
	cleaned = lessThanPattern.ReplaceAllString(cleaned, " ")
	cleaned = multiplierUnit.ReplaceAllString(cleaned, " ")

	pattern := numberPattern
	if decimalOnly {
		pattern = decimalPattern
	}
	var out []float64
	for _, tok := range pattern.FindAllString(cleaned, -1) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil && domain.IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func restOfLine(text string, from int) string {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func firstRange(strategies []rangeStrategy, line string) *domain.NormalRange {
	for _, s := range strategies {
		if r := s(line); r != nil {
			return r
		}
	}
	return nil
}

// Value strategies

// numberAfterUnit takes the number printed directly after the unit token.
func numberAfterUnit(unit *regexp.Regexp) valueStrategy {
	return func(line string) (float64, bool) {
		for _, loc := range unit.FindAllStringIndex(line, -1) {
			m := leadingNumber.FindStringSubmatch(line[loc[1]:])
			if m == nil {
				continue
			}
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
		return 0, false
	}
}

// captureValue takes capture group 1 of re.
func captureValue(re *regexp.Regexp) valueStrategy {
	return func(line string) (float64, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
}

// lastCandidateAfter takes the last plausible result number after the label,
// ignoring range bounds and multiplier units.
func lastCandidateAfter(label *regexp.Regexp, decimalOnly bool) valueStrategy {
	return func(line string) (float64, bool) {
		loc := label.FindStringIndex(line)
		if loc == nil {
			return 0, false
		}
		candidates := fallbackCandidates(line[loc[1]:], decimalOnly)
		if len(candidates) == 0 {
			return 0, false
		}
		return candidates[len(candidates)-1], true
	}
}

var (
	trailingDecimal = regexp.MustCompile(`(\d+\.\d+)\s*$`)
	trailingNumber  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*$`)
)

// endOfLineValue takes the last number on the line.
func endOfLineValue(decimalOnly bool) valueStrategy {
	if decimalOnly {
		return captureValue(trailingDecimal)
	}
	return captureValue(trailingNumber)
}

// Range strategies

// intervalOnLine reads the first "min - max" pair on the line.
func intervalOnLine(line string) *domain.NormalRange {
	m := rangePairPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	min, errMin := strconv.ParseFloat(m[1], 64)
	max, errMax := strconv.ParseFloat(m[2], 64)
	if errMin != nil || errMax != nil {
		return nil
	}
	r, err := domain.NewIntervalRange(min, max)
	if err != nil {
		return nil
	}
	return r
}

// lessThanOnLine reads "Less Than X" as the range 0 - X.
func lessThanOnLine(line string) *domain.NormalRange {
	m := lessThanPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	max, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	r, err := domain.NewIntervalRange(0, max)
	if err != nil {
		return nil
	}
	return r
}

// fixedRange always yields the same standard range.
func fixedRange(min, max float64) rangeStrategy {
	return func(string) *domain.NormalRange {
		return domain.MustIntervalRange(min, max)
	}
}
