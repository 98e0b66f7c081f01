package ocr

import (
	"regexp"
	"strings"
)

// abbreviationFixes rejoin lab abbreviations that OCR tends to split into
// single letters. MCHC is listed before MCH so the longer form wins.
var abbreviationFixes = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b0CR\b`), "OCR"},
	{regexp.MustCompile(`(?i)\bH[ \t]*b[ \t]*A[ \t]*1[ \t]*C\b`), "HbA1C"},
	{regexp.MustCompile(`\bT[ \t]+S[ \t]+H\b`), "TSH"},
	{regexp.MustCompile(`\bS[ \t]+G[ \t]+P[ \t]+T\b`), "SGPT"},
	{regexp.MustCompile(`\bS[ \t]+G[ \t]+O[ \t]+T\b`), "SGOT"},
	{regexp.MustCompile(`\bR[ \t]+B[ \t]+C\b`), "RBC"},
	{regexp.MustCompile(`\bW[ \t]+B[ \t]+C\b`), "WBC"},
	{regexp.MustCompile(`\bH[ \t]+C[ \t]+T\b`), "HCT"},
	{regexp.MustCompile(`\bM[ \t]+C[ \t]+V\b`), "MCV"},
	{regexp.MustCompile(`\bM[ \t]+C[ \t]+H[ \t]+C\b`), "MCHC"},
	{regexp.MustCompile(`\bM[ \t]+C[ \t]+H\b`), "MCH"},
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\r]+`)
	// Lone "l" or "O" glyphs inside numbers, e.g. "1l.5" or "2O0".
	digitL = regexp.MustCompile(`(\d)l(\d|\.)`)
	digitO = regexp.MustCompile(`(\d)O(\d|\.)|(\d\.)O\b`)
)

// PostProcessText cleans OCR output without losing its line structure:
// horizontal whitespace is collapsed per line, blank lines are dropped and
// common glyph confusions and split abbreviations are repaired.
func PostProcessText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}

	cleaned := strings.Join(out, "\n")
	cleaned = digitL.ReplaceAllString(cleaned, "${1}1${2}")
	cleaned = digitO.ReplaceAllStringFunc(cleaned, func(m string) string {
		return strings.ReplaceAll(m, "O", "0")
	})
	for _, fix := range abbreviationFixes {
		cleaned = fix.re.ReplaceAllString(cleaned, fix.repl)
	}
	return cleaned
}
