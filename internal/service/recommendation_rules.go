package service

import (
	"fmt"

	"github.com/labpanel-mcp-server/internal/domain"
)

const genericConsultAdvice = "Consult with your healthcare provider about this result"

// ruleKey selects a recommendation rule by test and direction of deviation.
type ruleKey struct {
	test      string
	deviation domain.DeviationType
}

// recommendationRule grades one abnormal finding and writes its advice.
type recommendationRule func(testName string, value float64, normalRange *domain.NormalRange) (domain.TestAnalysis, bool)

var recommendationRules = map[ruleKey]recommendationRule{
	{TestHb, domain.DeviationLow}:              hemoglobinLow,
	{TestHb, domain.DeviationHigh}:             hemoglobinHigh,
	{TestTotalRBC, domain.DeviationLow}:        rbcLow,
	{TestPlateletCount, domain.DeviationLow}:   plateletsLow,
	{TestPlateletCount, domain.DeviationHigh}:  plateletsHigh,
	{TestSGPT, domain.DeviationHigh}:           transaminaseHigh,
	{TestSGOT, domain.DeviationHigh}:           transaminaseHigh,
	{TestBilirubinTotal, domain.DeviationHigh}: bilirubinHigh,
	{TestHbA1c, domain.DeviationHigh}:          hba1cAboveRange,
	{TestTSH, domain.DeviationHigh}:            tshHigh,
	{TestTSH, domain.DeviationLow}:             tshLow,
}

func hemoglobinLow(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	severity := domain.SeverityHigh
	if v < 8 {
		severity = domain.SeverityCritical
	}
	return domain.TestAnalysis{
		Severity:       severity,
		Interpretation: fmt.Sprintf("Hemoglobin is low (%s g/dL), suggesting possible anemia.", domain.FormatValue(v)),
		Recommendations: []string{
			"Iron-rich foods like spinach, red meat, and lentils",
			"Vitamin C rich foods to improve iron absorption",
		},
		Lifestyle:     []string{"Avoid tea/coffee with meals as they reduce iron absorption"},
		MedicalAdvice: []string{"Blood tests to determine the cause of anemia"},
	}, true
}

func hemoglobinHigh(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	return domain.TestAnalysis{
		Severity:        domain.SeverityModerate,
		Interpretation:  fmt.Sprintf("Hemoglobin is elevated (%s g/dL).", domain.FormatValue(v)),
		Recommendations: []string{"Stay well hydrated"},
		MedicalAdvice:   []string{"Further testing to rule out underlying conditions"},
	}, true
}

func rbcLow(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	return domain.TestAnalysis{
		Severity:        domain.SeverityHigh,
		Interpretation:  fmt.Sprintf("Red blood cell count is low (%s), indicating possible anemia.", domain.FormatValue(v)),
		Recommendations: []string{"Iron and folate supplementation as advised by doctor"},
		Lifestyle:       []string{"Eat foods rich in iron, folate, and vitamin B12"},
		MedicalAdvice:   []string{"Investigate underlying cause of low RBC count"},
	}, true
}

func plateletsLow(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	severity := domain.SeverityHigh
	if v < 50 {
		severity = domain.SeverityCritical
	}
	return domain.TestAnalysis{
		Severity:       severity,
		Interpretation: fmt.Sprintf("Platelet count is low (%s), increasing bleeding risk.", domain.FormatValue(v)),
		Recommendations: []string{
			"Avoid contact sports and activities with injury risk",
			"Use soft toothbrush, avoid sharp objects",
		},
		MedicalAdvice: []string{"Urgent hematologist consultation if platelets < 50,000"},
	}, true
}

func plateletsHigh(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	return domain.TestAnalysis{
		Severity:       domain.SeverityModerate,
		Interpretation: fmt.Sprintf("Platelet count is elevated (%s).", domain.FormatValue(v)),
		MedicalAdvice:  []string{"Monitor for clotting disorders"},
	}, true
}

// transaminaseHigh grades SGPT/SGOT by how many times the upper limit the value is.
func transaminaseHigh(testName string, v float64, normalRange *domain.NormalRange) (domain.TestAnalysis, bool) {
	upper := 40.0
	if _, max, ok := normalRange.Bounds(); ok && max > 0 {
		upper = max
	}
	ratio := v / upper

	severity := domain.SeverityModerate
	switch {
	case ratio > 10:
		severity = domain.SeverityCritical
	case ratio > 3:
		severity = domain.SeverityHigh
	}

	medical := []string{"Gastroenterologist consultation recommended"}
	if ratio > 10 {
		medical = append([]string{"URGENT: Severe liver enzyme elevation requires immediate medical attention"}, medical...)
	}

	return domain.TestAnalysis{
		Severity:       severity,
		Interpretation: fmt.Sprintf("%s is significantly elevated (%s U/L), indicating liver stress.", testName, domain.FormatValue(v)),
		Recommendations: []string{
			"Complete alcohol cessation",
			"Avoid hepatotoxic medications and supplements",
		},
		Lifestyle: []string{
			"Follow a liver-friendly diet (low fat, no alcohol)",
			"Maintain healthy weight and exercise regularly",
		},
		MedicalAdvice: medical,
	}, true
}

func bilirubinHigh(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	severity := domain.SeverityModerate
	switch {
	case v > 20:
		severity = domain.SeverityCritical
	case v > 5:
		severity = domain.SeverityHigh
	}
	return domain.TestAnalysis{
		Severity:        severity,
		Interpretation:  fmt.Sprintf("Total bilirubin is elevated (%s mg/dL), suggesting liver dysfunction or hemolysis.", domain.FormatValue(v)),
		Recommendations: []string{"Avoid alcohol completely"},
		Lifestyle:       []string{"Stay well hydrated"},
		MedicalAdvice:   []string{"Liver function evaluation and possible imaging"},
	}, true
}

// hba1cAboveRange applies the glycemic bands when an HbA1c result exceeds a numeric range.
// Values still under the pre-diabetes threshold fall through to the default rule.
func hba1cAboveRange(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	status := domain.GlycemicStatusFor(v)
	if status == domain.GlycemicNormal {
		return domain.TestAnalysis{}, false
	}
	return glycemicAnalysis(v, status), true
}

func tshHigh(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	severity := domain.SeverityModerate
	if v > 10 {
		severity = domain.SeverityHigh
	}
	return domain.TestAnalysis{
		Severity:        severity,
		Interpretation:  fmt.Sprintf("TSH is elevated (%s μU/mL), suggesting hypothyroidism.", domain.FormatValue(v)),
		Recommendations: []string{"Iodine-rich foods like seafood and iodized salt"},
		Lifestyle:       []string{"Regular sleep schedule", "Stress management techniques"},
		MedicalAdvice:   []string{"Endocrinologist consultation for thyroid evaluation"},
	}, true
}

func tshLow(_ string, v float64, _ *domain.NormalRange) (domain.TestAnalysis, bool) {
	severity := domain.SeverityModerate
	if v < 0.1 {
		severity = domain.SeverityHigh
	}
	return domain.TestAnalysis{
		Severity:        severity,
		Interpretation:  fmt.Sprintf("TSH is low (%s μU/mL), suggesting hyperthyroidism.", domain.FormatValue(v)),
		Recommendations: []string{"Avoid excessive iodine intake"},
		Lifestyle:       []string{"Limit caffeine and stimulants"},
		MedicalAdvice:   []string{"Thyroid specialist consultation recommended"},
	}, true
}

// glycemicAnalysis grades an HbA1c result from its glycemic band.
func glycemicAnalysis(v float64, status domain.GlycemicStatus) domain.TestAnalysis {
	value := domain.FormatValue(v)
	switch status {
	case domain.GlycemicDiabetes:
		severity := domain.SeverityHigh
		if v > 10 {
			severity = domain.SeverityCritical
		}
		return domain.TestAnalysis{
			Status:         domain.StatusAbnormal,
			Severity:       severity,
			Deviation:      domain.DeviationHigh,
			Interpretation: fmt.Sprintf("HbA1c indicates diabetes (%s%%). Blood sugar control is needed.", value),
			Recommendations: []string{
				"Follow diabetic diet plan",
				"Regular blood sugar monitoring",
			},
			Lifestyle: []string{
				"30 minutes daily exercise",
				"Weight management if overweight",
				"Limit refined carbohydrates and sugary foods",
			},
			MedicalAdvice: []string{"Endocrinologist consultation for diabetes management"},
		}
	case domain.GlycemicPreDiabetes:
		return domain.TestAnalysis{
			Status:          domain.StatusAbnormal,
			Severity:        domain.SeverityModerate,
			Deviation:       domain.DeviationHigh,
			Interpretation:  fmt.Sprintf("HbA1c indicates pre-diabetes (%s%%). Lifestyle changes can prevent diabetes.", value),
			Recommendations: []string{"Reduce carbohydrate intake"},
			Lifestyle:       []string{"Regular physical activity", "Weight loss if needed"},
			MedicalAdvice:   []string{"Annual diabetes screening"},
		}
	default:
		return domain.TestAnalysis{
			Status:         domain.StatusNormal,
			Severity:       domain.SeverityNone,
			Interpretation: fmt.Sprintf("HbA1c is normal (%s%%).", value),
		}
	}
}

// defaultAnalysis covers abnormal findings no specific rule handles.
func defaultAnalysis(testName string, v float64, deviation domain.DeviationType) domain.TestAnalysis {
	return domain.TestAnalysis{
		Severity:        domain.SeverityModerate,
		Interpretation:  fmt.Sprintf("%s is %s (%s).", testName, deviation, domain.FormatValue(v)),
		Recommendations: []string{genericConsultAdvice},
	}
}

// followUpByReportType lists the panel-specific follow-up advice.
var followUpByReportType = map[domain.ReportType][]string{
	domain.ReportTypeCBC: {
		"Maintain a balanced diet rich in iron, folate, and vitamin B12",
		"Stay hydrated and get adequate sleep",
		"Regular follow-up blood tests as recommended by your doctor",
	},
	domain.ReportTypeLiverFunction: {
		"Maintain a healthy weight and avoid excessive alcohol",
		"Regular monitoring of liver function tests",
		"Consult your doctor before taking any new medications or supplements",
	},
	domain.ReportTypeDiabetes: {
		"Regular blood sugar monitoring as advised",
		"Follow a consistent meal and exercise schedule",
		"Annual eye and foot examinations",
	},
	domain.ReportTypeThyroid: {
		"Take thyroid medications as prescribed (if any)",
		"Regular thyroid function monitoring",
		"Inform doctors about thyroid condition before procedures",
	},
}

var universalFollowUp = []string{
	"Keep all medical reports for future reference",
	"Discuss results with your primary care physician",
	"Follow up as recommended by your healthcare provider",
}

// Report-level advisories keyed by the highest severity found.
const (
	criticalAdvisory = "URGENT: Consult your doctor immediately due to critical values."
	highAdvisory     = "Important: Schedule an appointment with your doctor soon."
	consultAdvisory  = "Consider consulting your doctor about these results."
	allNormalMessage = "All test results are within normal ranges. Continue maintaining a healthy lifestyle."
)
