package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
)

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func numberProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: description}
}

func integerProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func boolProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

const reportTypeDescription = "Report type: CBC, Liver Function, Diabetes, Thyroid or Other. Aliases such as lft and tft are accepted."

func textSchema() *jsonschema.Schema {
	return objectSchema([]string{"text"}, map[string]*jsonschema.Schema{
		"text": stringProp("Extracted lab report text"),
	})
}

func classifySchema() *jsonschema.Schema {
	return objectSchema([]string{"text"}, map[string]*jsonschema.Schema{
		"text":      stringProp("Extracted lab report text"),
		"file_name": stringProp("Original file name, used as a classification hint"),
	})
}

func parseSchema() *jsonschema.Schema {
	return objectSchema([]string{"text"}, map[string]*jsonschema.Schema{
		"text":        stringProp("Extracted lab report text"),
		"report_type": stringProp(reportTypeDescription + " Detected from the text when omitted."),
	})
}

func testResultSchema() *jsonschema.Schema {
	return objectSchema([]string{"test_name", "value"}, map[string]*jsonschema.Schema{
		"test_name": stringProp("Canonical test name, for example Hb or SGPT"),
		"value":     numberProp("Measured value"),
		"unit":      stringProp("Unit of measure"),
		"normal_range": objectSchema(nil, map[string]*jsonschema.Schema{
			"kind": stringProp("interval or categorical"),
			"min":  numberProp("Lower bound"),
			"max":  numberProp("Upper bound"),
		}),
		"status": stringProp("HbA1c glycemic status: normal, pre-diabetes or diabetes"),
	})
}

func recommendationsSchema() *jsonschema.Schema {
	return objectSchema([]string{"test_results", "report_type"}, map[string]*jsonschema.Schema{
		"test_results": {
			Type:        "array",
			Description: "Parsed test results",
			Items:       testResultSchema(),
		},
		"report_type": stringProp(reportTypeDescription),
		"patient_info": patientSchema(),
	})
}

func patientSchema() *jsonschema.Schema {
	return objectSchema(nil, map[string]*jsonschema.Schema{
		"name":   stringProp("Patient name"),
		"age":    integerProp("Age in years"),
		"gender": stringProp("male, female or other"),
	})
}

func analyzeSchema() *jsonschema.Schema {
	return objectSchema(nil, map[string]*jsonschema.Schema{
		"text":         stringProp("Extracted lab report text. Either text or file_path is required."),
		"file_path":    stringProp("Path to a PDF, image or text file on the server host"),
		"file_name":    stringProp("Original file name, used as a classification hint"),
		"report_type":  stringProp(reportTypeDescription + " Detected when omitted."),
		"persist":      boolProp("Store the analyzed report when storage is configured"),
		"patient_info": patientSchema(),
	})
}

func validateTextSchema() *jsonschema.Schema {
	return objectSchema([]string{"text"}, map[string]*jsonschema.Schema{
		"text":       stringProp("Extracted lab report text"),
		"confidence": numberProp("OCR confidence 0-100; defaults to 100 for direct text"),
	})
}

func referenceLookupSchema() *jsonschema.Schema {
	return objectSchema([]string{"report_type", "test_name", "gender", "age"}, map[string]*jsonschema.Schema{
		"report_type": stringProp(reportTypeDescription),
		"test_name":   stringProp("Canonical test name"),
		"gender":      stringProp("male, female or other"),
		"age":         integerProp("Age in years"),
	})
}
