package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/service"
)

// Tool names
const (
	ToolExtractPatientInfo      = "extract_patient_info"
	ToolClassifyReportType      = "classify_report_type"
	ToolParseTestResults        = "parse_test_results"
	ToolGenerateRecommendations = "generate_recommendations"
	ToolAnalyzeLabReport        = "analyze_lab_report"
	ToolValidateExtractedText   = "validate_extracted_text"
	ToolLookupReferenceValue    = "lookup_reference_value"
)

// ToolNames lists every registered tool.
func ToolNames() []string {
	return []string{
		ToolExtractPatientInfo,
		ToolClassifyReportType,
		ToolParseTestResults,
		ToolGenerateRecommendations,
		ToolAnalyzeLabReport,
		ToolValidateExtractedText,
		ToolLookupReferenceValue,
	}
}

// TextParams carries report text.
type TextParams struct {
	Text string `json:"text"`
}

// ClassifyParams defines parameters for classify_report_type
type ClassifyParams struct {
	Text     string `json:"text"`
	FileName string `json:"file_name,omitempty"`
}

// ClassifyResult defines the result of classify_report_type
type ClassifyResult struct {
	ReportType domain.ReportType `json:"report_type"`
	Source     string            `json:"source"`
}

// ParseParams defines parameters for parse_test_results
type ParseParams struct {
	Text       string `json:"text"`
	ReportType string `json:"report_type,omitempty"`
}

// PatientParams is the caller-supplied patient context for recommendations.
type PatientParams struct {
	Name   *string `json:"name,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Gender string  `json:"gender,omitempty"`
}

// RecommendationsParams defines parameters for generate_recommendations
type RecommendationsParams struct {
	TestResults []domain.TestResult `json:"test_results"`
	ReportType  string              `json:"report_type"`
	PatientInfo *PatientParams      `json:"patient_info,omitempty"`
}

// RecommendationsResult pairs the recommendation report with its summary.
type RecommendationsResult struct {
	*domain.RecommendationResult
	Summary domain.Summary `json:"summary"`
}

// AnalyzeParams defines parameters for analyze_lab_report
type AnalyzeParams struct {
	Text       string `json:"text,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	ReportType string `json:"report_type,omitempty"`
	Persist    bool   `json:"persist,omitempty"`

	// PatientInfo overrides fields extracted from the report.
	PatientInfo *PatientParams `json:"patient_info,omitempty"`
}

// ValidateTextParams defines parameters for validate_extracted_text
type ValidateTextParams struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ReferenceLookupParams defines parameters for lookup_reference_value
type ReferenceLookupParams struct {
	ReportType string `json:"report_type"`
	TestName   string `json:"test_name"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
}

// ReferenceLookupResult defines the result of lookup_reference_value
type ReferenceLookupResult struct {
	Found     bool                   `json:"found"`
	Reference *domain.ReferenceValue `json:"reference,omitempty"`
}

func (s *Server) registerTools() {
	addTool(s, ToolExtractPatientInfo,
		"Extract patient name, age, gender, registration date and patient number from lab report text",
		textSchema(), s.extractPatientInfo)
	addTool(s, ToolClassifyReportType,
		"Classify lab report text as CBC, Liver Function, Diabetes, Thyroid or Other",
		classifySchema(), s.classifyReportType)
	addTool(s, ToolParseTestResults,
		"Parse test names, values, units and normal ranges from lab report text",
		parseSchema(), s.parseTestResults)
	addTool(s, ToolGenerateRecommendations,
		"Grade parsed test results and generate recommendations, follow-up advice and a summary",
		recommendationsSchema(), s.generateRecommendations)
	addTool(s, ToolAnalyzeLabReport,
		"Run the full pipeline on report text or a report file: patient info, classification, parsing, recommendations and summary",
		analyzeSchema(), s.analyzeLabReport)
	addTool(s, ToolValidateExtractedText,
		"Check whether extracted text is usable for parsing and list quality warnings",
		validateTextSchema(), s.validateExtractedText)
	addTool(s, ToolLookupReferenceValue,
		"Find the stored reference range for a test and patient demographic",
		referenceLookupSchema(), s.lookupReferenceValue)

	s.logger.WithField("tool_count", len(ToolNames())).Info("Registered MCP tools")
}

// addTool registers run as a typed tool. Errors from run become tool
// results with IsError set so the client sees the message.
func addTool[In any](s *Server, name, description string, schema *jsonschema.Schema, run func(context.Context, In) (any, error)) {
	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		ctx, op := s.ops.Start(ctx, name, nil)
		out, err := run(ctx, in)
		op.End(err)
		if err != nil {
			return errorResult(err), nil, nil
		}
		result, err := jsonResult(out)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result, nil, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
	}
}

func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.NewValidationError("text", "text is required", nil)
	}
	return nil
}

// parseOptionalReportType returns "" for an empty input.
func parseOptionalReportType(raw string) (domain.ReportType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	rt, err := domain.ParseReportType(raw)
	if err != nil {
		return "", domain.NewValidationError("report_type", err.Error(), raw)
	}
	return rt, nil
}

func (s *Server) extractPatientInfo(_ context.Context, params TextParams) (any, error) {
	if err := requireText(params.Text); err != nil {
		return nil, err
	}
	return s.deps.Patients.Extract(params.Text), nil
}

func (s *Server) classifyReportType(_ context.Context, params ClassifyParams) (any, error) {
	if err := requireText(params.Text); err != nil {
		return nil, err
	}
	result := ClassifyResult{Source: "text"}
	if params.FileName != "" {
		result.ReportType = service.ClassifyReportType(params.FileName, params.Text)
		if service.DetectReportType(params.Text) != result.ReportType {
			result.Source = "file_name"
		}
		return result, nil
	}
	result.ReportType = service.DetectReportType(params.Text)
	return result, nil
}

func (s *Server) parseTestResults(_ context.Context, params ParseParams) (any, error) {
	if err := requireText(params.Text); err != nil {
		return nil, err
	}
	rt, err := parseOptionalReportType(params.ReportType)
	if err != nil {
		return nil, err
	}
	if rt == "" {
		rt = service.DetectReportType(params.Text)
	}
	return s.deps.Parser.ParseTestResults(params.Text, rt), nil
}

func (s *Server) generateRecommendations(_ context.Context, params RecommendationsParams) (any, error) {
	rt, err := domain.ParseReportType(params.ReportType)
	if err != nil {
		return nil, domain.NewValidationError("report_type", err.Error(), params.ReportType)
	}

	tests := domain.NewTestSet()
	for _, t := range params.TestResults {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		tests.Add(t)
	}

	patient, err := params.PatientInfo.toPatientInfo()
	if err != nil {
		return nil, err
	}

	recs := s.deps.Engine.GenerateRecommendations(tests, rt, patient)
	return RecommendationsResult{
		RecommendationResult: recs,
		Summary:              service.GenerateSummaryReport(patient, rt, recs.Data),
	}, nil
}

func (p *PatientParams) toPatientInfo() (domain.PatientInfo, error) {
	var info domain.PatientInfo
	if p == nil {
		return info, nil
	}
	info.Name = p.Name
	info.Age = p.Age
	if p.Gender != "" {
		g, ok := domain.ParseGender(p.Gender)
		if !ok {
			return info, fmt.Errorf("%q: %w", p.Gender, domain.ErrInvalidGender)
		}
		info.Gender = &g
	}
	return info, nil
}

// maxReportFileSize bounds files read through analyze_lab_report.
const maxReportFileSize = ocr.DefaultMaxFileSize

func (s *Server) analyzeLabReport(ctx context.Context, params AnalyzeParams) (any, error) {
	rt, err := parseOptionalReportType(params.ReportType)
	if err != nil {
		return nil, err
	}

	req := service.AnalyzeParams{
		FileName:   params.FileName,
		ReportType: rt,
		Persist:    params.Persist,
	}
	if params.PatientInfo != nil {
		patient, err := params.PatientInfo.toPatientInfo()
		if err != nil {
			return nil, err
		}
		req.Patient = &patient
	}

	switch {
	case strings.TrimSpace(params.Text) != "":
		req.Text = params.Text
		req.MimeType = "text/plain"
	case params.FilePath != "":
		content, err := readReportFile(params.FilePath)
		if err != nil {
			return nil, err
		}
		req.Content = content
		req.MimeType = ocr.MimeTypeForFile(params.FilePath)
		if req.FileName == "" {
			req.FileName = filepath.Base(params.FilePath)
		}
	default:
		return nil, domain.NewValidationError("text", "either text or file_path is required", nil)
	}

	return s.deps.Analyzer.Analyze(ctx, req)
}

func readReportFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read report file: %w", err)
	}
	if info.IsDir() {
		return nil, domain.NewValidationError("file_path", "path is a directory", path)
	}
	if info.Size() > maxReportFileSize {
		return nil, domain.NewValidationError("file_path", fmt.Sprintf("File size must be less than %dMB", maxReportFileSize/(1024*1024)), info.Size())
	}
	return os.ReadFile(path)
}

func (s *Server) validateExtractedText(_ context.Context, params ValidateTextParams) (any, error) {
	confidence := 100.0
	if params.Confidence != nil {
		confidence = *params.Confidence
	}
	return ocr.ValidateExtractedText(params.Text, confidence, s.deps.Quality), nil
}

func (s *Server) lookupReferenceValue(ctx context.Context, params ReferenceLookupParams) (any, error) {
	if s.deps.References == nil {
		return nil, fmt.Errorf("reference values are not configured")
	}
	rt, err := domain.ParseReportType(params.ReportType)
	if err != nil {
		return nil, domain.NewValidationError("report_type", err.Error(), params.ReportType)
	}
	g, ok := domain.ParseGender(params.Gender)
	if !ok {
		return nil, fmt.Errorf("%q: %w", params.Gender, domain.ErrInvalidGender)
	}

	ref, err := s.deps.References.Lookup(ctx, rt, params.TestName, g, params.Age)
	if err != nil {
		return nil, err
	}
	return ReferenceLookupResult{Found: ref != nil, Reference: ref}, nil
}
