package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/service"
)

// Resource URIs
const (
	ResourceReportTypes     = "labpanel://report-types"
	ResourceReferenceValues = "labpanel://reference-values"
)

// PromptInterpretReport is the name of the report interpretation prompt.
const PromptInterpretReport = "interpret_lab_report"

// reportTypeInfo describes one panel for the report-types resource.
type reportTypeInfo struct {
	ReportType domain.ReportType `json:"report_type"`
	Tests      []testInfo        `json:"tests"`
}

type testInfo struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

var panelTests = map[domain.ReportType][]string{
	domain.ReportTypeCBC: {
		service.TestHb, service.TestTotalRBC, service.TestHCT, service.TestMCV, service.TestMCH,
		service.TestMCHC, service.TestPlateletCount, service.TestWBCCount, service.TestNeutrophils,
		service.TestLymphocytes, service.TestMonocytes, service.TestEosinophils,
	},
	domain.ReportTypeLiverFunction: {
		service.TestBilirubinTotal, service.TestBilirubinConjugated, service.TestBilirubinUnconjugated,
		service.TestSGPT, service.TestSGOT, service.TestAlkalinePhosphatase, service.TestGammaGT,
		service.TestTotalProtein, service.TestAlbumin, service.TestGlobulins, service.TestAGRatio,
	},
	domain.ReportTypeDiabetes: {service.TestHbA1c},
	domain.ReportTypeThyroid: {
		service.TestTSH, service.TestT3, service.TestT4, service.TestFreeT3, service.TestFreeT4,
	},
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         ResourceReportTypes,
		Name:        "report-types",
		Description: "Supported report types and the tests parsed for each",
		MIMEType:    "application/json",
	}, s.handleReadResource)

	if s.deps.References != nil {
		s.mcpServer.AddResource(&mcp.Resource{
			URI:         ResourceReferenceValues,
			Name:        "reference-values",
			Description: "Stored reference ranges by category, test, gender and age",
			MIMEType:    "application/json",
		}, s.handleReadResource)
	}
}

func (s *Server) handleReadResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	text, err := s.readResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}, nil
}

// readResource renders the JSON body of a resource.
func (s *Server) readResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourceReportTypes:
		types := make([]reportTypeInfo, 0, len(panelTests))
		for _, rt := range domain.AllReportTypes() {
			names, ok := panelTests[rt]
			if !ok {
				continue
			}
			info := reportTypeInfo{ReportType: rt}
			for _, name := range names {
				info.Tests = append(info.Tests, testInfo{Name: name, Unit: service.UnitFor(name)})
			}
			types = append(types, info)
		}
		data, err := json.MarshalIndent(types, "", "  ")
		return string(data), err

	case ResourceReferenceValues:
		if s.deps.References == nil {
			return "", fmt.Errorf("reference values are not configured")
		}
		var buf bytes.Buffer
		if err := s.deps.References.Export(ctx, &buf); err != nil {
			return "", err
		}
		return buf.String(), nil

	default:
		return "", fmt.Errorf("unknown resource %q: %w", uri, domain.ErrNotFound)
	}
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        PromptInterpretReport,
		Description: "Explain a lab report to a patient in plain language",
		Arguments: []*mcp.PromptArgument{
			{Name: "text", Description: "Extracted lab report text", Required: true},
			{Name: "audience", Description: "patient or clinician; defaults to patient"},
		},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		body, err := renderInterpretPrompt(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: "Lab report interpretation",
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: body}},
			},
		}, nil
	})
}

func renderInterpretPrompt(args map[string]string) (string, error) {
	text := strings.TrimSpace(args["text"])
	if text == "" {
		return "", fmt.Errorf("argument text is required")
	}
	audience := args["audience"]
	if audience == "" {
		audience = "patient"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Interpret the following lab report for a %s.\n", audience)
	fmt.Fprintf(&b, "First call the %s tool with the report text, then explain:\n", ToolAnalyzeLabReport)
	b.WriteString("1. Which results are outside their normal range and how far.\n")
	b.WriteString("2. The overall severity and whether prompt medical attention is advised.\n")
	b.WriteString("3. The recommended lifestyle changes and follow-up.\n")
	if audience == "patient" {
		b.WriteString("Use plain language and avoid jargon. Do not give a diagnosis.\n")
	}
	b.WriteString("\nReport text:\n")
	b.WriteString(text)
	return b.String(), nil
}
