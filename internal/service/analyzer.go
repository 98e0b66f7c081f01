package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/ocr"
)

// ErrExtractionFailed is returned when no text could be recovered from an upload.
var ErrExtractionFailed = errors.New("text extraction failed")

// AnalysisCache stores finished analyses keyed by input hash.
type AnalysisCache interface {
	Get(ctx context.Context, key string) (*domain.AnalysisResult, bool)
	Set(ctx context.Context, key string, result *domain.AnalysisResult)
}

// AnalyzerDeps are the collaborators of an Analyzer. Extractor, References,
// Cache and Reports are optional.
type AnalyzerDeps struct {
	Extractor  domain.TextExtractor
	Patients   *PatientInfoExtractor
	Parser     *PanelParser
	Engine     *RecommendationEngine
	References *ReferenceComparator
	Cache      AnalysisCache
	Reports    domain.ReportRepository
	Quality    ocr.QualityThresholds

	// PostProcess cleans caller-supplied text the same way extracted text is cleaned.
	PostProcess bool
}

// AnalyzeParams describes one report to analyze. Either Content (with
// MimeType) or Text must be set.
type AnalyzeParams struct {
	FileName   string
	MimeType   string
	Content    []byte
	Text       string
	ReportType domain.ReportType
	Persist    bool

	// Patient overrides the extracted fields it sets. Analyses with
	// overrides bypass the cache.
	Patient *domain.PatientInfo
}

// Analyzer runs the full pipeline: extraction, patient info, classification,
// parsing, recommendations, summary and reference comparison.
type Analyzer struct {
	logger *logrus.Logger
	deps   AnalyzerDeps
}

// NewAnalyzer creates a new analyzer. Missing core collaborators are
// created with default settings.
func NewAnalyzer(logger *logrus.Logger, deps AnalyzerDeps) *Analyzer {
	if deps.Patients == nil {
		deps.Patients = NewPatientInfoExtractor(logger)
	}
	if deps.Parser == nil {
		deps.Parser = NewPanelParser(logger, domain.DefaultParserConfig())
	}
	if deps.Engine == nil {
		deps.Engine = NewRecommendationEngine(logger)
	}
	return &Analyzer{logger: logger, deps: deps}
}

// Analyze processes one report. Parse and recommendation failures are
// reported inside the result; the error return covers invalid input,
// extraction failure and persistence failure.
func (a *Analyzer) Analyze(ctx context.Context, params AnalyzeParams) (*domain.AnalysisResult, error) {
	start := time.Now()
	logger := a.logger.WithFields(logrus.Fields{
		"file_name": params.FileName,
		"mime_type": params.MimeType,
	})

	text, extraction, err := a.resolveText(ctx, params)
	if err != nil {
		return nil, err
	}

	key := cacheKey(params.FileName, params.ReportType, text)
	useCache := a.deps.Cache != nil && params.Patient == nil
	if useCache {
		if cached, ok := a.deps.Cache.Get(ctx, key); ok {
			logger.Debug("Analysis served from cache")
			result := *cached
			result.Metadata = copyMetadata(cached.Metadata)
			result.Metadata["cache_hit"] = true
			result.ReportID = ""
			if params.Persist {
				if err := a.persist(ctx, &result, params, text); err != nil {
					return nil, err
				}
			}
			return &result, nil
		}
	}

	result := &domain.AnalysisResult{
		FileName:   params.FileName,
		Extraction: extraction,
		Metadata:   map[string]interface{}{},
		Timestamp:  time.Now(),
	}

	confidence := 100.0
	if extraction != nil {
		confidence = extraction.Confidence
	}
	quality := ocr.ValidateExtractedText(text, confidence, a.deps.Quality)
	result.Quality = &quality

	var (
		patient    domain.PatientInfo
		reportType domain.ReportType
		g          errgroup.Group
	)
	g.Go(func() error {
		patient = a.deps.Patients.Extract(text)
		return nil
	})
	g.Go(func() error {
		reportType = params.ReportType
		if !reportType.IsValid() || reportType == domain.ReportTypeOther {
			reportType = ClassifyReportType(params.FileName, text)
		}
		return nil
	})
	_ = g.Wait()
	patient = mergePatient(patient, params.Patient)

	result.PatientInfo = patient

	parse := a.deps.Parser.ParseTestResults(text, reportType)
	reportType = parse.ReportType
	result.ReportType = reportType
	result.Parse = parse

	tests := parse.Data
	if tests == nil {
		tests = domain.NewTestSet()
	}
	if a.deps.References != nil && patient.Gender != nil && patient.Age != nil {
		tests = a.deps.References.ApplyReferenceRanges(ctx, tests, reportType, *patient.Gender, *patient.Age)
		parse.Data = tests
		result.ReferenceComparisons = a.deps.References.CompareWithReferenceValues(ctx, tests, reportType, *patient.Gender, *patient.Age)
	}

	recs := a.deps.Engine.GenerateRecommendations(tests, reportType, patient)
	result.Recommendations = recs
	if !recs.Success {
		logger.WithField("error", recs.Error).Warn("Recommendations unavailable, returning parsed tests only")
	}

	result.Summary = GenerateSummaryReport(patient, reportType, recs.Data)

	result.Metadata["text_length"] = len(text)
	result.Metadata["tests_found"] = tests.Len()
	result.Metadata["cache_hit"] = false
	result.ProcessingTime = time.Since(start)

	if useCache {
		a.deps.Cache.Set(ctx, key, result)
	}

	if params.Persist {
		if err := a.persist(ctx, result, params, text); err != nil {
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"report_type":     reportType,
		"tests_found":     tests.Len(),
		"overall_status":  result.Summary.OverallStatus,
		"severity":        result.Summary.Severity,
		"processing_time": result.ProcessingTime,
	}).Info("Report analyzed")

	return result, nil
}

// mergePatient applies the set fields of override on top of extracted.
func mergePatient(extracted domain.PatientInfo, override *domain.PatientInfo) domain.PatientInfo {
	if override == nil {
		return extracted
	}
	if override.Name != nil {
		extracted.Name = override.Name
	}
	if override.Age != nil {
		extracted.Age = override.Age
	}
	if override.Gender != nil {
		extracted.Gender = override.Gender
	}
	if override.RegistrationDate != nil {
		extracted.RegistrationDate = override.RegistrationDate
	}
	if override.PatientNumber != nil {
		extracted.PatientNumber = override.PatientNumber
	}
	return extracted
}

// resolveText returns the text to analyze, extracting it from Content when
// no text was supplied.
func (a *Analyzer) resolveText(ctx context.Context, params AnalyzeParams) (string, *domain.ExtractionResult, error) {
	if strings.TrimSpace(params.Text) != "" {
		text := params.Text
		if a.deps.PostProcess {
			text = ocr.PostProcessText(text)
		}
		return text, nil, nil
	}

	if len(params.Content) == 0 {
		return "", nil, domain.NewValidationError("text", "either text or file content is required", nil)
	}
	if a.deps.Extractor == nil {
		return "", nil, fmt.Errorf("no text extractor configured: %w", domain.ErrExtractionUnavailable)
	}

	extraction, err := a.deps.Extractor.Extract(ctx, params.Content, params.MimeType)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if !extraction.Success {
		return "", extraction, fmt.Errorf("%w: %s", ErrExtractionFailed, extraction.Error)
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return "", extraction, fmt.Errorf("%w: no text found in document", ErrExtractionFailed)
	}
	return extraction.Text, extraction, nil
}

func (a *Analyzer) persist(ctx context.Context, result *domain.AnalysisResult, params AnalyzeParams, text string) error {
	if a.deps.Reports == nil {
		return nil
	}

	now := time.Now()
	stored := &domain.StoredReport{
		ID:            uuid.New().String(),
		FileName:      params.FileName,
		MimeType:      params.MimeType,
		ExtractedText: text,
		PatientInfo:   result.PatientInfo,
		ReportType:    result.ReportType,
		Panel:         result.Parse.Panel(),
		Summary:       result.Summary,
		Status:        domain.ReportStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if result.Recommendations != nil {
		stored.Recommendations = result.Recommendations.Data
	}

	if err := a.deps.Reports.SaveReport(ctx, stored); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	result.ReportID = stored.ID
	return nil
}

func cacheKey(fileName string, hint domain.ReportType, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(fileName)))
	h.Write([]byte{0})
	h.Write([]byte(hint))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
