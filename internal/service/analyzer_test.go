package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpanel-mcp-server/internal/domain"
)

type mapCache struct {
	mu    sync.Mutex
	items map[string]*domain.AnalysisResult
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]*domain.AnalysisResult{}}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[key]
	return r, ok
}

func (c *mapCache) Set(_ context.Context, key string, result *domain.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = result
	c.sets++
}

type memoryReports struct {
	saved []*domain.StoredReport
	err   error
}

func (m *memoryReports) SaveReport(_ context.Context, report *domain.StoredReport) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, report)
	return nil
}

func (m *memoryReports) GetReport(context.Context, string) (*domain.StoredReport, error) {
	return nil, domain.ErrNotFound
}

func (m *memoryReports) ListReports(context.Context, domain.ReportFilter) ([]*domain.StoredReport, error) {
	return m.saved, nil
}

func (m *memoryReports) UpdateReportStatus(context.Context, string, domain.ReportStatus) error {
	return nil
}

func (m *memoryReports) DeleteReport(context.Context, string) error {
	return nil
}

func (m *memoryReports) Close() error {
	return nil
}

type stubExtractor struct {
	result *domain.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(context.Context, []byte, string) (*domain.ExtractionResult, error) {
	return s.result, s.err
}

const patientCBCReport = "Patient Name: JOHN DOE Registration Date: 12-Mar-2024\n" +
	"Age/Sex: 45 Year(s) / Male\n" + cbcReport

func TestAnalyzer_AnalyzeText(t *testing.T) {
	cache := newMapCache()
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{Cache: cache})

	result, err := analyzer.Analyze(context.Background(), AnalyzeParams{FileName: "report.txt", Text: patientCBCReport})
	require.NoError(t, err)

	assert.Equal(t, domain.ReportTypeCBC, result.ReportType)
	require.NotNil(t, result.PatientInfo.Name)
	assert.Equal(t, "JOHN DOE", *result.PatientInfo.Name)
	require.True(t, result.Parse.Success)
	assert.Equal(t, 9, result.Parse.Data.Len())
	require.True(t, result.Recommendations.Success)
	assert.Equal(t, domain.SeverityCritical, result.Summary.Severity)
	assert.Equal(t, 9, result.Summary.TotalTests)
	assert.Equal(t, "JOHN DOE", *result.Summary.PatientName)
	require.NotNil(t, result.Quality)
	assert.True(t, result.Quality.IsValid)
	assert.Equal(t, false, result.Metadata["cache_hit"])
	assert.Empty(t, result.ReportID)
	assert.Equal(t, 1, cache.sets)

	again, err := analyzer.Analyze(context.Background(), AnalyzeParams{FileName: "report.txt", Text: patientCBCReport})
	require.NoError(t, err)
	assert.Equal(t, true, again.Metadata["cache_hit"])
	assert.Equal(t, false, result.Metadata["cache_hit"])
	assert.Equal(t, 1, cache.sets)
}

func TestAnalyzer_ReportTypeHint(t *testing.T) {
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{})

	result, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		Text:       "Result: TSH 6.2",
		ReportType: domain.ReportTypeThyroid,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportTypeThyroid, result.ReportType)
	assert.Equal(t, 1, result.Parse.Data.Len())
}

func TestAnalyzer_ReferenceEnrichment(t *testing.T) {
	lookup := newFakeLookup()
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{
		References: NewReferenceComparator(newTestLogger(), lookup),
	})

	text := "Patient Name: JANE ROE Registration Date: 01-Jan-2024\nAge/Sex: 30 Year(s) / Female\nTHYROID PROFILE\nTSH 5.1"
	result, err := analyzer.Analyze(context.Background(), AnalyzeParams{Text: text})
	require.NoError(t, err)

	tsh := requireTest(t, result.Parse.Data, TestTSH)
	assertInterval(t, tsh.NormalRange, 0.4, 4.0)
	require.Len(t, result.ReferenceComparisons, 1)
	assert.Equal(t, domain.ComparisonHigh, result.ReferenceComparisons[0].Status)
	require.Len(t, result.Recommendations.Data.AbnormalTests, 1)
	assert.Equal(t, domain.DeviationHigh, result.Recommendations.Data.AbnormalTests[0].Deviation)
}

func TestAnalyzer_PatientOverride(t *testing.T) {
	cache := newMapCache()
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{
		References: NewReferenceComparator(newTestLogger(), newFakeLookup()),
		Cache:      cache,
	})

	age := 30
	gender := domain.GenderFemale
	name := "JANE ROE"
	result, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		Text:    "THYROID PROFILE\nTSH 5.1",
		Patient: &domain.PatientInfo{Name: &name, Age: &age, Gender: &gender},
	})
	require.NoError(t, err)

	assert.Equal(t, name, *result.PatientInfo.Name)
	assert.Equal(t, name, *result.Summary.PatientName)
	require.Len(t, result.ReferenceComparisons, 1)
	assert.Equal(t, domain.ComparisonHigh, result.ReferenceComparisons[0].Status)
	assert.Equal(t, 0, cache.sets)

	extracted := mergePatient(domain.PatientInfo{Age: &age}, &domain.PatientInfo{Name: &name})
	assert.Equal(t, age, *extracted.Age)
	assert.Equal(t, name, *extracted.Name)
	assert.Nil(t, extracted.Gender)
}

func TestAnalyzer_Persist(t *testing.T) {
	reports := &memoryReports{}
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{Reports: reports})

	result, err := analyzer.Analyze(context.Background(), AnalyzeParams{FileName: "cbc.txt", MimeType: "text/plain", Text: cbcReport, Persist: true})
	require.NoError(t, err)

	require.Len(t, reports.saved, 1)
	saved := reports.saved[0]
	assert.Equal(t, result.ReportID, saved.ID)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, domain.ReportStatusPending, saved.Status)
	assert.Equal(t, domain.ReportTypeCBC, saved.Panel.ReportType)
	assert.Equal(t, 9, saved.Panel.Tests.Len())
	require.NotNil(t, saved.Recommendations)
	assert.Equal(t, domain.SeverityCritical, saved.Recommendations.Severity)

	reports.err = errors.New("disk full")
	_, err = analyzer.Analyze(context.Background(), AnalyzeParams{Text: cbcReport, Persist: true})
	assert.Error(t, err)
}

func TestAnalyzer_Extraction(t *testing.T) {
	t.Run("extracted text analyzed", func(t *testing.T) {
		extractor := &stubExtractor{result: &domain.ExtractionResult{
			Success: true, Text: "THYROID PROFILE\nTSH 2.5", Confidence: 55, Source: "ocr_service",
		}}
		analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{Extractor: extractor})

		result, err := analyzer.Analyze(context.Background(), AnalyzeParams{FileName: "scan.png", MimeType: "image/png", Content: []byte{1}})
		require.NoError(t, err)
		require.NotNil(t, result.Extraction)
		assert.Equal(t, 55.0, result.Extraction.Confidence)
		assert.Contains(t, result.Quality.Warnings, "Low OCR confidence. Results may be inaccurate.")
		assert.Equal(t, domain.ReportTypeThyroid, result.ReportType)
	})

	t.Run("unsuccessful extraction", func(t *testing.T) {
		extractor := &stubExtractor{result: &domain.ExtractionResult{Success: false, Error: "blurry"}}
		analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{Extractor: extractor})

		_, err := analyzer.Analyze(context.Background(), AnalyzeParams{MimeType: "image/png", Content: []byte{1}})
		assert.ErrorIs(t, err, ErrExtractionFailed)
	})

	t.Run("extractor error", func(t *testing.T) {
		extractor := &stubExtractor{err: domain.ErrUnsupportedMimeType}
		analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{Extractor: extractor})

		_, err := analyzer.Analyze(context.Background(), AnalyzeParams{MimeType: "application/zip", Content: []byte{1}})
		assert.ErrorIs(t, err, ErrExtractionFailed)
		assert.ErrorIs(t, err, domain.ErrUnsupportedMimeType)
	})

	t.Run("no extractor", func(t *testing.T) {
		analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{})
		_, err := analyzer.Analyze(context.Background(), AnalyzeParams{MimeType: "image/png", Content: []byte{1}})
		assert.ErrorIs(t, err, domain.ErrExtractionUnavailable)
	})
}

func TestAnalyzer_RequiresInput(t *testing.T) {
	analyzer := NewAnalyzer(newTestLogger(), AnalyzerDeps{})

	_, err := analyzer.Analyze(context.Background(), AnalyzeParams{Text: "   "})
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "text", validationErr.Field)
}
