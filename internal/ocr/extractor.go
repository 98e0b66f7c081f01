package ocr

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Extraction sources reported in domain.ExtractionResult.Source.
const (
	SourcePlainText = "text"
	SourcePDF       = "pdf"
	SourceRemoteOCR = "ocr_service"
)

// Extractor routes documents to a text backend by MIME type: plain text is
// used as is, PDFs are read from their text layer and images go to the
// remote OCR service. It implements domain.TextExtractor.
type Extractor struct {
	logger      *logrus.Logger
	pdf         *PDFExtractor
	remote      *RemoteClient
	postProcess bool
}

// NewExtractor wires the backends from configuration. The remote backend is
// disabled when no service URL is configured.
func NewExtractor(logger *logrus.Logger, cfg domain.OCRConfig) *Extractor {
	return &Extractor{
		logger:      logger,
		pdf:         NewPDFExtractor(logger, cfg.PDFLicenseKey),
		remote:      NewRemoteClient(cfg, logger),
		postProcess: cfg.PostProcessing,
	}
}

// Extract recovers text from content. Failures of a backend come back as
// an unsuccessful result; the error return is reserved for unsupported input.
func (e *Extractor) Extract(ctx context.Context, content []byte, mimeType string) (*domain.ExtractionResult, error) {
	mimeType = normalizeMimeType(mimeType)
	logger := e.logger.WithFields(logrus.Fields{
		"mime_type": mimeType,
		"bytes":     len(content),
	})

	var (
		result *domain.ExtractionResult
		err    error
	)
	switch {
	case mimeType == "text/plain":
		result, err = extractPlain(content)
	case mimeType == "application/pdf":
		result = e.extractPDF(ctx, content)
	case strings.HasPrefix(mimeType, "image/"):
		result, err = e.remote.Recognize(ctx, content, mimeType)
		if err != nil {
			logger.WithError(err).Warn("Image text extraction failed")
			result = &domain.ExtractionResult{Success: false, Source: SourceRemoteOCR, Error: err.Error()}
			err = nil
		}
	default:
		return nil, fmt.Errorf("%s: %w", mimeType, domain.ErrUnsupportedMimeType)
	}
	if err != nil {
		return nil, err
	}

	if result.Success && e.postProcess {
		result.Text = PostProcessText(result.Text)
	}

	logger.WithFields(logrus.Fields{
		"source":     result.Source,
		"success":    result.Success,
		"confidence": result.Confidence,
	}).Debug("Text extracted")
	return result, nil
}

func extractPlain(content []byte) (*domain.ExtractionResult, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("plain text is not valid UTF-8: %w", domain.ErrUnsupportedMimeType)
	}
	return &domain.ExtractionResult{
		Success:    true,
		Text:       string(content),
		Confidence: 100,
		Pages:      1,
		Source:     SourcePlainText,
	}, nil
}

// extractPDF prefers the text layer and falls back to OCR for scanned PDFs.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) *domain.ExtractionResult {
	text, pages, err := e.pdf.ExtractText(content)
	if err == nil && strings.TrimSpace(text) != "" {
		return &domain.ExtractionResult{
			Success:    true,
			Text:       text,
			Confidence: 100,
			Pages:      pages,
			Source:     SourcePDF,
		}
	}
	if err != nil {
		e.logger.WithError(err).Warn("PDF text layer extraction failed")
	}

	if e.remote.Configured() {
		result, ocrErr := e.remote.Recognize(ctx, content, "application/pdf")
		if ocrErr == nil {
			return result
		}
		err = ocrErr
	}

	msg := "PDF contains no extractable text"
	if err != nil {
		msg = err.Error()
	}
	return &domain.ExtractionResult{Success: false, Source: SourcePDF, Pages: pages, Error: msg}
}
