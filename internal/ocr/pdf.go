package ocr

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var licenseOnce sync.Once

// PDFExtractor reads the embedded text layer of PDF reports. Scanned PDFs
// without a text layer yield empty text.
type PDFExtractor struct {
	logger *logrus.Logger
}

// NewPDFExtractor creates a PDF extractor. A non-empty licenseKey is
// registered with the PDF library once per process.
func NewPDFExtractor(logger *logrus.Logger, licenseKey string) *PDFExtractor {
	if licenseKey != "" {
		licenseOnce.Do(func() {
			if err := license.SetMeteredKey(licenseKey); err != nil {
				logger.WithError(err).Warn("Failed to register PDF license key")
			}
		})
	}
	return &PDFExtractor{logger: logger}
}

// ExtractText returns the text of every readable page and the page count.
// Pages that fail to extract are skipped.
func (p *PDFExtractor) ExtractText(content []byte) (string, int, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(content))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", 0, fmt.Errorf("failed checking encryption: %w", err)
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return "", 0, fmt.Errorf("failed to decrypt PDF: %w", err)
		}
		if !ok {
			return "", 0, fmt.Errorf("PDF is password-protected")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			p.skipPage(i, "read", err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			p.skipPage(i, "extractor", err)
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			p.skipPage(i, "extract", err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), numPages, nil
}

// skipPage logs a page dropped from the output. An unlicensed PDF library
// fails every page, so these are warnings.
func (p *PDFExtractor) skipPage(page int, stage string, err error) {
	p.logger.WithError(err).WithFields(logrus.Fields{
		"page":  page,
		"stage": stage,
	}).Warn("Skipping PDF page")
}
