package ocr

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labpanel-mcp-server/internal/domain"
)

// DefaultMaxFileSize is the upload limit when none is configured.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// DefaultAllowedTypes are the MIME types accepted for report uploads.
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/tiff",
	"image/tif",
	"application/pdf",
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".pdf":  true,
	".tiff": true,
	".tif":  true,
}

// UploadLimits bounds what ValidateUpload accepts.
type UploadLimits struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// LimitsFromConfig builds upload limits from the OCR configuration.
func LimitsFromConfig(cfg domain.OCRConfig) UploadLimits {
	return UploadLimits{MaxFileSize: cfg.MaxFileSize, AllowedTypes: cfg.AllowedTypes}
}

// ValidateUpload checks an uploaded file's size, MIME type and extension.
// All violations are reported together.
func ValidateUpload(fileName, mimeType string, size int64, limits UploadLimits) []domain.ValidationError {
	maxSize := limits.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	allowed := limits.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}

	var errs []domain.ValidationError
	if size <= 0 {
		errs = append(errs, *domain.NewValidationError("file", "No file uploaded", fileName))
		return errs
	}
	if size > maxSize {
		errs = append(errs, *domain.NewValidationError("file", fmt.Sprintf("File size must be less than %dMB", maxSize/(1024*1024)), size))
	}
	if !isAllowedType(mimeType, allowed) {
		errs = append(errs, *domain.NewValidationError("mime_type", "Invalid file type. Only JPEG, PNG, TIFF, and PDF files are allowed", mimeType))
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
		errs = append(errs, *domain.NewValidationError("file_name", "Only image files (JPEG, PNG, TIFF) and PDF files are allowed", fileName))
	}
	return errs
}

// StoredFileName derives a collision-free name for a stored upload,
// keeping the original extension.
func StoredFileName(original string, now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("medical-report-%d-%s%s", now.UnixMilli(), suffix, strings.ToLower(filepath.Ext(original)))
}

func isAllowedType(mimeType string, allowed []string) bool {
	mimeType = normalizeMimeType(mimeType)
	for _, t := range allowed {
		if mimeType == t {
			return true
		}
	}
	return false
}

// normalizeMimeType strips parameters such as "; charset=utf-8".
func normalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

var mimeByExtension = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// MimeTypeForFile guesses a report's MIME type from its extension. Unknown
// extensions return "application/octet-stream".
func MimeTypeForFile(fileName string) string {
	if m, ok := mimeByExtension[strings.ToLower(filepath.Ext(fileName))]; ok {
		return m
	}
	return "application/octet-stream"
}
