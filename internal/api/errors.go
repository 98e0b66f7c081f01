package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/service"
)

// respondError writes err as an APIError with a status derived from its kind.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := classifyError(err)
	apiErr := domain.NewAPIError(code, http.StatusText(status), err.Error(), c.GetString("correlation_id"))

	entry := s.logger.WithError(err).WithField("correlation_id", apiErr.RequestID)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
		apiErr.Details = ""
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
}

// respondValidation reports a list of field errors with 400.
func (s *Server) respondValidation(c *gin.Context, errs []domain.ValidationError) {
	apiErr := domain.NewAPIError(domain.ErrCodeValidation, "Validation failed", "", c.GetString("correlation_id"))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  apiErr,
		"fields": errs,
	})
}

func (s *Server) respondUnavailable(c *gin.Context, what string) {
	apiErr := domain.NewAPIError(domain.ErrCodeInternalServer, what+" is not configured", "", c.GetString("correlation_id"))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": apiErr})
}

func classifyError(err error) (int, string) {
	var (
		validation *domain.ValidationError
		syntax     *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, domain.ErrCodeValidation
	case errors.As(err, &syntax), errors.As(err, &typeErr):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrDuplicateReference):
		return http.StatusConflict, domain.ErrCodeValidation
	case errors.Is(err, domain.ErrInvalidReportType),
		errors.Is(err, domain.ErrInvalidReportStatus),
		errors.Is(err, domain.ErrInvalidGender),
		errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.Is(err, domain.ErrExtractionUnavailable):
		return http.StatusServiceUnavailable, domain.ErrCodeExtraction
	case errors.Is(err, domain.ErrUnsupportedMimeType):
		return http.StatusUnsupportedMediaType, domain.ErrCodeExtraction
	case errors.Is(err, service.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, domain.ErrCodeExtraction
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrCodeInternalServer
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternalServer
	}
}
