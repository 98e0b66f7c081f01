package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Parsing error",
			code:      ErrCodeParsing,
			message:   "Failed to parse test results",
			details:   "no recognizable panel in text",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrCodeDatabase,
			message:   "Database connection failed",
			details:   "Unable to open SQLite store",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.details, err.Details)
			assert.Equal(t, tt.requestID, err.RequestID)
			assert.WithinDuration(t, time.Now().UTC(), err.Timestamp, time.Minute)
			assert.Equal(t, tt.code+": "+tt.message, err.Error())
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("report_type", "unknown report type", "Lipid")

	assert.Equal(t, "report_type", err.Field)
	assert.Equal(t, "Lipid", err.Value)
	assert.Equal(t, "validation error for field 'report_type': unknown report type", err.Error())

	var target *ValidationError
	wrapped := fmt.Errorf("request rejected: %w", err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "report_type", target.Field)
}
