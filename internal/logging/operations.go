package logging

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

const (
	redacted         = "[REDACTED]"
	maxLoggedValue   = 200
	truncationSuffix = "... [TRUNCATED]"
)

// Fields that can carry patient identity or raw report text.
var sensitiveKeys = []string{
	"patient", "name", "text", "content", "file", "password", "token", "secret", "key",
}

// CorrelationID returns the correlation ID carried by ctx, if any.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID returns a context carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// OperationStats summarizes tracked operations by name.
type OperationStats struct {
	Calls         int64         `json:"calls"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
}

// OperationLogger logs the start and end of tool calls and HTTP handlers
// with a correlation ID and scrubbed parameters.
type OperationLogger struct {
	logger *logrus.Logger
	mu     sync.Mutex
	stats  map[string]*OperationStats
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(logger *logrus.Logger) *OperationLogger {
	return &OperationLogger{
		logger: logger,
		stats:  make(map[string]*OperationStats),
	}
}

// Operation is an in-flight tracked call.
type Operation struct {
	parent        *OperationLogger
	name          string
	correlationID string
	start         time.Time
}

// Start logs the beginning of an operation and returns a context carrying its
// correlation ID. An existing correlation ID in ctx is reused.
func (l *OperationLogger) Start(ctx context.Context, name string, params map[string]interface{}) (context.Context, *Operation) {
	id := CorrelationID(ctx)
	if id == "" {
		id = uuid.New().String()
		ctx = WithCorrelationID(ctx, id)
	}

	l.logger.WithFields(Sanitize(params)).WithFields(logrus.Fields{
		"correlation_id": id,
		"operation":      name,
	}).Debug("Operation started")

	return ctx, &Operation{parent: l, name: name, correlationID: id, start: time.Now()}
}

// End logs the outcome of the operation and records its duration.
func (op *Operation) End(err error) {
	duration := time.Since(op.start)
	l := op.parent

	l.mu.Lock()
	s, ok := l.stats[op.name]
	if !ok {
		s = &OperationStats{}
		l.stats[op.name] = s
	}
	s.Calls++
	s.TotalDuration += duration
	if err != nil {
		s.Failures++
	}
	l.mu.Unlock()

	entry := l.logger.WithFields(logrus.Fields{
		"correlation_id": op.correlationID,
		"operation":      op.name,
		"duration_ms":    duration.Milliseconds(),
		"success":        err == nil,
	})
	if err != nil {
		entry.WithError(err).Warn("Operation failed")
		return
	}
	entry.Info("Operation completed")
}

// CorrelationID returns the operation's correlation ID.
func (op *Operation) CorrelationID() string {
	return op.correlationID
}

// Stats returns a snapshot of per-operation counters.
func (l *OperationLogger) Stats() map[string]OperationStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]OperationStats, len(l.stats))
	for name, s := range l.stats {
		out[name] = *s
	}
	return out
}

// Sanitize redacts fields whose key suggests patient data or secrets and
// truncates long string values.
func Sanitize(params map[string]interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(params))
	for k, v := range params {
		fields[k] = sanitizeField(k, v)
	}
	return fields
}

func sanitizeField(key string, value interface{}) interface{} {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitiveKeys {
		if strings.Contains(lowerKey, pattern) {
			return redacted
		}
	}
	if str, ok := value.(string); ok && len(str) > maxLoggedValue {
		return str[:maxLoggedValue] + truncationSuffix
	}
	return value
}
