// Package logging builds the logrus loggers used by the servers and tracks
// tool and request operations with correlation IDs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labpanel-mcp-server/internal/domain"
)

// Log format names
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New creates a logger from the logging configuration. The returned close
// function releases the log file when output is "file" and is a no-op otherwise.
func New(config domain.LoggingConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(formatter(config.Format))

	closer := func() error { return nil }
	out, err := output(config)
	if err != nil {
		return nil, closer, err
	}
	logger.SetOutput(out)
	if f, ok := out.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		closer = f.Close
	}

	return logger, closer, nil
}

// NewStderr creates a logger writing to stderr. The stdio MCP transport owns
// stdout, so the MCP servers always log here.
func NewStderr(level, format string) *logrus.Logger {
	logger, _, _ := New(domain.LoggingConfig{Level: level, Format: format, Output: "stderr"})
	return logger
}

func formatter(format string) logrus.Formatter {
	if strings.ToLower(format) == FormatText {
		return &logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		}
	}
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

func output(config domain.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if config.Filename == "" {
			return nil, fmt.Errorf("log output is file but no filename is configured")
		}
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(config.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", config.Output)
	}
}
