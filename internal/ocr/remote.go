package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/labpanel-mcp-server/internal/domain"
)

// RemoteClient sends images to an external OCR service. The service accepts
// the raw file as the request body and answers with recognized text.
type RemoteClient struct {
	serviceURL string
	apiKey     string
	retries    int
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// remoteResponse is the OCR service's JSON reply.
type remoteResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages"`
	Error      string  `json:"error,omitempty"`
}

// errRetryable marks failures worth another attempt.
var errRetryable = errors.New("retryable OCR service failure")

// NewRemoteClient creates an OCR service client with rate limiting and a
// circuit breaker.
func NewRemoteClient(cfg domain.OCRConfig, logger *logrus.Logger) *RemoteClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	return &RemoteClient{
		serviceURL: cfg.ServiceURL,
		apiKey:     cfg.APIKey,
		retries:    cfg.RetryCount,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "OCRService",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from_state":      from.String(),
					"to_state":        to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
		logger: logger,
	}
}

// Configured reports whether a service URL was provided.
func (c *RemoteClient) Configured() bool {
	return c != nil && c.serviceURL != ""
}

// Recognize runs OCR on an image.
func (c *RemoteClient) Recognize(ctx context.Context, content []byte, mimeType string) (*domain.ExtractionResult, error) {
	if !c.Configured() {
		return nil, domain.ErrExtractionUnavailable
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.recognizeWithRetry(ctx, content, mimeType)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("OCR service unavailable (circuit breaker open): %w", domain.ErrExtractionUnavailable)
		}
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}

	resp := result.(*remoteResponse)
	return &domain.ExtractionResult{
		Success:    true,
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Pages:      resp.Pages,
		Source:     SourceRemoteOCR,
	}, nil
}

func (c *RemoteClient) recognizeWithRetry(ctx context.Context, content []byte, mimeType string) (*remoteResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.recognizeOnce(ctx, content, mimeType)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, errRetryable) {
			break
		}
		c.logger.WithError(err).WithField("attempt", attempt+1).Debug("Retrying OCR request")
	}
	return nil, lastErr
}

func (c *RemoteClient) recognizeOnce(ctx context.Context, content []byte, mimeType string) (*remoteResponse, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "LabPanel-MCP-Server/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %v: %w", err, errRetryable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("OCR service returned status %d: %w", resp.StatusCode, errRetryable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("OCR service error: %s", out.Error)
	}
	return &out, nil
}

// State returns the circuit breaker state.
func (c *RemoteClient) State() gobreaker.State {
	return c.breaker.State()
}
