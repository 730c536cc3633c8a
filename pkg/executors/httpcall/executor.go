// Package httpcall provides an executor that performs an HTTP request, with
// optional retries on transport errors and 5xx responses.
package httpcall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Name() string {
	return "http_call"
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	return NewExecutor(config)
}

func (f *Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       "HTTP Call",
		Description: "Performs an HTTP request to a specified URL with optional headers and body.",
		Properties: map[string]*models.Property{
			"url": {
				Type:        "string",
				Description: "The URL to send the HTTP request to",
			},
			"method": {
				Type:        "string",
				Description: "HTTP method to use",
				Default:     "GET",
				Enum:        []any{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"},
			},
			"headers": {
				Type:        "object",
				Description: "HTTP headers to include in the request",
			},
			"body": {
				Type:        "string",
				Description: "Request body content",
			},
			"retry_attempts": {
				Type:        "integer",
				Description: "Extra attempts on transport errors and 5xx responses",
				Default:     0,
			},
			"retry_delay_ms": {
				Type:        "integer",
				Description: "Delay between attempts in milliseconds",
				Default:     1000,
			},
		},
		Required: []string{"url"},
	}
}

type Executor struct {
	url        string
	method     string
	headers    map[string]string
	body       string
	attempts   int
	retryDelay time.Duration
	client     *http.Client
}

func NewExecutor(config map[string]any) (*Executor, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http_call requires a url parameter")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)
	if raw, ok := config["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	attempts := 1
	if raw, ok := config["retry_attempts"].(float64); ok {
		attempts += int(raw)
	}

	retryDelay := time.Second
	if raw, ok := config["retry_delay_ms"].(float64); ok {
		retryDelay = time.Duration(raw) * time.Millisecond
	}

	return &Executor{
		url:        url,
		method:     strings.ToUpper(method),
		headers:    headers,
		body:       body,
		attempts:   attempts,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "http_call", "workflow_id", req.Workflow.ID,
		"step_number", req.Step.StepNumber, "url", e.url, "method", e.method)

	logger.InfoContext(ctx, "Executing HTTP call")

	var lastErr error

	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP call", "attempt", attempt, "max_attempts", e.attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}

		result, retryable, err := e.doRequest(ctx, req.CorrelationID)
		if err == nil {
			logger.InfoContext(ctx, "HTTP call completed", "status_code", result["status_code"])

			return result, nil
		}

		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("http call failed after %d attempt(s): %w", e.attempts, lastErr)
}

// doRequest performs one attempt. The second return value reports whether
// the failure is worth retrying.
func (e *Executor) doRequest(ctx context.Context, correlationID string) (map[string]any, bool, error) {
	var bodyReader io.Reader
	if e.body != "" {
		bodyReader = strings.NewReader(e.body)
	}

	request, err := http.NewRequestWithContext(ctx, e.method, e.url, bodyReader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range e.headers {
		request.Header.Set(key, value)
	}

	if correlationID != "" {
		request.Header.Set("X-Correlation-ID", correlationID)
	}

	response, err := e.client.Do(request)
	if err != nil {
		return nil, true, fmt.Errorf("http request failed: %w", err)
	}
	defer response.Body.Close()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("server error (status %d)", response.StatusCode)
	}

	if response.StatusCode >= http.StatusBadRequest {
		return nil, false, fmt.Errorf("request rejected (status %d)", response.StatusCode)
	}

	var parsed any
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		parsed = string(bodyBytes)
	}

	return map[string]any{
		"status_code": response.StatusCode,
		"body":        parsed,
	}, false, nil
}
