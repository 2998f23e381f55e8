package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/observability"
)

// Health is the body returned by a service's /health endpoint.
type Health struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// UpstreamError is a failed call to an upstream service. Message is what the
// dashboard shows to the user.
type UpstreamError struct {
	Upstream string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ServiceClient calls one resource service over HTTP.
type ServiceClient struct {
	name       string
	baseURL    string
	resource   string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ClientOptions configures a ServiceClient.
type ClientOptions struct {
	// Name labels metrics and logs, e.g. "users".
	Name string
	// BaseURL is the service root without a trailing slash.
	BaseURL string
	// Resource is the collection path, e.g. "/users".
	Resource string
	// Timeout bounds each call; zero leaves it to the transport.
	Timeout time.Duration
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewServiceClient creates a client for one service.
func NewServiceClient(opts ClientOptions) *ServiceClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceClient{
		name:       opts.Name,
		baseURL:    opts.BaseURL,
		resource:   opts.Resource,
		httpClient: &http.Client{Timeout: opts.Timeout},
		metrics:    opts.Metrics,
		logger:     logger.With(zap.String("upstream", opts.Name)),
	}
}

// Health fetches the service health.
func (c *ServiceClient) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, "health", http.MethodGet, "/health", nil, &out)
	return out, err
}

// List fetches the newest records. Records are passed through unchanged.
func (c *ServiceClient) List(ctx context.Context) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	if err := c.do(ctx, "list", http.MethodGet, c.resource, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a new record and returns the created one.
func (c *ServiceClient) Create(ctx context.Context, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "create", http.MethodPost, c.resource, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ServiceClient) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstream(c.name, op, err)
		if err != nil {
			c.logger.Warn("upstream call failed",
				zap.String("operation", op),
				zap.Duration("latency", time.Since(start)),
				zap.Error(err))
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(observability.HeaderRequestID, rid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Upstream: c.name, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Upstream: c.name, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			Upstream: c.name,
			Status:   resp.StatusCode,
			Message:  errorMessage(raw, resp.StatusCode),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{
			Upstream: c.name,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("invalid response from %s", c.name),
			Err:      err,
		}
	}
	return nil
}

// errorMessage extracts the message of an error body. Both the structured
// {"error":{"message":...}} shape and a bare {"error":"..."} are understood.
func errorMessage(raw []byte, status int) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && len(payload.Error) > 0 {
		var text string
		if json.Unmarshal(payload.Error, &text) == nil && text != "" {
			return text
		}
		var structured struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &structured) == nil && structured.Message != "" {
			return structured.Message
		}
	}
	return fmt.Sprintf("Request failed: %d", status)
}
