package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBytes = 4 << 20

// httpClient wraps http.Client with JSON request/response helpers for the
// vision endpoint.
type httpClient struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func newHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *httpClient {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &httpClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// response is a raw HTTP exchange result.
type response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// postJSON marshals body, posts it to path and reads the whole reply.
func (c *httpClient) postJSON(ctx context.Context, path string, body interface{}, headers map[string]string) (*response, error) {
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	latency := time.Since(start)

	c.logger.Debug("classifier request completed",
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", latency.Milliseconds(),
	)

	return &response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Latency:    latency,
	}, nil
}
