// Package generation calls the external hook/body/image generation
// webhooks. Calls are bounded by a configurable timeout and are never
// retried automatically; retrying is the user's decision.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HookCount is the number of hook candidates the service returns per
// request. A response with fewer usable hooks is rejected whole.
const HookCount = 4

// Request carries the draft parameters the service generates from.
type Request struct {
	Topic       string `json:"topic"`
	ContentType string `json:"contentType"`
	Tone        string `json:"tone"`
	Length      string `json:"length"`
	IncludeCTA  bool   `json:"includeCta"`
}

// Result is a successful generation outcome.
type Result struct {
	Hooks []string
	Body  string
}

// ImageRequest asks the image endpoint for a generated image.
type ImageRequest struct {
	Topic    string `json:"topic"`
	Style    string `json:"style"`
	Template string `json:"template"`
}

// Client is the outbound generation dependency. The workflow
// coordinator takes this interface so tests can substitute a fake.
// HTTPClient carries additional hook-only and body-only entry points
// beyond this set.
type Client interface {
	GenerateHooksAndBody(ctx context.Context, req Request) (*Result, error)
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// HTTPClient implements Client against the webhook endpoints.
type HTTPClient struct {
	hookURL  string
	imageURL string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.SugaredLogger
}

func NewHTTPClient(hookURL, imageURL string, timeout time.Duration, logger *zap.SugaredLogger) *HTTPClient {
	return &HTTPClient{
		hookURL:  hookURL,
		imageURL: imageURL,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// hookResponse mirrors the webhook payload: the hooks arrive as four
// numbered fields, not an array.
type hookResponse struct {
	Output struct {
		Hook1 string `json:"hook1"`
		Hook2 string `json:"hook2"`
		Hook3 string `json:"hook3"`
		Hook4 string `json:"hook4"`
		Body  string `json:"body"`
	} `json:"output"`
}

func (r *hookResponse) hooks() ([]string, error) {
	hooks := []string{r.Output.Hook1, r.Output.Hook2, r.Output.Hook3, r.Output.Hook4}
	for i, h := range hooks {
		if h == "" {
			return nil, &ServiceError{Reason: fmt.Sprintf("missing hook%d in response", i+1)}
		}
	}
	return hooks, nil
}

func (c *HTTPClient) GenerateHooksAndBody(ctx context.Context, req Request) (*Result, error) {
	var resp hookResponse
	if err := c.post(ctx, c.hookURL, req, &resp); err != nil {
		return nil, err
	}
	hooks, err := resp.hooks()
	if err != nil {
		return nil, err
	}
	if resp.Output.Body == "" {
		return nil, &ServiceError{Reason: "missing body in response"}
	}
	return &Result{Hooks: hooks, Body: resp.Output.Body}, nil
}

func (c *HTTPClient) RegenerateHooks(ctx context.Context, req Request) ([]string, error) {
	var resp hookResponse
	if err := c.post(ctx, c.hookURL, req, &resp); err != nil {
		return nil, err
	}
	return resp.hooks()
}

func (c *HTTPClient) RegenerateBody(ctx context.Context, req Request) (string, error) {
	var resp hookResponse
	if err := c.post(ctx, c.hookURL, req, &resp); err != nil {
		return "", err
	}
	if resp.Output.Body == "" {
		return "", &ServiceError{Reason: "missing body in response"}
	}
	return resp.Output.Body, nil
}

func (c *HTTPClient) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	if c.imageURL == "" {
		return "", &ServiceError{Reason: "image generation endpoint not configured"}
	}
	var resp struct {
		Output struct {
			ImageURL string `json:"imageUrl"`
		} `json:"output"`
	}
	if err := c.post(ctx, c.imageURL, req, &resp); err != nil {
		return "", err
	}
	if resp.Output.ImageURL == "" {
		return "", &ServiceError{Reason: "missing imageUrl in response"}
	}
	return resp.Output.ImageURL, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ServiceError{Reason: fmt.Sprintf("encode request: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warnw("Generation request timed out", "url", url, "timeout", c.timeout)
			return &TimeoutError{Timeout: c.timeout}
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NetworkError{Err: err}
	}

	c.logger.Debugw("Generation request completed",
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return &ServiceError{Status: resp.StatusCode, Reason: string(truncate(raw, 200))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &ServiceError{Reason: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
