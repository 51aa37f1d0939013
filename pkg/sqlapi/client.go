package sqlapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrorResponse is the body returned with 4xx and 5xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client calls a remote SQL execution proxy. It never retries on its own:
// SQL batches are not idempotent, so retry decisions belong to the caller.
// A Client is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// ClientOption configures a Client.
type ClientOption func(*resty.Client)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) {
		c.SetTimeout(d)
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *resty.Client) {
		c.SetHeader(key, value)
	}
}

// NewClient creates a client for the proxy at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Minute).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{http: rc}
}

// ExecuteCommand runs a batch of non-query statements.
func (c *Client) ExecuteCommand(ctx context.Context, req Request) (*Result, error) {
	return c.execute(ctx, CommandPath, req)
}

// ExecuteQuery runs a batch of queries and returns their result sets.
func (c *Client) ExecuteQuery(ctx context.Context, req Request) (*Result, error) {
	return c.execute(ctx, QueryPath, req)
}

func (c *Client) execute(ctx context.Context, path string, req Request) (*Result, error) {
	var result Result
	var apiErr ErrorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call sql proxy %s: %w", path, err)
	}

	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("sql proxy returned %d: %s", resp.StatusCode(), msg)
	}

	return &result, nil
}
