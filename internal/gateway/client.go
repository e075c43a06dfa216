package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty.Client with the gateway's retry policy: 4xx responses
// are terminal, any other non-success response or transport error is retried
type Client struct {
	resty      *resty.Client
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	UserAgent    string
	Debug        bool
	Logger       *slog.Logger
}

// DefaultClientConfig returns sensible defaults for HTTP client
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWait:    time.Second,
		RetryMaxWait: 5 * time.Second,
		UserAgent:    "shikiplay/1.0",
	}
}

// NewClient creates a new HTTP client. Zero values take the defaults except
// MaxRetries, where a negative value disables retrying.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryWait == 0 {
		config.RetryWait = defaults.RetryWait
	}
	if config.RetryMaxWait == 0 {
		config.RetryMaxWait = defaults.RetryMaxWait
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(config.RetryMaxWait).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return shouldRetry(r.StatusCode())
	})

	client := &Client{
		resty:      restyClient,
		maxRetries: config.MaxRetries,
		timeout:    config.Timeout,
		logger:     config.Logger,
	}

	if config.Debug {
		restyClient.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			client.logger.Debug("HTTP Request", "method", r.Method, "url", r.URL, "attempt", r.Attempt)
			return nil
		})
		restyClient.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
			client.logResponse(r)
			return nil
		})
	}

	return client
}

// shouldRetry reports whether a status is worth another attempt
func shouldRetry(status int) bool {
	if status >= 200 && status < 300 {
		return false
	}
	return status < 400 || status >= 500
}

// Do executes one logical request; retries happen inside resty
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body any) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for key, value := range headers {
		req.SetHeader(key, value)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return resp, fmt.Errorf("%s request failed for %s: %w", method, url, err)
	}
	return resp, nil
}

// SetHeader sets a default header for all requests
func (c *Client) SetHeader(key, value string) {
	c.resty.SetHeader(key, value)
}

// GetTimeout returns the configured timeout
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}

// GetMaxRetries returns the configured max retries
func (c *Client) GetMaxRetries() int {
	return c.maxRetries
}

func (c *Client) logResponse(r *resty.Response) {
	bodyStr := r.String()
	if len(bodyStr) > 1000 {
		bodyStr = bodyStr[:1000] + "... (truncated)"
	}
	c.logger.Debug("HTTP Response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"attempt", r.Request.Attempt,
		"time", r.Time(),
		"body", bodyStr,
	)
}
