// Package httpx provides the outbound fetch client shared by all source
// adapters. Feeds and pages live behind an unreliable network boundary, so
// every request carries a timeout and a small bounded retry with quadratic
// backoff. Retries happen at fetch granularity only; callers decide what a
// failed fetch means for their source.
package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures the fetch client.
type Options struct {
	Timeout    time.Duration
	RetryCount int
	RetryBase  time.Duration
	UserAgent  string
}

// Client is a thin wrapper over resty tuned for feed and page fetching.
type Client struct {
	rc *resty.Client
}

// New builds a fetch client. Zero-valued options fall back to sane defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "gridwire/1.0"
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetHeader("User-Agent", opts.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == 429
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			attempt := r.Request.Attempt
			return opts.RetryBase * time.Duration(attempt*attempt), nil
		})

	return &Client{rc: rc}
}

// Get fetches a URL and returns the response body. Non-2xx responses after
// retries are returned as errors.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
