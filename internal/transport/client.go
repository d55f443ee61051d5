// Package transport provides the retrying HTTP client shared by the
// catalog scanner, chapter fetcher, archive sampler, and file downloads.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/pkg/logging"
)

// Retries fire only for these status codes. Anything else, 4xx included,
// is a final answer from the server and goes back to the caller.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

const maxBackoff = 30 * time.Second

// Options configures a Client.
type Options struct {
	MaxRetries      int
	Backoff         time.Duration
	PoolConnections int
	PoolMaxPerHost  int
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	// RequestsPerSecond throttles outbound calls across all workers.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// DefaultOptions mirrors the built-in transport configuration.
func DefaultOptions() Options {
	return Options{
		MaxRetries:      17,
		Backoff:         200 * time.Millisecond,
		PoolConnections: 20,
		PoolMaxPerHost:  50,
		MetadataTimeout: 10 * time.Second,
		DownloadTimeout: 10 * time.Minute,
	}
}

// OptionsFromConfig converts the TOML transport section.
func OptionsFromConfig(tc config.Transport) Options {
	return Options{
		MaxRetries:        tc.MaxRetries,
		Backoff:           time.Duration(tc.BackoffSeconds * float64(time.Second)),
		PoolConnections:   tc.PoolConnections,
		PoolMaxPerHost:    tc.PoolMaxPerHost,
		MetadataTimeout:   time.Duration(tc.MetadataTimeout) * time.Second,
		DownloadTimeout:   time.Duration(tc.DownloadTimeout) * time.Second,
		RequestsPerSecond: tc.RequestsPerSecond,
	}
}

// Client is an HTTP client with bounded retry, connection pooling, and an
// optional outbound rate limit.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New builds a Client from options.
func New(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConns:        opts.PoolConnections,
		MaxIdleConnsPerHost: opts.PoolMaxPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		// Timeouts are applied per request via context so that streamed
		// downloads can outlive metadata calls.
		http:    &http.Client{Transport: transport},
		opts:    opts,
		limiter: limiter,
		logger:  logging.GetLogger("transport"),
	}
}

// Get fetches a metadata page under the short timeout. The caller owns the
// response body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.do(ctx, url, headers, c.opts.MetadataTimeout)
}

// GetStream fetches a large body under the long timeout. The caller owns
// the response body and must close it.
func (c *Client) GetStream(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.do(ctx, url, headers, c.opts.DownloadTimeout)
}

func (c *Client) do(ctx context.Context, url string, headers http.Header, timeout time.Duration) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, url, headers, timeout)
		if err != nil {
			// Network-level failures are retryable up to the budget.
			lastErr = err
			c.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("request failed")
			continue
		}

		if retryStatuses[resp.StatusCode] {
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			c.logger.Debug().Int("status", resp.StatusCode).Str("url", url).Int("attempt", attempt).Msg("retryable status")
			drain(resp)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("giving up on %s after %d attempts: %w", url, c.opts.MaxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, headers http.Header, timeout time.Duration) (*http.Response, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	if cancel != nil {
		// Cancelling would cut the body short; tie it to body close instead.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.Backoff * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
