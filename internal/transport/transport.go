// Package transport provides the shared HTTP client for all platform
// adapters: pooled connections, a user agent, per-host politeness limits and
// retries on transient failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent identifies the crawler to hosting platforms. Operators
// should override it with a contact address.
const DefaultUserAgent = "OKH-Krawler"

// maxBodyBytes bounds response bodies; manifests are small text files and
// anything larger is not one.
const maxBodyBytes = 10 << 20

// Config controls the shared client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Retry     RetryConfig
	// HostRPS / HostBurst bound the request rate per remote host,
	// independent of any platform quota.
	HostRPS   float64
	HostBurst int
}

// Response is the outcome of one HTTP exchange. A non-2xx status is a valid
// response, not an error; callers classify statuses themselves.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a retrying, rate limited HTTP client.
type Client struct {
	http    *http.Client
	cfg     Config
	retry   *retryPolicy
	limiter *hostLimiter
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client. Zero config fields fall back to safe defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newPooledTransport(),
		},
		cfg:     cfg,
		retry:   newRetryPolicy(cfg.Retry),
		limiter: newHostLimiter(cfg.HostRPS, cfg.HostBurst),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Get performs a GET with the client's user agent and the given extra
// headers, retrying transient failures.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, header)
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header) (*Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
		resp, err := c.once(ctx, method, url, header)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%s %s: server responded %d", method, url, resp.StatusCode)
		}
		if !c.retry.shouldRetry(err, attempt) {
			if err == nil {
				// retries exhausted on a retryable status: hand the
				// response back for the caller to classify
				return resp, nil
			}
			return nil, lastErr
		}
		wait := c.retry.backoff(attempt)
		c.logger.Debug("retrying request",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(lastErr))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *Client) once(ctx context.Context, method, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// retryableStatus lists the statuses worth another attempt. 403 is excluded:
// platforms use it for secondary rate limits that need a longer, adapter
// managed cooldown.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryableError reports whether a transport level error is worth retrying.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// url.Error wraps connection resets and similar transient failures
	return true
}

func newPooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
