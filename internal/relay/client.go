package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound       = errors.New("relay: resource not found")
	ErrForbidden      = errors.New("relay: access forbidden")
	ErrUnauthorized   = errors.New("relay: unauthorized")
	ErrServerError    = errors.New("relay: server error")
	ErrTooLarge       = errors.New("relay: response exceeds size limit")
	ErrHostNotAllowed = errors.New("relay: host not allowed")
	ErrInsecureURL    = errors.New("relay: non-https url refused")
)

// Options configures the relay client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 10s
	RetryMaxBackoff time.Duration

	// MaxBodySize caps the size of any fetched response body.
	// Default: 64MB
	MaxBodySize int64

	// AllowedHosts restricts which hosts may be fetched. Entries match
	// exactly, or match any subdomain when they start with a dot
	// (".example.net"). Empty means any host.
	AllowedHosts []string

	// AllowHTTP permits plain http URLs. Off by default; used by tests
	// and private mirrors.
	AllowHTTP bool

	// Referer is sent with every request when set. Image hosts commonly
	// refuse requests without one.
	Referer string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        500 * time.Millisecond,
		RetryMaxBackoff:     10 * time.Second,
		MaxBodySize:         64 * 1024 * 1024,
	}
}

// Result is a fetched response body with its declared content type.
type Result struct {
	Body        []byte
	ContentType string
}

// Client fetches whole objects from approved upstream hosts.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new relay client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = 100
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.RetryMaxBackoff == 0 {
		opts.RetryMaxBackoff = 10 * time.Second
	}
	if opts.MaxBodySize == 0 {
		opts.MaxBodySize = 64 * 1024 * 1024
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Fetch retrieves the object at rawURL in full. Server errors and network
// failures are retried with backoff; client errors map to sentinel errors
// immediately.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := c.checkURL(rawURL); err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if c.opts.Referer != "" {
			req.Header.Set("Referer", c.opts.Referer)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodySize+1))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if int64(len(body)) > c.opts.MaxBodySize {
			return nil, fmt.Errorf("%w: body over %d bytes", ErrTooLarge, c.opts.MaxBodySize)
		}

		return &Result{
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// checkURL enforces the scheme and host policy.
func (c *Client) checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !c.opts.AllowHTTP {
			return fmt.Errorf("%w: %s", ErrInsecureURL, rawURL)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInsecureURL, rawURL)
	}

	if len(c.opts.AllowedHosts) == 0 {
		return nil
	}
	host := u.Hostname()
	for _, allowed := range c.opts.AllowedHosts {
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) || host == allowed[1:] {
				return nil
			}
			continue
		}
		if host == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
