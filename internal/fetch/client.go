// Package fetch performs outbound HTTP requests with timeouts, throttling and size limits.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (compatible; TrendsImporter/1.0; +https://trends.google.com)"
	defaultMaxBodyBytes = 10 << 20
)

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	Burst             int
	UserAgent         string
	MaxBodyBytes      int64
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client is a small wrapper around http.Client. Non-2xx responses are returned
// as values, only transport failures are errors.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBody   int64
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RequestsPerSecond) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   limiter,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

// Post performs a POST request with the given body.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, headers, body)
}

// Head performs a HEAD request and returns the status code.
func (c *Client) Head(ctx context.Context, url string, headers map[string]string) (int, error) {
	resp, err := c.Do(ctx, http.MethodHead, url, headers, nil)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// Do sends a request and reads at most MaxBodyBytes of the response body.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	log.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("HTTP request completed")

	return &Response{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}
