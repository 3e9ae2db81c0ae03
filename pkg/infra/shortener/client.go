package shortener

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodySize    = 2048
)

// Client shortens URLs with a git.io style service: the long URL is posted as the "url"
// form field and the short URL comes back in the Location header or as the response body.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Client
type Option func(*Client)

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a shortener client for endpoint
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		timeout:  defaultTimeout,
		httpClient: &http.Client{
			// A redirect answer carries the short URL, it must not be followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shorten returns the short URL for longURL, or longURL itself on any failure
func (c *Client) Shorten(ctx context.Context, longURL string) string {
	short, err := c.shorten(ctx, longURL)
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to shorten URL, using original",
			"url", longURL,
			"error", err,
		)
		return longURL
	}
	return short
}

func (c *Client) shorten(ctx context.Context, longURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{"url": {longURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create shortener request", goerr.V("endpoint", c.endpoint))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call shortener", goerr.V("endpoint", c.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", goerr.New("unexpected shortener status", goerr.V("status", resp.StatusCode))
	}

	candidate := resp.Header.Get("Location")
	if candidate == "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return "", goerr.Wrap(err, "failed to read shortener response")
		}
		candidate = strings.TrimSpace(string(body))
	}

	if !isHTTPURL(candidate) {
		return "", goerr.New("malformed shortener response", goerr.V("response", candidate))
	}
	return candidate, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Noop keeps every URL unchanged
type Noop struct{}

// Shorten returns longURL
func (Noop) Shorten(_ context.Context, longURL string) string {
	return longURL
}
