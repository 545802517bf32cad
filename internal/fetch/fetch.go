// Package fetch wraps the HTTP calls the harvester makes against upstream
// servers: header probes, catalog listings, and bulk payload downloads.
// Statistical agencies rate-limit aggressively, so every request goes
// through a shared limiter and datasets are fetched strictly one at a time.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
	"golang.org/x/time/rate"

	"github.com/datakeep/harvester/internal/catalog"
)

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient returns a Client whose requests time out after timeout and are
// spaced at least minInterval apart. A zero minInterval disables pacing.
func NewClient(timeout, minInterval time.Duration) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		userAgent:  "datakeep-harvester/0.1 (+https://github.com/datakeep/harvester)",
	}
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req)
}

// Head issues a metadata-only probe and returns the response headers.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return nil, &catalog.TransferError{Op: "probe", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &catalog.TransferError{Op: "probe", URL: url, Err: fmt.Errorf("status %s", resp.Status)}
	}
	return resp.Header, nil
}

// Download streams the payload at url into w.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return &catalog.TransferError{Op: "download", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &catalog.TransferError{Op: "download", URL: url, Err: fmt.Errorf("status %s", resp.Status)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &catalog.TransferError{Op: "download", URL: url, Err: err}
	}
	return nil
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return &catalog.TransferError{Op: "get", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &catalog.TransferError{Op: "get", URL: url, Err: fmt.Errorf("status %s", resp.Status)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &catalog.TransferError{Op: "get", URL: url, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// LastModified extracts the server's last-modification time from response
// headers. Well-behaved servers send RFC 1123; the free-text fallback covers
// the agencies that don't.
func LastModified(header http.Header) (time.Time, error) {
	value := header.Get("Last-Modified")
	if value == "" {
		return time.Time{}, &catalog.ParseError{Field: "Last-Modified", Value: value, Err: fmt.Errorf("header missing")}
	}
	if t, err := http.ParseTime(value); err == nil {
		return t, nil
	}
	parsed, err := dateparser.Parse(nil, value)
	if err != nil {
		return time.Time{}, &catalog.ParseError{Field: "Last-Modified", Value: value, Err: err}
	}
	return parsed.Time, nil
}
