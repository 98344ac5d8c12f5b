package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hungpham2401/pdf.js/pkg/netutil"
)

// ErrRangeNotSupported is returned when the server refuses or ignores
// a byte-range request.
var ErrRangeNotSupported = errors.New("transport: server does not support range requests")

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 32
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// ExtraHeaders are set on every outgoing request. Build them with
	// netutil.CreateHeaders so names are normalized and values
	// stringified.
	ExtraHeaders map[string]string

	// Logger for retry diagnostics. Disabled when nil.
	Logger *zerolog.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 32,
		Timeout:             30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// ResponseInfo describes a probed resource. It retains the response
// headers and implements netutil.HeaderSource, so it can be handed
// directly to the range-capability and filename decisions.
type ResponseInfo struct {
	Status       int
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time

	header http.Header
}

// GetResponseHeader returns the named response header, or "" when
// absent.
func (i *ResponseInfo) GetResponseHeader(name string) string {
	return i.header.Get(name)
}

// RangeResponse represents a response to a byte-range request.
type RangeResponse struct {
	Body          io.ReadCloser
	ContentLength int64
	ETag          string
}

// Client is an HTTP client for fetching PDF documents.
type Client struct {
	client *http.Client
	opts   Options
	log    zerolog.Logger
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // encoded bodies cannot be range-addressed
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
		log:  log,
	}
}

// Head probes the resource and returns its metadata along with the
// response headers.
func (c *Client) Head(ctx context.Context, url string) (*ResponseInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt, lastErr); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, http.MethodHead, url)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = netutil.CreateResponseStatusError(resp.StatusCode, url)
			continue
		}

		if !netutil.ValidateResponseStatus(resp.StatusCode) {
			return nil, netutil.CreateResponseStatusError(resp.StatusCode, url)
		}

		info := &ResponseInfo{
			Status:      resp.StatusCode,
			Size:        resp.ContentLength,
			ETag:        cleanETag(resp.Header.Get("ETag")),
			ContentType: resp.Header.Get("Content-Type"),
			header:      resp.Header,
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				info.LastModified = t
			}
		}
		return info, nil
	}

	return nil, fmt.Errorf("head request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// GetRange fetches a byte range of the resource. startByte and endByte
// are inclusive, like the HTTP Range header.
func (c *Client) GetRange(ctx context.Context, url string, startByte, endByte int64) (*RangeResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt, lastErr); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", startByte, endByte))

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = netutil.CreateResponseStatusError(resp.StatusCode, url)
			continue
		}

		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			resp.Body.Close()
			return nil, ErrRangeNotSupported
		}

		if !netutil.ValidateResponseStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, netutil.CreateResponseStatusError(resp.StatusCode, url)
		}

		// A 200 means the server ignored the Range header, unless it
		// carries a Content-Range anyway (some servers do).
		if resp.StatusCode == http.StatusOK && resp.Header.Get("Content-Range") == "" {
			resp.Body.Close()
			return nil, ErrRangeNotSupported
		}

		return &RangeResponse{
			Body:          resp.Body,
			ContentLength: resp.ContentLength,
			ETag:          cleanETag(resp.Header.Get("ETag")),
		}, nil
	}

	return nil, fmt.Errorf("range request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// Get fetches the whole resource.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt, lastErr); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = netutil.CreateResponseStatusError(resp.StatusCode, url)
			continue
		}

		if !netutil.ValidateResponseStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, netutil.CreateResponseStatusError(resp.StatusCode, url)
		}

		return resp.Body, nil
	}

	return nil, fmt.Errorf("get request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, value := range c.opts.ExtraHeaders {
		req.Header.Set(name, value)
	}
	return req, nil
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int, lastErr error) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	c.log.Debug().
		Err(lastErr).
		Int("attempt", attempt).
		Dur("backoff", jitter).
		Msg("retrying request")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// cleanETag removes the weak prefix and quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}
