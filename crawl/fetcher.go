package crawl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent mimics a desktop browser; some sites refuse unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	DefaultTimeout      = 10 * time.Second
	DefaultProbeTimeout = 5 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// PageFetcher retrieves the HTML of a single URL.
// An empty result means the page should be skipped.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) string
}

// Fetcher is the HTTP implementation of PageFetcher.
//
// A page is returned only if the GET succeeds with a 2xx status and a
// follow-up HEAD probe does not report a non-HTML Content-Type. A failed
// probe keeps the page.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	probeTimeout time.Duration
	maxBodyBytes int64
	limiter      *rate.Limiter
	logger       *slog.Logger
}

var _ PageFetcher = (*Fetcher)(nil)

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher) error

// WithHTTPClient sets the underlying HTTP client.
// Per-request timeouts are applied through the request context, so the
// client's own Timeout should normally be zero.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) error {
		if client == nil {
			client = http.DefaultClient
		}
		f.client = client
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) error {
		if ua != "" {
			f.userAgent = ua
		}
		return nil
	}
}

// WithTimeout bounds each GET request. Default is 10s.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		f.timeout = d
		return nil
	}
}

// WithProbeTimeout bounds the HEAD content-type probe. Default is 5s.
func WithProbeTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		f.probeTimeout = d
		return nil
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) error {
		if n > 0 {
			f.maxBodyBytes = n
		}
		return nil
	}
}

// WithRateLimit spaces GET requests at least interval apart.
// Zero disables limiting, which is the default.
func WithRateLimit(interval time.Duration) FetcherOption {
	return func(f *Fetcher) error {
		if interval <= 0 {
			f.limiter = nil
			return nil
		}
		f.limiter = rate.NewLimiter(rate.Every(interval), 1)
		return nil
	}
}

// WithFetcherLogger sets a custom logger.
// Default is slog.Default().
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) (*Fetcher, error) {
	f := &Fetcher{
		client:       &http.Client{},
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "fetcher")
	return f, nil
}

// Fetch returns the UTF-8 decoded body of rawURL, or "" if the page should be skipped.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) string {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return ""
		}
	}

	body, ok := f.get(ctx, rawURL)
	if !ok {
		return ""
	}

	if !f.probeHTML(ctx, rawURL) {
		f.logger.Debug("skipping non-HTML content", "url", rawURL)
		return ""
	}
	return body
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Debug("invalid request", "url", rawURL, "err", err)
		return "", false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("fetch failed", "url", rawURL, "err", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug("unexpected status", "url", rawURL, "status", resp.StatusCode)
		return "", false
	}

	var reader io.Reader = io.LimitReader(resp.Body, f.maxBodyBytes)
	if utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type")); err == nil {
		reader = utf8Reader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		f.logger.Debug("error reading body", "url", rawURL, "err", err)
		return "", false
	}
	return string(data), true
}

// probeHTML issues a HEAD request. It reports false only when the server
// answers with a Content-Type that is not text/html.
func (f *Fetcher) probeHTML(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("content-type probe failed, keeping page", "url", rawURL, "err", err)
		return true
	}
	resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
