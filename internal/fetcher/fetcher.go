// Package fetcher performs bounded single-shot HTTP GETs against business websites.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	defaultTimeout      = 8 * time.Second
	defaultMaxBytes     = 2 << 20
	defaultMaxRedirects = 5
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	errTooManyRedirects = errors.New("too many redirects")
	errRedirectScheme   = errors.New("redirect to unsupported scheme")
)

var acceptedMediaTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"text/plain":            {},
}

// Config bounds a single fetch.
type Config struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	UserAgent    string
}

// Page is the successful outcome of a fetch.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        string
}

// Observer receives the outcome of every fetch.
type Observer interface {
	ObserveFetch(outcome string, elapsed time.Duration)
}

// Fetcher issues GET requests through one shared connection pool.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	logger   *zap.Logger
	observer Observer
}

// Option configures optional dependencies.
type Option func(*Fetcher)

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		if rt != nil {
			f.client.Transport = rt
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver reports fetch outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		f.observer = o
	}
}

// New builds a fetcher, applying defaults to zero config values.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	f := &Fetcher{
		cfg:    cfg,
		logger: zap.NewNop(),
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   cfg.Timeout,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}
	maxRedirects := cfg.MaxRedirects
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return errTooManyRedirects
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return fmt.Errorf("%w %q", errRedirectScheme, req.URL.Scheme)
		}
		return nil
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL once. Failures are returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()
	page, err := f.fetch(ctx, rawURL)
	outcome := "ok"
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			outcome = string(fe.Reason)
		}
		f.logger.Debug("fetch failed", zap.String("url", rawURL), zap.String("reason", outcome), zap.Error(err))
	}
	if f.observer != nil {
		f.observer.ObserveFetch(outcome, time.Since(start))
	}
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, &FetchError{URL: rawURL, Reason: ReasonInvalidURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonInvalidURL, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptableContentType(contentType) {
		return nil, &FetchError{URL: rawURL, Reason: ReasonContentType, StatusCode: resp.StatusCode, Err: fmt.Errorf("content type %q", contentType)}
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, &FetchError{URL: rawURL, Reason: ReasonTooLarge, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}
	if int64(len(raw)) > f.cfg.MaxBytes {
		return nil, &FetchError{URL: rawURL, Reason: ReasonTooLarge, StatusCode: resp.StatusCode}
	}

	finalURL := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        decodeBody(raw, contentType),
	}, nil
}

func classify(ctx context.Context, rawURL string, err error) *FetchError {
	if errors.Is(err, errTooManyRedirects) || errors.Is(err, errRedirectScheme) {
		return &FetchError{URL: rawURL, Reason: ReasonRedirects, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &FetchError{URL: rawURL, Reason: ReasonTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{URL: rawURL, Reason: ReasonTimeout, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return &FetchError{URL: rawURL, Reason: ReasonNoSuchHost, Err: err}
	}
	return &FetchError{URL: rawURL, Reason: ReasonConnection, Err: err}
}

func acceptableContentType(header string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	_, ok := acceptedMediaTypes[strings.ToLower(mediaType)]
	return ok
}

func decodeBody(raw []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
