package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (compatible; SEOMetaChecker/1.0; +https://seo-checker.app)"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 5 * 1024 * 1024
	DefaultMaxRedirects = 10

	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var (
	ErrTimeout           = errors.New("request timed out: the website took too long to respond")
	ErrTooLarge          = errors.New("page content is too large to analyze")
	ErrNotHTML           = errors.New("URL does not return HTML content")
	ErrUnsupportedScheme = errors.New("URL must be http or https")
	ErrBlockedHost       = errors.New("URL points to a private or reserved address")
)

// StatusError is returned when the page answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "failed to fetch URL: " + e.Status
}

// Config controls how pages are fetched
type Config struct {
	Timeout           time.Duration
	MaxBodyBytes      int64
	MaxRedirects      int
	UserAgent         string
	AllowPrivateHosts bool
}

// DefaultConfig returns the production fetch settings
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    DefaultUserAgent,
	}
}

// Page is a fetched HTML document
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	HTML        string
	FetchedAt   time.Time
}

// Fetcher performs one GET per analyzed URL
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a Fetcher. Zero fields in cfg take their defaults.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if !cfg.AllowPrivateHosts {
		dialer.Control = denyPrivateDial
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	f := &Fetcher{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "fetcher")),
	}
	f.client = &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     otelhttp.NewTransport(transport),
		CheckRedirect: f.checkRedirect,
	}
	return f
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	return nil
}

// Fetch downloads rawURL and returns its HTML decoded to UTF-8. It fails
// before returning any HTML when the page is unreachable, slow, too large
// or not HTML.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	if !f.cfg.AllowPrivateHosts {
		if err := checkHost(u.Hostname()); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	f.logger.Debug("Fetching page", zap.String("url", rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		if errors.Is(err, ErrBlockedHost) || errors.Is(err, ErrUnsupportedScheme) {
			return nil, unwrapURLError(err)
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if resp.ContentLength > f.cfg.MaxBodyBytes {
		return nil, ErrTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, ErrNotHTML
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, ErrTooLarge
	}

	text := decodeBody(body, contentType)
	if int64(len(text)) > f.cfg.MaxBodyBytes {
		return nil, ErrTooLarge
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        text,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// unwrapURLError strips the *url.Error wrapper so callers see our own message
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return opErr.Err
		}
		return urlErr.Err
	}
	return err
}

// decodeBody converts the body to UTF-8 using the Content-Type charset, a
// BOM or a <meta> charset. Bodies that are already valid UTF-8 are kept
// as is unless a charset was declared in the header.
func decodeBody(body []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return string(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
