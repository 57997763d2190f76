package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/retry"
)

const (
	maxHTMLBytes = 5 << 20
	maxPDFBytes  = 25 << 20

	// hostIdleTTL drops a host's token bucket after it has been idle this
	// long; by then the bucket would have refilled anyway.
	hostIdleTTL = 10 * time.Minute
)

// Document is a fetched response body with its declared media type.
type Document struct {
	URL       *url.URL
	MediaType string
	Body      []byte
}

// Fetcher performs bounded, polite GET requests. Each attempt gets its own
// timeout, requests to one host share a token bucket, and transient failures
// are retried according to the retry config.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	retry     retry.Config
	rps       rate.Limit
	burst     int
	hosts     *gocache.Cache
	logger    *slog.Logger
}

// NewFetcher wires an HTTP client; a nil client gets a default transport.
func NewFetcher(client *http.Client, userAgent string, timeout time.Duration, retryCfg retry.Config, rps float64, burst int, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if userAgent == "" {
		userAgent = "InfoDigestBot/1.0"
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		retry:     retryCfg,
		rps:       limit,
		burst:     burst,
		hosts:     newHostCache(hostIdleTTL),
		logger:    logger,
	}
}

func newHostCache(idle time.Duration) *gocache.Cache {
	return gocache.New(idle, idle)
}

// Get downloads rawURL, refusing bodies larger than maxBytes.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string, maxBytes int64) (*Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("parse url: %w", err))
	}

	cfg := f.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		if f.logger != nil {
			f.logger.Warn("fetch failed, retrying", "url", rawURL, "attempt", attempt, "delay", delay, "error", err)
		}
	}

	var doc *Document
	err = retry.Do(ctx, cfg, func(ctx context.Context) error {
		var attemptErr error
		doc, attemptErr = f.attempt(ctx, parsed, accept, maxBytes)
		return attemptErr
	})
	if err != nil {
		return nil, asExtractionError(err)
	}
	return doc, nil
}

func (f *Fetcher) attempt(ctx context.Context, target *url.URL, accept string, maxBytes int64) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.limiter(target.Hostname()).Wait(ctx); err != nil {
		return nil, classifyTransportError(fmt.Errorf("wait for host slot: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.8,ko;q=0.6")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > maxBytes {
		return nil, domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("document exceeds %d bytes", maxBytes))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		mediaType = http.DetectContentType(body)
		mediaType, _, _ = mime.ParseMediaType(mediaType)
	}

	return &Document{
		URL:       resp.Request.URL,
		MediaType: strings.ToLower(mediaType),
		Body:      body,
	}, nil
}

// limiter returns the token bucket for host. Every use extends its idle
// lifetime.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	if v, ok := f.hosts.Get(host); ok {
		l := v.(*rate.Limiter)
		f.hosts.SetDefault(host, l)
		return l
	}
	l := rate.NewLimiter(f.rps, f.burst)
	if err := f.hosts.Add(host, l, gocache.DefaultExpiration); err != nil {
		if v, ok := f.hosts.Get(host); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("status %s", resp.Status)
	if retry.HTTPStatusRetryable(resp.StatusCode) {
		return domain.NewExtractionError(domain.ReasonNetwork, statusErr)
	}
	if resp.StatusCode == http.StatusUnsupportedMediaType {
		return domain.NewExtractionError(domain.ReasonUnsupportedFormat, statusErr)
	}
	final := domain.NewExtractionError(domain.ReasonNetwork, statusErr)
	final.Final = true
	return final
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(domain.ReasonTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewExtractionError(domain.ReasonTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		final := domain.NewExtractionError(domain.ReasonNetwork, err)
		final.Final = true
		return final
	}
	return domain.NewExtractionError(domain.ReasonNetwork, err)
}

// asExtractionError makes sure callers always see an *ExtractionError in
// the chain, keeping the original cause wrapped.
func asExtractionError(err error) error {
	var extractErr *domain.ExtractionError
	if errors.As(err, &extractErr) {
		return err
	}
	return classifyTransportError(err)
}
