package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
	"InfoDigest/internal/retry"
)

// Options configures the extractor and its strategies.
type Options struct {
	Client           *http.Client
	RequestTimeout   time.Duration
	MaxTextLength    int
	MinTextLength    int
	Workers          int
	Retry            retry.Config
	HostRPS          float64
	HostBurst        int
	UserAgent        string
	CaptionLanguages []string
	// VideoBaseURL overrides the watch page host, used by tests.
	VideoBaseURL string
}

// Extractor implements ports.Extractor by dispatching on content type.
type Extractor struct {
	registry *Registry
	maxChars int
	logger   *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// New wires the fetcher, parse pool and the web, video and pdf strategies.
func New(opts Options, logger *slog.Logger) *Extractor {
	fetcher := NewFetcher(opts.Client, opts.UserAgent, opts.RequestTimeout, opts.Retry, opts.HostRPS, opts.HostBurst, logger)
	pool := NewPool(opts.Workers)
	parser := &documentParser{pool: pool, minChars: opts.MinTextLength}

	registry := NewRegistry()
	registry.Register(newWebStrategy(fetcher, parser))
	registry.Register(newPDFStrategy(fetcher, parser))
	registry.Register(newVideoStrategy(fetcher, pool, opts.VideoBaseURL, opts.CaptionLanguages))

	return NewWithRegistry(registry, opts.MaxTextLength, logger)
}

// NewWithRegistry builds an extractor around custom strategies.
func NewWithRegistry(registry *Registry, maxChars int, logger *slog.Logger) *Extractor {
	return &Extractor{registry: registry, maxChars: maxChars, logger: logger}
}

// Extract returns normalized text capped at the configured length. Every
// failure carries a *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error) {
	strategy, err := e.registry.Resolve(target.ContentType)
	if err != nil {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat, err)
	}

	e.debug("extract", "url", target.URL, "content_type", target.ContentType)
	started := time.Now()

	out, err := strategy.Extract(ctx, target)
	if err != nil {
		var extractErr *domain.ExtractionError
		if !errors.As(err, &extractErr) {
			err = domain.NewExtractionError(domain.ReasonNetwork, err)
		}
		e.debug("extract failed", "url", target.URL, "error", err)
		return domain.ExtractedText{}, fmt.Errorf("extract %s: %w", target.ContentType, err)
	}

	if out.ContentType == "" {
		out.ContentType = target.ContentType
	}
	out.Text = truncateRunes(out.Text, e.maxChars)

	e.debug("extracted", "url", target.URL, "content_type", out.ContentType,
		"chars", runeLen(out.Text), "elapsed", time.Since(started))
	return out, nil
}

func (e *Extractor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
