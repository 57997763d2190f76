package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
	"InfoDigest/internal/retry"
)

const promptTemplate = `You are an expert content summarizer. Analyze the following %[1]s content and produce a structured digest.

Respond with a single JSON object and nothing else, using exactly these fields:
{"title": string, "summary": string, "key_points": [string], "insight": string}

Rules:
1. "title" is concise and descriptive.%[2]s
2. "summary" is exactly ONE sentence with the most important takeaway.
3. "key_points" contains exactly %[3]d items, most important first, each one or two sentences.
4. "insight" states the practical implication for the reader.
5. Keep the whole digest under 300 words and use clear, professional language.

CONTENT TO SUMMARIZE:
%[4]s`

// Options tunes the summarizer.
type Options struct {
	Temperature float32
	// Timeout bounds a single provider call.
	Timeout   time.Duration
	KeyPoints int
	Retry     retry.Config
}

// Summarizer implements ports.Summarizer on top of a Provider.
type Summarizer struct {
	provider Provider
	opts     Options
	logger   *slog.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer wires a provider with prompt, retry and validation settings.
func NewSummarizer(provider Provider, opts Options, logger *slog.Logger) *Summarizer {
	if opts.KeyPoints <= 0 {
		opts.KeyPoints = 3
	}
	opts.Timeout = defaultTimeout(opts.Timeout)
	return &Summarizer{provider: provider, opts: opts, logger: logger}
}

// Summarize asks the provider for a digest. Transient provider failures are
// retried; malformed output and rejected requests are returned at once.
func (s *Summarizer) Summarize(ctx context.Context, in domain.SummaryInput) (domain.Digest, error) {
	prompt := buildPrompt(in, s.opts.KeyPoints)

	cfg := s.opts.Retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		if s.logger != nil {
			s.logger.Warn("summarization failed, retrying",
				"provider", s.provider.Name(), "attempt", attempt, "delay", delay, "error", err)
		}
	}

	var digest domain.Digest
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		raw, err := s.complete(ctx, prompt)
		if err != nil {
			return err
		}
		digest, err = parseDigest(raw, s.opts.KeyPoints)
		return err
	})
	if err != nil {
		var sumErr *domain.SummarizationError
		if !errors.As(err, &sumErr) {
			err = domain.NewSummarizationError(domain.ReasonTransientProvider, err)
		}
		return domain.Digest{}, fmt.Errorf("summarize with %s: %w", s.provider.Name(), err)
	}

	s.debug("summarized", "provider", s.provider.Name(), "title", digest.Title)
	return digest, nil
}

// Ping sends a tiny prompt so bad credentials surface at startup.
func (s *Summarizer) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	_, err := s.provider.Complete(ctx, CompletionRequest{Prompt: "Reply with the single word: pong", MaxTokens: 5})
	if err != nil {
		return fmt.Errorf("ping %s: %w", s.provider.Name(), classifyTransport(err))
	}
	return nil
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	started := time.Now()
	raw, err := s.provider.Complete(ctx, CompletionRequest{Prompt: prompt, Temperature: s.opts.Temperature})
	if err != nil {
		return "", classifyTransport(err)
	}
	s.debug("completion received", "provider", s.provider.Name(), "chars", len(raw), "elapsed", time.Since(started))
	return raw, nil
}

func (s *Summarizer) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func buildPrompt(in domain.SummaryInput, keyPoints int) string {
	titleHint := ""
	if t := strings.TrimSpace(in.Title); t != "" {
		titleHint = fmt.Sprintf(" The source calls itself %q.", t)
	}
	label := strings.ToLower(in.ContentType.Label())
	return fmt.Sprintf(promptTemplate, label, titleHint, keyPoints, in.Text)
}

type digestPayload struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Insight   string   `json:"insight"`
}

// parseDigest decodes model output, tolerating code fences and chatter
// around the JSON object.
func parseDigest(raw string, keyPoints int) (domain.Digest, error) {
	body := stripFences(raw)
	if start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var payload digestPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.Digest{}, domain.NewSummarizationError(domain.ReasonMalformedResponse, fmt.Errorf("decode digest: %w", err))
	}

	digest := domain.Digest{
		Title:   strings.TrimSpace(payload.Title),
		Summary: strings.TrimSpace(payload.Summary),
		Insight: strings.TrimSpace(payload.Insight),
	}
	for _, point := range payload.KeyPoints {
		if point = strings.TrimSpace(point); point != "" {
			digest.KeyPoints = append(digest.KeyPoints, point)
		}
	}

	switch {
	case digest.Title == "":
		return domain.Digest{}, domain.NewSummarizationError(domain.ReasonMalformedResponse, errors.New("digest has no title"))
	case digest.Summary == "":
		return domain.Digest{}, domain.NewSummarizationError(domain.ReasonMalformedResponse, errors.New("digest has no summary"))
	case len(digest.KeyPoints) != keyPoints:
		return domain.Digest{}, domain.NewSummarizationError(domain.ReasonMalformedResponse,
			fmt.Errorf("digest has %d key points, want %d", len(digest.KeyPoints), keyPoints))
	}
	return digest, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
