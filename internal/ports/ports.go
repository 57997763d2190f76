package ports

import (
	"context"
	"time"

	"InfoDigest/internal/domain"
)

// Classifier turns a raw chat message into a fetchable target.
type Classifier interface {
	Classify(text string) (domain.Target, error)
}

// RateLimiter admits or rejects requests per user.
type RateLimiter interface {
	CheckAndRecord(userID string) RateDecision
}

// RateDecision is the outcome of a single rate-limit check.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// Extractor pulls normalized text from a classified URL.
type Extractor interface {
	Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error)
}

// Summarizer asks an LLM provider for a structured digest.
type Summarizer interface {
	Summarize(ctx context.Context, in domain.SummaryInput) (domain.Digest, error)
}

// DigestStore persists digest records keyed by normalized URL.
type DigestStore interface {
	FindByURL(ctx context.Context, sourceURL string) (domain.DigestRecord, error)
	Save(ctx context.Context, record domain.DigestRecord) error
}

// DigestReader is the read-only surface used by the dashboard.
type DigestReader interface {
	FindByURL(ctx context.Context, sourceURL string) (domain.DigestRecord, error)
	ListRecent(ctx context.Context, filter domain.Filter) ([]domain.DigestRecord, error)
}

// Scheduler controls when maintenance jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
