package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
)

// Metrics is the subset of the metrics recorder the pipeline reports to.
type Metrics interface {
	Request(kind, outcome string)
	RateLimited()
	CacheLookup(hit bool)
	Extraction(contentType, outcome string, elapsed time.Duration)
	Summarization(contentType, outcome string, elapsed time.Duration)
	InFlight(delta float64)
	StoreWriteFailed()
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Classifier ports.Classifier
	Limiter    ports.RateLimiter
	Store      ports.DigestStore
	Extractor  ports.Extractor
	Summarizer ports.Summarizer
	Metrics    Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline turns one chat message into exactly one reply.
type Pipeline struct {
	classifier ports.Classifier
	limiter    ports.RateLimiter
	store      ports.DigestStore
	extractor  ports.Extractor
	summarizer ports.Summarizer
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
	flights    singleflight.Group
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		classifier: deps.Classifier,
		limiter:    deps.Limiter,
		store:      deps.Store,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// outcome is what one execution for a URL produced, shared with any
// concurrent requesters of the same URL.
type outcome struct {
	record domain.DigestRecord
	cached bool
}

// HandleMessage classifies text, applies the rate limit, then serves the
// digest from the store or produces it. Once the gates pass the work is
// detached from ctx and always runs to a terminal state.
func (p *Pipeline) HandleMessage(ctx context.Context, userID, text string) Reply {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID, "user_id", userID)

	target, err := p.classifier.Classify(text)
	if err != nil {
		logger.Debug("no url in message", "error", err)
		p.metrics.Request(string(ReplyUsageHint), "no_url")
		return Reply{Kind: ReplyUsageHint, Message: UsageHint, RequestID: requestID}
	}

	decision := p.limiter.CheckAndRecord(userID)
	if !decision.Allowed {
		logger.Info("rate limited", "retry_after", decision.RetryAfter)
		p.metrics.RateLimited()
		p.metrics.Request(string(ReplyRateLimited), "denied")
		return Reply{Kind: ReplyRateLimited, RetryAfter: decision.RetryAfter, RequestID: requestID}
	}

	logger = logger.With("url", target.Key, "content_type", target.ContentType)
	detached := context.WithoutCancel(ctx)

	leader := false
	v, _, _ := p.flights.Do(target.Key, func() (interface{}, error) {
		leader = true
		return p.execute(detached, target, userID, logger), nil
	})
	out := v.(outcome)
	if !leader {
		logger.Debug("joined in-flight request")
		out.cached = true
	}

	reply := p.reply(out, target)
	reply.RequestID = requestID
	p.metrics.Request(string(reply.Kind), string(out.record.Status))
	logger.Info("request handled", "kind", reply.Kind, "status", out.record.Status, "cached", reply.Cached)
	return reply
}

func (p *Pipeline) execute(ctx context.Context, target domain.Target, userID string, logger *slog.Logger) outcome {
	if record, ok := p.lookup(ctx, target.Key, logger); ok {
		return outcome{record: record, cached: true}
	}

	p.metrics.InFlight(1)
	defer p.metrics.InFlight(-1)

	started := p.now()
	record := domain.DigestRecord{
		SourceURL:   target.Key,
		ContentType: target.ContentType,
		RequestedBy: userID,
		UserComment: target.Comment,
		CreatedAt:   started,
	}

	extracted, err := p.extract(ctx, target, logger)
	if err != nil {
		record.Status = extractionStatus(err)
		p.fail(&record, err)
		record.ProcessingMS = p.now().Sub(started).Milliseconds()
		p.persist(ctx, record, logger)
		return outcome{record: record}
	}
	record.ContentType = extracted.ContentType
	record.ExtractedText = extracted.Text

	digest, err := p.summarize(ctx, extracted, logger)
	if err != nil {
		record.Status = domain.StatusSummarizationFailed
		p.fail(&record, err)
		record.ProcessingMS = p.now().Sub(started).Milliseconds()
		p.persist(ctx, record, logger)
		return outcome{record: record}
	}

	record.Status = domain.StatusSuccess
	record.Title = digest.Title
	record.Summary = digest.Summary
	record.KeyPoints = digest.KeyPoints
	record.Insight = digest.Insight
	record.ProcessingMS = p.now().Sub(started).Milliseconds()
	p.persist(ctx, record, logger)
	return outcome{record: record}
}

// lookup returns a stored record that may answer the request as is. Store
// read errors fall through to processing.
func (p *Pipeline) lookup(ctx context.Context, key string, logger *slog.Logger) (domain.DigestRecord, bool) {
	record, err := p.store.FindByURL(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p.metrics.CacheLookup(false)
		return domain.DigestRecord{}, false
	case err != nil:
		logger.Warn("digest lookup failed", "error", err)
		p.metrics.CacheLookup(false)
		return domain.DigestRecord{}, false
	case !record.Servable():
		logger.Debug("stored record failed transiently, reprocessing", "reason", record.FailureReason)
		p.metrics.CacheLookup(false)
		return domain.DigestRecord{}, false
	}
	p.metrics.CacheLookup(true)
	return record, true
}

func (p *Pipeline) extract(ctx context.Context, target domain.Target, logger *slog.Logger) (domain.ExtractedText, error) {
	started := time.Now()
	extracted, err := p.extractor.Extract(ctx, target)
	if err == nil && extracted.Text == "" {
		err = domain.NewExtractionError(domain.ReasonEmptyContent, fmt.Errorf("no text extracted from %s", target.URL))
	}
	if err != nil {
		p.metrics.Extraction(string(target.ContentType), "error", time.Since(started))
		logger.Warn("extraction failed", "error", err)
		return domain.ExtractedText{}, err
	}
	if extracted.ContentType == "" {
		extracted.ContentType = target.ContentType
	}
	p.metrics.Extraction(string(extracted.ContentType), "success", time.Since(started))
	return extracted, nil
}

func (p *Pipeline) summarize(ctx context.Context, extracted domain.ExtractedText, logger *slog.Logger) (domain.Digest, error) {
	started := time.Now()
	digest, err := p.summarizer.Summarize(ctx, domain.SummaryInput{
		Text:        extracted.Text,
		Title:       extracted.Title,
		ContentType: extracted.ContentType,
	})
	if err != nil {
		p.metrics.Summarization(string(extracted.ContentType), "error", time.Since(started))
		logger.Error("summarization failed", "error", err)
		return domain.Digest{}, err
	}
	p.metrics.Summarization(string(extracted.ContentType), "success", time.Since(started))
	return digest, nil
}

func (p *Pipeline) fail(record *domain.DigestRecord, err error) {
	if reason, ok := domain.ReasonOf(err); ok {
		record.FailureReason = reason
	}
	record.ErrorMessage = err.Error()
}

// persist saves the terminal record. A failed write is logged and the
// reply is still delivered.
func (p *Pipeline) persist(ctx context.Context, record domain.DigestRecord, logger *slog.Logger) {
	if err := p.store.Save(ctx, record); err != nil {
		p.metrics.StoreWriteFailed()
		logger.Error("save digest record", "status", record.Status, "error", err)
	}
}

func (p *Pipeline) reply(out outcome, target domain.Target) Reply {
	record := out.record
	if record.Status == domain.StatusSuccess {
		return Reply{
			Kind:        ReplyDigest,
			Digest:      record.Digest(),
			SourceURL:   record.SourceURL,
			ContentType: record.ContentType,
			Cached:      out.cached,
			Comment:     target.Comment,
		}
	}
	return Reply{
		Kind:          ReplyError,
		Message:       UserMessage(record.FailureReason),
		SourceURL:     record.SourceURL,
		ContentType:   record.ContentType,
		FailureReason: record.FailureReason,
		Cached:        out.cached,
	}
}

func extractionStatus(err error) domain.Status {
	if reason, ok := domain.ReasonOf(err); ok && reason == domain.ReasonUnsupportedFormat {
		return domain.StatusUnsupportedType
	}
	return domain.StatusExtractionFailed
}

type noopMetrics struct{}

func (noopMetrics) Request(string, string) {}
func (noopMetrics) RateLimited() {}
func (noopMetrics) CacheLookup(bool) {}
func (noopMetrics) Extraction(string, string, time.Duration) {}
func (noopMetrics) Summarization(string, string, time.Duration) {}
func (noopMetrics) InFlight(float64) {}
func (noopMetrics) StoreWriteFailed() {}
