package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"InfoDigest/internal/config"
	"InfoDigest/internal/domain"
	"InfoDigest/internal/retry"
)

// CompletionRequest is a single-turn prompt sent to a provider.
type CompletionRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Provider turns a prompt into raw model output. Failures are reported as
// *domain.SummarizationError so callers can decide on retries.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NewProvider selects the provider named in cfg.
func NewProvider(cfg config.AIConfig, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{}
	}
	active := cfg.Active()
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(active, client), nil
	case config.ProviderQwen:
		return NewQwenProvider(active, client), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// classifyStatus maps an HTTP status from a provider onto a failure reason.
func classifyStatus(code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewSummarizationError(domain.ReasonAuthentication, err)
	case retry.HTTPStatusRetryable(code):
		return domain.NewSummarizationError(domain.ReasonTransientProvider, err)
	case code >= 400:
		return domain.NewSummarizationError(domain.ReasonRejected, err)
	default:
		return domain.NewSummarizationError(domain.ReasonTransientProvider, err)
	}
}

// classifyTransport handles failures that never produced a response.
// Network errors and deadlines are worth another attempt.
func classifyTransport(err error) error {
	var sumErr *domain.SummarizationError
	if errors.As(err, &sumErr) {
		return err
	}
	return domain.NewSummarizationError(domain.ReasonTransientProvider, err)
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
