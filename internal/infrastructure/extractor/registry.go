package extractor

import (
	"context"
	"fmt"

	"InfoDigest/internal/domain"
)

// Strategy extracts text for one content type (web, video, pdf).
type Strategy interface {
	ContentType() domain.ContentType
	Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error)
}

// Registry keeps a mapping from content types to their strategies.
type Registry struct {
	strategies map[domain.ContentType]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[domain.ContentType]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[domain.ContentType]Strategy{}
	}
	r.strategies[strategy.ContentType()] = strategy
}

// Resolve returns the strategy for a content type or an error if it is absent.
func (r *Registry) Resolve(ct domain.ContentType) (Strategy, error) {
	if strategy, ok := r.strategies[ct]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("no extractor registered for %s", ct)
}
