package storage

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
)

// Backend is the durable store behind the hot cache.
type Backend interface {
	ports.DigestStore
	ports.DigestReader
}

// CachedStore keeps recently served records in memory in front of a Backend.
// Entries never outlive the record's own TTL.
type CachedStore struct {
	backend Backend
	hot     *gocache.Cache
	hotTTL  time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var (
	_ ports.DigestStore  = (*CachedStore)(nil)
	_ ports.DigestReader = (*CachedStore)(nil)
)

// NewCachedStore wraps backend. recordTTL mirrors the backend's validity
// window; zero means records never expire.
func NewCachedStore(backend Backend, hotTTL, recordTTL time.Duration, logger *slog.Logger) *CachedStore {
	if hotTTL <= 0 {
		hotTTL = 10 * time.Minute
	}
	return &CachedStore{
		backend: backend,
		hot:     gocache.New(hotTTL, 2*hotTTL),
		hotTTL:  hotTTL,
		ttl:     recordTTL,
		now:     time.Now,
		logger:  logger,
	}
}

// FindByURL serves from memory when possible and falls back to the backend.
func (s *CachedStore) FindByURL(ctx context.Context, sourceURL string) (domain.DigestRecord, error) {
	if v, ok := s.hot.Get(sourceURL); ok {
		s.debug("hot cache hit", "url", sourceURL)
		return v.(domain.DigestRecord), nil
	}

	record, err := s.backend.FindByURL(ctx, sourceURL)
	if err != nil {
		return domain.DigestRecord{}, err
	}
	s.remember(record)
	return record, nil
}

// Save writes through to the backend and refreshes the memory copy.
func (s *CachedStore) Save(ctx context.Context, record domain.DigestRecord) error {
	if err := s.backend.Save(ctx, record); err != nil {
		s.hot.Delete(record.SourceURL)
		return err
	}
	s.remember(record)
	return nil
}

// ListRecent always reads from the backend.
func (s *CachedStore) ListRecent(ctx context.Context, filter domain.Filter) ([]domain.DigestRecord, error) {
	return s.backend.ListRecent(ctx, filter)
}

func (s *CachedStore) remember(record domain.DigestRecord) {
	lifetime := s.hotTTL
	if s.ttl > 0 && !record.CreatedAt.IsZero() {
		remaining := record.CreatedAt.Add(s.ttl).Sub(s.now())
		if remaining <= 0 {
			s.hot.Delete(record.SourceURL)
			return
		}
		if remaining < lifetime {
			lifetime = remaining
		}
	}
	s.hot.Set(record.SourceURL, record, lifetime)
}

func (s *CachedStore) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
