package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InfoDigest/internal/domain"
)

type countingBackend struct {
	mu      sync.Mutex
	records map[string]domain.DigestRecord
	finds   int
	saveErr error
}

func newCountingBackend() *countingBackend {
	return &countingBackend{records: map[string]domain.DigestRecord{}}
}

func (b *countingBackend) FindByURL(_ context.Context, url string) (domain.DigestRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finds++
	rec, ok := b.records[url]
	if !ok {
		return domain.DigestRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (b *countingBackend) Save(_ context.Context, rec domain.DigestRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.records[rec.SourceURL] = rec
	return nil
}

func (b *countingBackend) ListRecent(context.Context, domain.Filter) ([]domain.DigestRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.DigestRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec)
	}
	return out, nil
}

func (b *countingBackend) findCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finds
}

func TestCachedStoreServesFromMemory(t *testing.T) {
	t.Parallel()

	backend := newCountingBackend()
	store := NewCachedStore(backend, time.Minute, 0, nil)
	ctx := context.Background()

	rec := successRecord("https://example.com/a", time.Now())
	require.NoError(t, store.Save(ctx, rec))

	for i := 0; i < 3; i++ {
		got, err := store.FindByURL(ctx, rec.SourceURL)
		require.NoError(t, err)
		assert.Equal(t, rec.Title, got.Title)
	}
	assert.Equal(t, 0, backend.findCount())

	list, err := store.ListRecent(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCachedStoreReadsThrough(t *testing.T) {
	t.Parallel()

	backend := newCountingBackend()
	rec := successRecord("https://example.com/a", time.Now())
	backend.records[rec.SourceURL] = rec
	store := NewCachedStore(backend, time.Minute, 0, nil)
	ctx := context.Background()

	_, err := store.FindByURL(ctx, rec.SourceURL)
	require.NoError(t, err)
	_, err = store.FindByURL(ctx, rec.SourceURL)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.findCount())

	_, err = store.FindByURL(ctx, "https://example.com/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCachedStoreRespectsRecordTTL(t *testing.T) {
	t.Parallel()

	backend := newCountingBackend()
	store := NewCachedStore(backend, time.Hour, 24*time.Hour, nil)
	ctx := context.Background()

	expired := successRecord("https://example.com/old", time.Now().Add(-25*time.Hour))
	require.NoError(t, store.Save(ctx, expired))

	_, _ = store.FindByURL(ctx, expired.SourceURL)
	assert.Equal(t, 1, backend.findCount(), "expired record must not be kept in memory")
}

func TestCachedStoreSaveFailureEvicts(t *testing.T) {
	t.Parallel()

	backend := newCountingBackend()
	store := NewCachedStore(backend, time.Minute, 0, nil)
	ctx := context.Background()

	rec := successRecord("https://example.com/a", time.Now())
	require.NoError(t, store.Save(ctx, rec))

	backend.saveErr = errors.New("disk full")
	updated := rec
	updated.Title = "New"
	require.Error(t, store.Save(ctx, updated))

	got, err := store.FindByURL(ctx, rec.SourceURL)
	require.NoError(t, err)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, 1, backend.findCount())
}
