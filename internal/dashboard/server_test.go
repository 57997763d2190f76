package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InfoDigest/internal/classifier"
	"InfoDigest/internal/domain"
)

type stubReader struct {
	records    []domain.DigestRecord
	lastFilter domain.Filter
	err        error
}

func (s *stubReader) FindByURL(_ context.Context, url string) (domain.DigestRecord, error) {
	if s.err != nil {
		return domain.DigestRecord{}, s.err
	}
	for _, rec := range s.records {
		if rec.SourceURL == url {
			return rec, nil
		}
	}
	return domain.DigestRecord{}, domain.ErrNotFound
}

func (s *stubReader) ListRecent(_ context.Context, filter domain.Filter) ([]domain.DigestRecord, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func fixtureRecords() []domain.DigestRecord {
	created := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return []domain.DigestRecord{
		{SourceURL: "https://example.com/a", ContentType: domain.ContentWeb, Status: domain.StatusSuccess,
			Title: "A", Summary: "S.", KeyPoints: []string{"1", "2", "3"}, ExtractedText: "long body", ProcessingMS: 800, CreatedAt: created},
		{SourceURL: "https://www.youtube.com/watch?v=abcDEF12345", ContentType: domain.ContentVideo,
			Status: domain.StatusExtractionFailed, FailureReason: domain.ReasonNoCaptions, CreatedAt: created},
	}
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListDigests(t *testing.T) {
	t.Parallel()

	reader := &stubReader{records: fixtureRecords()}
	s := New(reader, classifier.New(nil), nil, nil)

	rec := serve(t, s, "/api/digests?content_type=web&status=success&since=2026-04-01T00:00:00Z&limit=10&offset=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.DigestRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ExtractedText)

	assert.Equal(t, domain.ContentWeb, reader.lastFilter.ContentType)
	assert.Equal(t, domain.StatusSuccess, reader.lastFilter.Status)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), reader.lastFilter.Since)
	assert.Equal(t, 10, reader.lastFilter.Limit)
	assert.Equal(t, 5, reader.lastFilter.Offset)
}

func TestListDigestsRejectsBadFilters(t *testing.T) {
	t.Parallel()

	s := New(&stubReader{}, classifier.New(nil), nil, nil)
	for _, target := range []string{
		"/api/digests?content_type=audio",
		"/api/digests?status=done",
		"/api/digests?since=yesterday",
		"/api/digests?limit=-1",
	} {
		assert.Equal(t, http.StatusBadRequest, serve(t, s, target).Code, target)
	}
}

func TestLookupNormalizesURL(t *testing.T) {
	t.Parallel()

	s := New(&stubReader{records: fixtureRecords()}, classifier.New(nil), nil, nil)

	rec := serve(t, s, "/api/digests/lookup?url="+"https%3A%2F%2Fyoutu.be%2FabcDEF12345")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.DigestRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.ReasonNoCaptions, got.FailureReason)

	assert.Equal(t, http.StatusNotFound, serve(t, s, "/api/digests/lookup?url=https%3A%2F%2Fexample.com%2Fnone").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/api/digests/lookup").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/api/digests/lookup?url=notaurl").Code)
}

func TestStats(t *testing.T) {
	t.Parallel()

	reader := &stubReader{records: fixtureRecords()}
	s := New(reader, classifier.New(nil), nil, nil)

	rec := serve(t, s, "/api/stats?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Errors)
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.01)
	assert.Equal(t, 1, stats.ByType[domain.ContentVideo])
	assert.Equal(t, int64(800), stats.AvgProcessingMS)
	assert.Equal(t, statsSampleLimit, reader.lastFilter.Limit)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("infodigest_up 1\n"))
	})
	s := New(&stubReader{}, classifier.New(nil), metrics, nil)

	assert.Equal(t, http.StatusOK, serve(t, s, "/healthz").Code)
	rec := serve(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "infodigest_up 1")
}

func TestStorageErrors(t *testing.T) {
	t.Parallel()

	s := New(&stubReader{err: errors.New("disk gone")}, classifier.New(nil), nil, nil)
	rec := serve(t, s, "/api/digests")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}
