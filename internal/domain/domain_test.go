package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	t.Parallel()

	records := []DigestRecord{
		{ContentType: ContentWeb, Status: StatusSuccess, ProcessingMS: 100},
		{ContentType: ContentWeb, Status: StatusSuccess, ProcessingMS: 300},
		{ContentType: ContentVideo, Status: StatusExtractionFailed},
	}

	stats := ComputeStats(records)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[ContentWeb])
	assert.Equal(t, 1, stats.ByType[ContentVideo])
	assert.Equal(t, 1, stats.ByStatus[StatusExtractionFailed])
	assert.Equal(t, 1, stats.Errors)
	assert.InDelta(t, 66.7, stats.SuccessRate, 0.001)
	assert.Equal(t, int64(200), stats.AvgProcessingMS)
}

func TestComputeStatsEmpty(t *testing.T) {
	t.Parallel()

	stats := ComputeStats(nil)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.SuccessRate)
	assert.NotNil(t, stats.ByType)
}

func TestRecordServable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  DigestRecord
		want bool
	}{
		{"success", DigestRecord{Status: StatusSuccess}, true},
		{"no captions", DigestRecord{Status: StatusExtractionFailed, FailureReason: ReasonNoCaptions}, true},
		{"unsupported", DigestRecord{Status: StatusUnsupportedType, FailureReason: ReasonUnsupportedFormat}, true},
		{"network", DigestRecord{Status: StatusExtractionFailed, FailureReason: ReasonNetwork}, false},
		{"provider down", DigestRecord{Status: StatusSummarizationFailed, FailureReason: ReasonTransientProvider}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rec.Servable())
		})
	}
}

func TestReasonOfWrappedErrors(t *testing.T) {
	t.Parallel()

	base := NewExtractionError(ReasonNoCaptions, errors.New("track list empty"))
	wrapped := fmt.Errorf("extract video: %w", base)

	reason, ok := ReasonOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ReasonNoCaptions, reason)
	assert.False(t, base.Transient())
	assert.Contains(t, wrapped.Error(), "captions")

	sumErr := NewSummarizationError(ReasonTransientProvider, errors.New("503"))
	assert.True(t, sumErr.Transient())

	_, ok = ReasonOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestFinalNetworkErrorIsNotTransient(t *testing.T) {
	t.Parallel()

	err := NewExtractionError(ReasonNetwork, errors.New("404"))
	assert.True(t, err.Transient())
	err.Final = true
	assert.False(t, err.Transient())
}
