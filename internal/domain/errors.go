package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoURL means the message carried no usable http(s) URL.
	ErrNoURL = errors.New("no url found")
	// ErrNotFound is returned by stores when no valid record exists.
	ErrNotFound = errors.New("digest not found")
)

// FailureReason is the machine-readable cause stored with failed records.
type FailureReason string

const (
	ReasonNetwork           FailureReason = "network"
	ReasonTimeout           FailureReason = "timeout"
	ReasonNoCaptions        FailureReason = "no_captions"
	ReasonEmptyContent      FailureReason = "empty_content"
	ReasonUnsupportedFormat FailureReason = "unsupported_format"

	ReasonTransientProvider FailureReason = "transient_provider"
	ReasonMalformedResponse FailureReason = "malformed_response"
	ReasonAuthentication    FailureReason = "authentication"
	ReasonRejected          FailureReason = "rejected"
)

// Permanent reports whether retrying the same URL cannot change the outcome.
func (r FailureReason) Permanent() bool {
	switch r {
	case ReasonNoCaptions, ReasonEmptyContent, ReasonUnsupportedFormat:
		return true
	}
	return false
}

func (r FailureReason) describe() string {
	switch r {
	case ReasonNetwork:
		return "could not reach the source"
	case ReasonTimeout:
		return "source timed out"
	case ReasonNoCaptions:
		return "no captions available"
	case ReasonEmptyContent:
		return "no extractable text"
	case ReasonUnsupportedFormat:
		return "unsupported format"
	case ReasonTransientProvider:
		return "ai provider unavailable"
	case ReasonMalformedResponse:
		return "malformed ai response"
	case ReasonAuthentication:
		return "ai provider rejected credentials"
	case ReasonRejected:
		return "ai provider rejected the request"
	default:
		return string(r)
	}
}

// ExtractionError reports why content could not be pulled from a source.
type ExtractionError struct {
	Reason FailureReason
	Err    error
	// Final marks a network failure that retrying will not fix (404, 410).
	Final bool
}

// NewExtractionError wraps err with a reason.
func NewExtractionError(reason FailureReason, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return e.Reason.describe()
	}
	return fmt.Sprintf("%s: %v", e.Reason.describe(), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry.
func (e *ExtractionError) Transient() bool {
	if e.Final {
		return false
	}
	return e.Reason == ReasonNetwork || e.Reason == ReasonTimeout
}

// SummarizationError reports why the AI provider did not produce a digest.
type SummarizationError struct {
	Reason FailureReason
	Err    error
}

// NewSummarizationError wraps err with a reason.
func NewSummarizationError(reason FailureReason, err error) *SummarizationError {
	return &SummarizationError{Reason: reason, Err: err}
}

func (e *SummarizationError) Error() string {
	if e.Err == nil {
		return e.Reason.describe()
	}
	return fmt.Sprintf("%s: %v", e.Reason.describe(), e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Transient reports whether the provider call is worth repeating.
func (e *SummarizationError) Transient() bool {
	return e.Reason == ReasonTransientProvider
}

// ReasonOf extracts the failure reason carried by err, if any.
func ReasonOf(err error) (FailureReason, bool) {
	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Reason, true
	}
	var sumErr *SummarizationError
	if errors.As(err, &sumErr) {
		return sumErr.Reason, true
	}
	return "", false
}
