package domain

import "time"

// ContentType classifies the source behind a URL.
type ContentType string

const (
	ContentWeb     ContentType = "web"
	ContentVideo   ContentType = "video"
	ContentPDF     ContentType = "pdf"
	ContentUnknown ContentType = "unknown"
)

// Label is the human-facing name used in prompts and replies.
func (c ContentType) Label() string {
	switch c {
	case ContentVideo:
		return "Video"
	case ContentPDF:
		return "Report"
	case ContentWeb:
		return "Article"
	default:
		return "Content"
	}
}

// ParseContentType maps a stored or user-supplied value to a ContentType.
func ParseContentType(value string) (ContentType, bool) {
	switch ContentType(value) {
	case ContentWeb, ContentVideo, ContentPDF, ContentUnknown:
		return ContentType(value), true
	}
	return "", false
}

// Status is the terminal outcome of processing a URL.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusExtractionFailed    Status = "extraction_failed"
	StatusSummarizationFailed Status = "summarization_failed"
	StatusUnsupportedType     Status = "unsupported_type"
)

// ParseStatus maps a stored or user-supplied value to a Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusSuccess, StatusExtractionFailed, StatusSummarizationFailed, StatusUnsupportedType:
		return Status(value), true
	}
	return "", false
}

// Target is a classified URL ready for extraction.
type Target struct {
	// URL is the address as the user sent it and is what gets fetched.
	URL string
	// Key is the normalized form used for storage and lookup.
	Key         string
	ContentType ContentType
	// Comment is whatever text surrounded the URL in the message.
	Comment string
}

// ExtractedText is the normalized plain text pulled from a source.
type ExtractedText struct {
	Text        string
	Title       string
	ContentType ContentType
}

// SummaryInput is what the summarizer needs to produce a Digest.
type SummaryInput struct {
	Text        string
	Title       string
	ContentType ContentType
}

// Digest is the structured AI output for a source.
type Digest struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Insight   string   `json:"insight,omitempty"`
}

// DigestRecord is the persisted outcome of processing one URL.
type DigestRecord struct {
	SourceURL     string        `json:"source_url"`
	ContentType   ContentType   `json:"content_type"`
	ExtractedText string        `json:"extracted_text,omitempty"`
	Title         string        `json:"title"`
	Summary       string        `json:"summary"`
	KeyPoints     []string      `json:"key_points"`
	Insight       string        `json:"insight,omitempty"`
	Status        Status        `json:"status"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	RequestedBy   string        `json:"requested_by"`
	UserComment   string        `json:"user_comment,omitempty"`
	ProcessingMS  int64         `json:"processing_ms"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Digest returns the summary fields of the record.
func (r DigestRecord) Digest() Digest {
	return Digest{
		Title:     r.Title,
		Summary:   r.Summary,
		KeyPoints: append([]string(nil), r.KeyPoints...),
		Insight:   r.Insight,
	}
}

// Servable reports whether a stored record may answer a new request for
// the same URL without reprocessing. Transient failures are retried.
func (r DigestRecord) Servable() bool {
	if r.Status == StatusSuccess {
		return true
	}
	return r.FailureReason.Permanent()
}

// Filter narrows ListRecent results for the dashboard read path.
type Filter struct {
	ContentType ContentType
	Status      Status
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}
