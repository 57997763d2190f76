package usecase

import (
	"time"

	"InfoDigest/internal/domain"
)

// ReplyKind tags the variant carried by a Reply.
type ReplyKind string

const (
	ReplyUsageHint   ReplyKind = "usage_hint"
	ReplyRateLimited ReplyKind = "rate_limited"
	ReplyDigest      ReplyKind = "digest"
	ReplyError       ReplyKind = "error"
)

// UsageHint is sent when a message carries no link.
const UsageHint = "Send me a link to an article, a YouTube video or a PDF and I will reply with a short digest."

// Reply is the single outbound answer to a message. Which fields are set
// depends on Kind.
type Reply struct {
	Kind ReplyKind

	// Digest replies.
	Digest      domain.Digest
	SourceURL   string
	ContentType domain.ContentType
	Cached      bool
	Comment     string

	// RateLimited replies.
	RetryAfter time.Duration

	// UsageHint and Error replies.
	Message       string
	FailureReason domain.FailureReason

	RequestID string
}

// UserMessage turns a failure reason into a reply safe to show users.
func UserMessage(reason domain.FailureReason) string {
	switch reason {
	case domain.ReasonNoCaptions:
		return "This video has no captions available, so I can't summarize it."
	case domain.ReasonEmptyContent:
		return "I couldn't find any readable text at that link."
	case domain.ReasonUnsupportedFormat:
		return "That link points to a format I can't read yet."
	case domain.ReasonNetwork:
		return "I couldn't reach the page. Please try again later."
	case domain.ReasonTimeout:
		return "The page took too long to respond. Please try again later."
	case domain.ReasonTransientProvider:
		return "The AI service is busy right now. Please try again in a few minutes."
	case domain.ReasonMalformedResponse:
		return "The AI returned a summary I couldn't read. Please try again."
	case domain.ReasonAuthentication, domain.ReasonRejected:
		return "The AI service refused the request. Please let the bot owner know."
	default:
		return "Something went wrong while processing your link."
	}
}
