package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ratelimit"
	"InfoDigest/internal/usecase"
)

// MaxMessageLength is Telegram's cap on message text in UTF-16 code units.
const MaxMessageLength = 4096

// HelpText answers /start and /help.
const HelpText = `<b>InfoDigest</b>

Send me a link and I will reply with a short digest:
• web articles
• YouTube videos with captions
• PDF documents

Add a note around the link if you like, I will keep it with the digest.`

// FormatReply renders a pipeline reply as Telegram HTML.
func FormatReply(reply usecase.Reply) string {
	switch reply.Kind {
	case usecase.ReplyDigest:
		return formatDigest(reply)
	case usecase.ReplyRateLimited:
		return fmt.Sprintf("⏳ Too many requests. Please wait %d seconds and try again.",
			ratelimit.RetryAfterSeconds(reply.RetryAfter))
	case usecase.ReplyError:
		return "⚠️ " + html.EscapeString(reply.Message)
	default:
		msg := reply.Message
		if msg == "" {
			msg = usecase.UsageHint
		}
		return html.EscapeString(msg)
	}
}

// formatDigest renders the digest within MaxMessageLength. Oversized
// fields are shortened in order: comment, insight, key points from the
// last one, summary, title.
func formatDigest(reply usecase.Reply) string {
	d := reply.Digest
	d.KeyPoints = append([]string(nil), d.KeyPoints...)
	comment := reply.Comment

	fields := []*string{&comment, &d.Insight}
	for i := len(d.KeyPoints) - 1; i >= 0; i-- {
		fields = append(fields, &d.KeyPoints[i])
	}
	fields = append(fields, &d.Summary, &d.Title)

	text := renderDigest(reply, d, comment, true)
	for _, field := range fields {
		if utf16Len(text) <= MaxMessageLength {
			return text
		}
		// longest prefix of the field that still fits
		original, best := *field, ""
		lo, hi := 0, utf16Len(original)
		for lo <= hi {
			mid := (lo + hi) / 2
			*field = shorten(original, mid)
			if utf16Len(renderDigest(reply, d, comment, true)) <= MaxMessageLength {
				best = *field
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		*field = best
		text = renderDigest(reply, d, comment, true)
	}
	if utf16Len(text) > MaxMessageLength {
		// only a huge source URL is left
		text = renderDigest(reply, d, comment, false)
	}
	return text
}

func renderDigest(reply usecase.Reply, d domain.Digest, comment string, withLink bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(d.Title))
	fmt.Fprintf(&b, "<i>Type: %s</i>\n\n", reply.ContentType.Label())
	fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(d.Summary))

	header := false
	for _, point := range d.KeyPoints {
		if point == "" {
			continue
		}
		if !header {
			b.WriteString("\n<b>Key points</b>\n")
			header = true
		}
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(point))
	}
	if d.Insight != "" {
		fmt.Fprintf(&b, "\n<b>Insight</b>\n%s\n", html.EscapeString(d.Insight))
	}
	if comment != "" {
		fmt.Fprintf(&b, "\n💬 %s\n", html.EscapeString(comment))
	}

	if withLink {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Source</a>", html.EscapeString(reply.SourceURL))
	} else {
		b.WriteString("\n🔗 Source link too long to show")
	}
	if reply.Cached {
		b.WriteString(" · cached")
	}
	return b.String()
}

// shorten cuts s to at most limit UTF-16 units, marking the cut with an
// ellipsis. A limit below two empties the field.
func shorten(s string, limit int) string {
	if utf16Len(s) <= limit {
		return s
	}
	if limit < 2 {
		return ""
	}
	units := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit-1 {
			return strings.TrimSpace(s[:i]) + "…"
		}
		units += n
	}
	return s
}

func utf16Len(s string) int {
	units := 0
	for _, r := range s {
		if n := utf16.RuneLen(r); n > 0 {
			units += n
		} else {
			units++
		}
	}
	return units
}
