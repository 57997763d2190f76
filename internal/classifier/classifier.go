package classifier

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
)

var (
	urlExpr     = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	videoIDExpr = regexp.MustCompile(`^[\w-]{6,}$`)
)

// DefaultVideoHosts lists the platforms whose URLs are treated as videos.
var DefaultVideoHosts = []string{
	"youtube.com",
	"www.youtube.com",
	"m.youtube.com",
	"music.youtube.com",
	"youtu.be",
}

// youTubeHosts are the hosts (without "www.") whose ids map onto a watch page.
var youTubeHosts = map[string]struct{}{
	"youtube.com":          {},
	"m.youtube.com":        {},
	"music.youtube.com":    {},
	"youtu.be":             {},
	"youtube-nocookie.com": {},
}

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"igshid":  {},
	"ref_src": {},
	"si":      {},
}

// Classifier extracts and classifies URLs from chat messages.
type Classifier struct {
	videoHosts map[string]struct{}
}

var _ ports.Classifier = (*Classifier)(nil)

// New builds a classifier; an empty host list falls back to DefaultVideoHosts.
func New(videoHosts []string) *Classifier {
	if len(videoHosts) == 0 {
		videoHosts = DefaultVideoHosts
	}
	hosts := make(map[string]struct{}, len(videoHosts))
	for _, h := range videoHosts {
		hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Classifier{videoHosts: hosts}
}

// Classify finds the first http(s) URL in text and decides its content type.
func (c *Classifier) Classify(text string) (domain.Target, error) {
	raw, loc, ok := firstURL(text)
	if !ok {
		return domain.Target{}, domain.ErrNoURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return domain.Target{}, domain.ErrNoURL
	}

	target := domain.Target{
		URL:         raw,
		ContentType: c.contentType(parsed),
		Comment:     comment(text, loc),
	}

	if target.ContentType == domain.ContentVideo {
		if id, ok := VideoID(parsed); ok {
			target.Key = canonicalVideoURL(id)
			return target, nil
		}
		// a channel or playlist page on a video host is just a web page
		target.ContentType = domain.ContentWeb
	}

	target.Key = Normalize(parsed)
	return target, nil
}

func (c *Classifier) contentType(u *url.URL) domain.ContentType {
	if _, ok := c.videoHosts[strings.ToLower(u.Hostname())]; ok {
		return domain.ContentVideo
	}
	if IsPDFPath(u) {
		return domain.ContentPDF
	}
	return domain.ContentWeb
}

func firstURL(text string) (string, []int, bool) {
	for _, loc := range urlExpr.FindAllStringIndex(text, -1) {
		candidate := trimTrailing(text[loc[0]:loc[1]])
		parsed, err := url.Parse(candidate)
		if err != nil || parsed.Host == "" || parsed.Hostname() == "" {
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			continue
		}
		return candidate, []int{loc[0], loc[0] + len(candidate)}, true
	}
	return "", nil, false
}

// trimTrailing drops sentence punctuation after a link. A closing paren is
// kept while it balances an opening one inside the link.
func trimTrailing(candidate string) string {
	for candidate != "" {
		last := candidate[len(candidate)-1]
		switch {
		case strings.IndexByte(".,;:!?'", last) >= 0:
		case last == ')' && strings.Count(candidate, ")") > strings.Count(candidate, "("):
		default:
			return candidate
		}
		candidate = candidate[:len(candidate)-1]
	}
	return candidate
}

func comment(text string, loc []int) string {
	rest := text[:loc[0]] + " " + text[loc[1]:]
	return strings.Join(strings.Fields(rest), " ")
}

// IsPDFPath reports whether the URL path or a query value names a .pdf file.
func IsPDFPath(u *url.URL) bool {
	if strings.EqualFold(path.Ext(u.Path), ".pdf") {
		return true
	}
	for _, values := range u.Query() {
		for _, v := range values {
			if strings.HasSuffix(strings.ToLower(v), ".pdf") {
				return true
			}
		}
	}
	return false
}

// VideoID pulls the YouTube video identifier from any supported URL shape.
// Other hosts never yield an id, even when they use the same URL layout.
func VideoID(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, ok := youTubeHosts[host]; !ok {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segments[0]
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
		id = segments[1]
	}

	if !videoIDExpr.MatchString(id) {
		return "", false
	}
	return id, true
}

func canonicalVideoURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}

// Normalize produces the cache key for a URL: lowercase scheme and host,
// default port and fragment removed, tracking parameters dropped, remaining
// parameters sorted and trailing slash trimmed except at the root.
func Normalize(u *url.URL) string {
	escapedPath := u.EscapedPath()
	if len(escapedPath) > 1 {
		escapedPath = strings.TrimRight(escapedPath, "/")
	}
	if escapedPath == "" {
		escapedPath = "/"
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "utm_") {
			continue
		}
		if _, skip := trackingParams[lower]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}

	result := strings.ToLower(u.Scheme) + "://" + normalizeHost(u) + escapedPath
	if len(parts) > 0 {
		result += "?" + strings.Join(parts, "&")
	}
	return result
}

// Key normalizes raw the same way Classify does, for lookups that start
// from a bare URL rather than a chat message.
func (c *Classifier) Key(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return "", fmt.Errorf("not an absolute http url: %q", raw)
	}
	if _, ok := c.videoHosts[strings.ToLower(parsed.Hostname())]; ok {
		if id, ok := VideoID(parsed); ok {
			return canonicalVideoURL(id), nil
		}
	}
	return Normalize(parsed), nil
}

func normalizeHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	scheme := strings.ToLower(u.Scheme)
	if port == "" || (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
