package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"InfoDigest/internal/domain"
)

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,application/pdf;q=0.7,*/*;q=0.5"

var boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, template"

var titleSeparators = []string{" | ", " - ", " – ", " — ", " :: "}

// WebStrategy fetches ordinary pages. A page that turns out to be a PDF is
// handed to the PDF parser and reported as such.
type WebStrategy struct {
	fetcher *Fetcher
	parser  *documentParser
}

func newWebStrategy(fetcher *Fetcher, parser *documentParser) *WebStrategy {
	return &WebStrategy{fetcher: fetcher, parser: parser}
}

// ContentType identifies the strategy inside the registry.
func (w *WebStrategy) ContentType() domain.ContentType {
	return domain.ContentWeb
}

// Extract downloads the page and pulls its main text.
func (w *WebStrategy) Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error) {
	doc, err := w.fetcher.Get(ctx, target.URL, acceptHTML, maxPDFBytes)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("fetch page: %w", err)
	}
	return w.parser.parse(ctx, doc)
}

// documentParser turns fetched bytes into text, dispatching on media type.
// All parsing goes through the pool.
type documentParser struct {
	pool     *Pool
	minChars int
}

func (p *documentParser) parse(ctx context.Context, doc *Document) (domain.ExtractedText, error) {
	switch {
	case doc.MediaType == "application/pdf" || bytes.HasPrefix(doc.Body, []byte("%PDF-")):
		return p.pdf(ctx, doc)
	case doc.MediaType == "text/html" || doc.MediaType == "application/xhtml+xml":
		if len(doc.Body) > maxHTMLBytes {
			return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat,
				fmt.Errorf("html page exceeds %d bytes", maxHTMLBytes))
		}
		return p.html(ctx, doc)
	case doc.MediaType == "text/plain":
		return p.plain(doc)
	default:
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat,
			fmt.Errorf("content type %q", doc.MediaType))
	}
}

func (p *documentParser) html(ctx context.Context, doc *Document) (domain.ExtractedText, error) {
	var result domain.ExtractedText
	err := p.pool.Do(ctx, func() error {
		page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
		if err != nil {
			return domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("parse html: %w", err))
		}

		title := pageTitle(page)
		text := ""

		extracted, err := trafilatura.Extract(bytes.NewReader(doc.Body), trafilatura.Options{
			OriginalURL: doc.URL,
		})
		if err == nil && extracted != nil {
			text = cleanText(extracted.ContentText)
			if title == "" {
				title = strings.TrimSpace(extracted.Metadata.Title)
			}
		}

		if runeLen(text) < p.minChars {
			if fallback := cleanText(mainText(page)); runeLen(fallback) > runeLen(text) {
				text = fallback
			}
		}

		if title == "" && doc.URL != nil {
			title = doc.URL.Hostname()
		}

		result = domain.ExtractedText{Text: text, Title: title, ContentType: domain.ContentWeb}
		return nil
	})
	if err != nil {
		return domain.ExtractedText{}, parseFailure(err)
	}

	if runeLen(result.Text) < p.minChars {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonEmptyContent,
			fmt.Errorf("page yielded %d characters", runeLen(result.Text)))
	}
	return result, nil
}

func (p *documentParser) plain(doc *Document) (domain.ExtractedText, error) {
	text := cleanText(string(doc.Body))
	if runeLen(text) < p.minChars {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonEmptyContent,
			fmt.Errorf("document yielded %d characters", runeLen(text)))
	}
	title := ""
	if doc.URL != nil {
		title = fileTitle(doc.URL)
	}
	return domain.ExtractedText{Text: text, Title: title, ContentType: domain.ContentWeb}, nil
}

// mainText is the goquery fallback: boilerplate removed, then text from the
// article, main, or body element in that order.
func mainText(page *goquery.Document) string {
	page.Find(boilerplateSelector).Remove()

	root := page.Find("article").First()
	if root.Length() == 0 {
		root = page.Find("main").First()
	}
	if root.Length() == 0 {
		root = page.Find("body").First()
	}

	var parts []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return root.Text()
	}
	return strings.Join(parts, "\n")
}

func pageTitle(page *goquery.Document) string {
	title := strings.TrimSpace(page.Find("head title").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find("title").First().Text())
	}
	if title != "" {
		return stripSiteSuffix(strings.Join(strings.Fields(title), " "))
	}
	if og, ok := page.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(page.Find("h1").First().Text())
}

func stripSiteSuffix(title string) string {
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}

func fileTitle(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := segments[len(segments)-1]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if name == "" {
		return u.Hostname()
	}
	return name
}
