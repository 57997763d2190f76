package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"InfoDigest/internal/domain"
)

const (
	acceptPDF   = "application/pdf,*/*;q=0.5"
	maxPDFPages = 300
)

// PDFStrategy downloads documents and reads their text layer.
type PDFStrategy struct {
	fetcher *Fetcher
	parser  *documentParser
}

func newPDFStrategy(fetcher *Fetcher, parser *documentParser) *PDFStrategy {
	return &PDFStrategy{fetcher: fetcher, parser: parser}
}

// ContentType identifies the strategy inside the registry.
func (s *PDFStrategy) ContentType() domain.ContentType {
	return domain.ContentPDF
}

// Extract fetches the document. Servers that answer a .pdf link with an
// HTML landing page get the web treatment instead.
func (s *PDFStrategy) Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error) {
	doc, err := s.fetcher.Get(ctx, target.URL, acceptPDF, maxPDFBytes)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("fetch pdf: %w", err)
	}
	return s.parser.parse(ctx, doc)
}

func (p *documentParser) pdf(ctx context.Context, doc *Document) (domain.ExtractedText, error) {
	var (
		text  string
		title string
	)
	err := p.pool.Do(ctx, func() error {
		var err error
		text, title, err = readPDF(doc.Body)
		return err
	})
	if err != nil {
		return domain.ExtractedText{}, parseFailure(err)
	}

	if title == "" && doc.URL != nil {
		title = fileTitle(doc.URL)
	}

	if runeLen(text) < p.minChars {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonEmptyContent,
			fmt.Errorf("pdf text layer has %d characters, scanned documents are not supported", runeLen(text)))
	}
	return domain.ExtractedText{Text: text, Title: title, ContentType: domain.ContentPDF}, nil
}

// readPDF concatenates the plain text of every page, pages separated by a
// blank line. Pages that fail to decode are skipped.
func readPDF(data []byte) (string, string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("open pdf: %w", err))
	}

	total := reader.NumPage()
	if total > maxPDFPages {
		total = maxPDFPages
	}

	pages := make([]string, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if cleaned := cleanText(strings.ReplaceAll(content, "\x00", "")); cleaned != "" {
			pages = append(pages, cleaned)
		}
	}

	return strings.Join(pages, "\n\n"), documentTitle(reader), nil
}

func documentTitle(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}

// parseFailure maps errors from the parse pool onto the extraction taxonomy.
func parseFailure(err error) error {
	var extractErr *domain.ExtractionError
	switch {
	case errors.As(err, &extractErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewExtractionError(domain.ReasonTimeout, err)
	case errors.Is(err, context.Canceled):
		final := domain.NewExtractionError(domain.ReasonNetwork, err)
		final.Final = true
		return final
	default:
		return domain.NewExtractionError(domain.ReasonUnsupportedFormat, err)
	}
}
