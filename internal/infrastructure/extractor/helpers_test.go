package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"InfoDigest/internal/retry"
)

// buildPDF writes a minimal PDF with one Helvetica text run per page. An
// empty string produces a page without a text layer.
func buildPDF(title string, pageTexts ...string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	write := func(obj string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := range pageTexts {
		kids += fmt.Sprintf("%d 0 R ", 5+2*i)
	}

	write("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, len(pageTexts)))
	write("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n")
	write(fmt.Sprintf("4 0 obj\n<< /Title (%s) >>\nendobj\n", title))

	for i, text := range pageTexts {
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		write(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n", 5+2*i, 6+2*i))
		write(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", 6+2*i, len(content), content))
	}

	xrefAt := buf.Len()
	total := len(offsets) + 1
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", total)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", total, xrefAt)
	return buf.Bytes()
}

func noSleep(context.Context, time.Duration) error { return nil }

func testOptions(client *http.Client) Options {
	return Options{
		Client:         client,
		RequestTimeout: 2 * time.Second,
		MaxTextLength:  100000,
		MinTextLength:  40,
		Workers:        2,
		Retry:          retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep},
		UserAgent:      "InfoDigestTest/1.0",
	}
}
