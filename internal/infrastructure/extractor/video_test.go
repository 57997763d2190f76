package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InfoDigest/internal/domain"
)

const captionXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="2.1">Welcome back to the channel</text>
<text start="2.6" dur="3.0">today we&amp;#39;re looking at   solar panels</text>
<text start="5.6" dur="1.0"></text>
</transcript>`

func watchPage(playerJSON string) string {
	return fmt.Sprintf(`<html><head><title>video</title></head><body>
<script>var ytInitialPlayerResponse = %s;var meta = {"a": 1};</script>
</body></html>`, playerJSON)
}

func newVideoServer(t *testing.T, player func(base string) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "abcDEF12345" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(watchPage(player(server.URL))))
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		if r.URL.Query().Get("lang") != "en" {
			_, _ = w.Write([]byte(`<transcript><text start="0" dur="1">wrong track</text></transcript>`))
			return
		}
		_, _ = w.Write([]byte(captionXML))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestExtractVideoCaptions(t *testing.T) {
	t.Parallel()

	server := newVideoServer(t, func(base string) string {
		return fmt.Sprintf(`{
  "playabilityStatus": {"status": "OK"},
  "videoDetails": {"videoId": "abcDEF12345", "title": "Solar \"Panels\" Explained {part 1}"},
  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
    {"baseUrl": "%[1]s/api/timedtext?v=abcDEF12345&lang=de", "languageCode": "de"},
    {"baseUrl": "%[1]s/api/timedtext?v=abcDEF12345&lang=en&kind=asr", "languageCode": "en", "kind": "asr"},
    {"baseUrl": "%[1]s/api/timedtext?v=abcDEF12345&lang=en", "languageCode": "en"}
  ]}}
}`, base)
	})

	opts := testOptions(server.Client())
	opts.VideoBaseURL = server.URL
	opts.CaptionLanguages = []string{"en"}
	opts.MinTextLength = 10

	out, err := New(opts, nil).Extract(context.Background(), domain.Target{
		URL:         "https://youtu.be/abcDEF12345",
		ContentType: domain.ContentVideo,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ContentVideo, out.ContentType)
	assert.Equal(t, `Solar "Panels" Explained {part 1}`, out.Title)
	assert.Equal(t, "Welcome back to the channel today we're looking at solar panels", out.Text)
}

func TestExtractVideoWithoutCaptions(t *testing.T) {
	t.Parallel()

	server := newVideoServer(t, func(string) string {
		return `{"playabilityStatus": {"status": "OK"}, "videoDetails": {"title": "Silent film"}}`
	})

	opts := testOptions(server.Client())
	opts.VideoBaseURL = server.URL

	_, err := New(opts, nil).Extract(context.Background(), domain.Target{
		URL:         "https://www.youtube.com/watch?v=abcDEF12345",
		ContentType: domain.ContentVideo,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ReasonNoCaptions, extractionReason(t, err))
	assert.Contains(t, err.Error(), "captions")
}

func TestExtractVideoUnplayable(t *testing.T) {
	t.Parallel()

	server := newVideoServer(t, func(string) string {
		return `{"playabilityStatus": {"status": "ERROR", "reason": "Video unavailable"}}`
	})

	opts := testOptions(server.Client())
	opts.VideoBaseURL = server.URL

	_, err := New(opts, nil).Extract(context.Background(), domain.Target{
		URL:         "https://www.youtube.com/watch?v=abcDEF12345",
		ContentType: domain.ContentVideo,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ReasonUnsupportedFormat, extractionReason(t, err))
}

func TestPlayerResponse(t *testing.T) {
	t.Parallel()

	page := []byte(`<script>var ytInitialPlayerResponse = {"a": "}{", "b": {"c": "\"x\""}};</script>`)
	obj, ok := playerResponse(page)
	require.True(t, ok)
	assert.Equal(t, `{"a": "}{", "b": {"c": "\"x\""}}`, obj)

	_, ok = playerResponse([]byte(`<html>consent required</html>`))
	assert.False(t, ok)
}

func TestParseTimedTextSrv3(t *testing.T) {
	t.Parallel()

	data := []byte(`<timedtext format="3"><body><p t="0" d="1000"><s>hello</s><s> world</s></p><p t="1000" d="500">again</p></body></timedtext>`)
	text, err := parseTimedText(data)
	require.NoError(t, err)
	assert.Equal(t, "hello world again", text)
}
