package classifier

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InfoDigest/internal/domain"
)

func TestClassifyNoURL(t *testing.T) {
	t.Parallel()

	c := New(nil)
	inputs := []string{
		"",
		"hello there",
		"ftp://example.com/file",
		"www.example.com without scheme",
		"https://",
	}

	for _, in := range inputs {
		_, err := c.Classify(in)
		assert.ErrorIs(t, err, domain.ErrNoURL, "input %q", in)
	}
}

func TestClassifyContentTypes(t *testing.T) {
	t.Parallel()

	c := New(nil)
	cases := []struct {
		name    string
		text    string
		want    domain.ContentType
		wantKey string
	}{
		{
			name:    "web with commentary",
			text:    "check this out https://example.com/article",
			want:    domain.ContentWeb,
			wantKey: "https://example.com/article",
		},
		{
			name:    "youtube watch",
			text:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
			want:    domain.ContentVideo,
			wantKey: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:    "youtu.be short link",
			text:    "watch https://youtu.be/dQw4w9WgXcQ?si=abc",
			want:    domain.ContentVideo,
			wantKey: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:    "shorts",
			text:    "https://youtube.com/shorts/abcDEF12345",
			want:    domain.ContentVideo,
			wantKey: "https://www.youtube.com/watch?v=abcDEF12345",
		},
		{
			name:    "channel page is web",
			text:    "https://www.youtube.com/@somechannel",
			want:    domain.ContentWeb,
			wantKey: "https://www.youtube.com/@somechannel",
		},
		{
			name:    "pdf by extension",
			text:    "report: https://example.org/files/Annual-Report.PDF",
			want:    domain.ContentPDF,
			wantKey: "https://example.org/files/Annual-Report.PDF",
		},
		{
			name:    "pdf by query",
			text:    "https://example.org/download?file=report.pdf",
			want:    domain.ContentPDF,
			wantKey: "https://example.org/download?file=report.pdf",
		},
		{
			name:    "balanced parentheses kept",
			text:    "see (https://en.wikipedia.org/wiki/Go_(language)) now",
			want:    domain.ContentWeb,
			wantKey: "https://en.wikipedia.org/wiki/Go_(language)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := c.Classify(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, target.ContentType)
			assert.Equal(t, tc.wantKey, target.Key)
		})
	}
}

func TestClassifyPicksFirstURLAndComment(t *testing.T) {
	t.Parallel()

	target, err := New(nil).Classify("great read https://a.example/one. also https://b.example/two")
	require.NoError(t, err)

	assert.Equal(t, "https://a.example/one", target.URL)
	assert.Equal(t, "great read . also https://b.example/two", target.Comment)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://Example.COM/Path/":                       "https://example.com/Path",
		"https://example.com":                             "https://example.com/",
		"https://example.com:443/a#section":               "https://example.com/a",
		"http://example.com:8080/a":                       "http://example.com:8080/a",
		"https://example.com/a?utm_source=x&b=2&a=1":      "https://example.com/a?a=1&b=2",
		"https://example.com/a?fbclid=1&gclid=2":          "https://example.com/a",
		"https://example.com/search?q=go+lang&UTM_medium": "https://example.com/search?q=go+lang",
	}

	for in, want := range cases {
		u, err := url.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, Normalize(u), "input %s", in)
	}
}

func TestKeyMatchesClassify(t *testing.T) {
	t.Parallel()

	c := New(nil)
	raw := "https://youtu.be/dQw4w9WgXcQ"

	target, err := c.Classify("see " + raw)
	require.NoError(t, err)

	key, err := c.Key(raw)
	require.NoError(t, err)
	assert.Equal(t, target.Key, key)

	_, err = c.Key("mailto:someone@example.com")
	assert.Error(t, err)
}

func TestCustomVideoHosts(t *testing.T) {
	t.Parallel()

	c := New([]string{"youtu.be"})

	target, err := c.Classify("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentWeb, target.ContentType)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", target.Key)
}

func TestTrimTrailing(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://en.wikipedia.org/wiki/Go_(language))": "https://en.wikipedia.org/wiki/Go_(language)",
		"https://en.wikipedia.org/wiki/Go_(language).": "https://en.wikipedia.org/wiki/Go_(language)",
		"https://example.com/a),":                      "https://example.com/a",
		"https://example.com/a?x=1!'":                  "https://example.com/a?x=1",
		"https://example.com/a":                        "https://example.com/a",
	}
	for in, want := range cases {
		assert.Equal(t, want, trimTrailing(in), "input %s", in)
	}

	target, err := New(nil).Classify("see (https://en.wikipedia.org/wiki/Go_(language)) now")
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(language)", target.URL)
}

func TestVideoIDOnlyForYouTube(t *testing.T) {
	t.Parallel()

	c := New([]string{"www.youtube.com", "vimeo.com"})

	target, err := c.Classify("https://vimeo.com/watch?v=abcDEF12345")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentWeb, target.ContentType)
	assert.Equal(t, "https://vimeo.com/watch?v=abcDEF12345", target.Key)

	key, err := c.Key("https://vimeo.com/embed/abcDEF12345")
	require.NoError(t, err)
	assert.Equal(t, "https://vimeo.com/embed/abcDEF12345", key)

	for _, raw := range []string{"https://vimeo.com/watch?v=abcDEF12345", "https://example.com/embed/abcDEF12345"} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		_, ok := VideoID(u)
		assert.False(t, ok, raw)
	}

	u, err := url.Parse("https://www.youtube-nocookie.com/embed/abcDEF12345")
	require.NoError(t, err)
	id, ok := VideoID(u)
	assert.True(t, ok)
	assert.Equal(t, "abcDEF12345", id)
}
