package extractor

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"InfoDigest/internal/classifier"
	"InfoDigest/internal/domain"
)

const (
	defaultWatchBase = "https://www.youtube.com"
	playerMarker     = "ytInitialPlayerResponse"
	maxCaptionBytes  = 4 << 20
)

// VideoStrategy reads caption tracks advertised on a video's watch page.
type VideoStrategy struct {
	fetcher   *Fetcher
	pool      *Pool
	watchBase string
	languages []string
}

func newVideoStrategy(fetcher *Fetcher, pool *Pool, watchBase string, languages []string) *VideoStrategy {
	if watchBase == "" {
		watchBase = defaultWatchBase
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &VideoStrategy{
		fetcher:   fetcher,
		pool:      pool,
		watchBase: strings.TrimRight(watchBase, "/"),
		languages: languages,
	}
}

// ContentType identifies the strategy inside the registry.
func (v *VideoStrategy) ContentType() domain.ContentType {
	return domain.ContentVideo
}

// Extract resolves a caption track and returns its transcript.
func (v *VideoStrategy) Extract(ctx context.Context, target domain.Target) (domain.ExtractedText, error) {
	parsed, err := url.Parse(target.URL)
	if err != nil {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat, err)
	}
	id, ok := classifier.VideoID(parsed)
	if !ok {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat,
			fmt.Errorf("no video id in %s", target.URL))
	}

	watchURL := v.watchBase + "/watch?v=" + url.QueryEscape(id)
	page, err := v.fetcher.Get(ctx, watchURL, acceptHTML, maxHTMLBytes)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("fetch watch page: %w", err)
	}

	player, ok := playerResponse(page.Body)
	if !ok {
		final := domain.NewExtractionError(domain.ReasonNetwork, errors.New("player response missing from watch page"))
		final.Final = true
		return domain.ExtractedText{}, final
	}

	if status := gjson.Get(player, "playabilityStatus.status").String(); status != "" && status != "OK" {
		reason := gjson.Get(player, "playabilityStatus.reason").String()
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonUnsupportedFormat,
			fmt.Errorf("video not playable: %s %s", status, reason))
	}

	title := gjson.Get(player, "videoDetails.title").String()
	track, ok := v.pickTrack(gjson.Get(player, "captions.playerCaptionsTracklistRenderer.captionTracks").Array())
	if !ok {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonNoCaptions,
			fmt.Errorf("video %s has no caption tracks", id))
	}

	captions, err := v.fetcher.Get(ctx, track, "", maxCaptionBytes)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("fetch captions: %w", err)
	}

	var transcript string
	err = v.pool.Do(ctx, func() error {
		var parseErr error
		transcript, parseErr = parseTimedText(captions.Body)
		return parseErr
	})
	if err != nil {
		return domain.ExtractedText{}, parseFailure(err)
	}
	if transcript == "" {
		return domain.ExtractedText{}, domain.NewExtractionError(domain.ReasonNoCaptions,
			fmt.Errorf("caption track for %s is empty", id))
	}

	return domain.ExtractedText{Text: transcript, Title: title, ContentType: domain.ContentVideo}, nil
}

// pickTrack prefers manual captions in a configured language, then
// auto-generated ones, then whatever comes first.
func (v *VideoStrategy) pickTrack(tracks []gjson.Result) (string, bool) {
	if len(tracks) == 0 {
		return "", false
	}
	for _, auto := range []bool{false, true} {
		for _, lang := range v.languages {
			for _, t := range tracks {
				isAuto := t.Get("kind").String() == "asr"
				code := t.Get("languageCode").String()
				if isAuto == auto && (code == lang || strings.HasPrefix(code, lang+"-")) {
					if base := t.Get("baseUrl").String(); base != "" {
						return base, true
					}
				}
			}
		}
	}
	for _, t := range tracks {
		if base := t.Get("baseUrl").String(); base != "" {
			return base, true
		}
	}
	return "", false
}

// playerResponse cuts the JSON object assigned to ytInitialPlayerResponse
// out of the watch page.
func playerResponse(page []byte) (string, bool) {
	idx := bytes.Index(page, []byte(playerMarker))
	if idx < 0 {
		return "", false
	}
	start := bytes.IndexByte(page[idx:], '{')
	if start < 0 {
		return "", false
	}
	start += idx

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(page); i++ {
		c := page[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				obj := string(page[start : i+1])
				if !gjson.Valid(obj) {
					return "", false
				}
				return obj, true
			}
		}
	}
	return "", false
}

// parseTimedText reads both the legacy <transcript><text> layout and the
// srv3 <timedtext><body><p> layout.
func parseTimedText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	var (
		parts   []string
		current strings.Builder
		inCue   bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", domain.NewExtractionError(domain.ReasonUnsupportedFormat, fmt.Errorf("parse captions: %w", err))
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "text" || el.Name.Local == "p" {
				inCue = true
				current.Reset()
			}
		case xml.CharData:
			if inCue {
				current.Write(el)
			}
		case xml.EndElement:
			if (el.Name.Local == "text" || el.Name.Local == "p") && inCue {
				inCue = false
				cue := strings.Join(strings.Fields(html.UnescapeString(current.String())), " ")
				if cue != "" {
					parts = append(parts, cue)
				}
			}
		}
	}
	return strings.Join(parts, " "), nil
}
