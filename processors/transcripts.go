package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"channelSummarize/core"
)

// irrelevantPatterns strips bracketed stage directions and links before
// chunking. Entries left empty afterwards are dropped.
var irrelevantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`http[s]?://\S*`),
}

var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[[^\]]*\])`)

// captionTrack is the slice of the watch-page player response we need to
// locate a caption feed.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// timedTextResponse mirrors the json3 timedtext payload.
type timedTextResponse struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// TranscriptFetcher retrieves caption tracks for queued videos, cleans and
// chunks them, and writes one transcript file per video.
type TranscriptFetcher struct {
	client          *http.Client
	transcriptDir   string
	chunkTokens     int
	minEntrySeconds float64
}

func NewTranscriptFetcher(transcriptDir string, chunkTokens int, minEntrySeconds float64) *TranscriptFetcher {
	return &TranscriptFetcher{
		client:          &http.Client{Timeout: 30 * time.Second},
		transcriptDir:   transcriptDir,
		chunkTokens:     chunkTokens,
		minEntrySeconds: minEntrySeconds,
	}
}

// Run fetches transcripts for every queued video that does not already
// have one. Per-video failures are logged and skipped; the queue keeps
// moving.
func (f *TranscriptFetcher) Run(ctx context.Context, queue []core.QueuedVideo) error {
	if err := os.MkdirAll(f.transcriptDir, 0755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	for _, video := range queue {
		savePath := filepath.Join(f.transcriptDir, video.VideoID+".json")
		if _, err := os.Stat(savePath); err == nil {
			log.Printf("transcript already fetched: %s", video.VideoID)
			continue
		}

		entries, err := f.fetchTranscript(ctx, video.VideoID)
		if err != nil {
			log.Printf("transcript not available for video %s: %v", video.VideoID, err)
			continue
		}

		cleaned := cleanTranscript(entries, f.minEntrySeconds)
		chunks, err := BuildChunks(cleaned, f.chunkTokens)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			log.Printf("transcript for %s is empty after cleaning, skipping", video.VideoID)
			continue
		}

		vt := core.VideoTranscript{VideoID: video.VideoID, Chunks: chunks}
		if err := core.WriteJSON(savePath, vt); err != nil {
			log.Printf("failed to save transcript for %s: %v", video.VideoID, err)
			continue
		}
		log.Printf("saved %d chunks for %s", len(chunks), video.VideoID)
	}
	return nil
}

// fetchTranscript locates a caption track on the watch page and downloads
// it in json3 form. There is no official transcript API; this mirrors what
// the caption viewer in the browser does.
func (f *TranscriptFetcher) fetchTranscript(ctx context.Context, videoID string) ([]core.TranscriptEntry, error) {
	page, err := f.get(ctx, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, err
	}

	match := captionTracksPattern.FindSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("no caption tracks on watch page")
	}
	var tracks []captionTrack
	if err := json.Unmarshal(match[1], &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("empty caption track list")
	}

	track := pickCaptionTrack(tracks)
	feed, err := f.get(ctx, track.BaseURL+"&fmt=json3")
	if err != nil {
		return nil, err
	}

	var timed timedTextResponse
	if err := json.Unmarshal(feed, &timed); err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}

	var entries []core.TranscriptEntry
	for _, event := range timed.Events {
		var text strings.Builder
		for _, seg := range event.Segs {
			text.WriteString(seg.UTF8)
		}
		line := strings.TrimSpace(strings.ReplaceAll(text.String(), "\n", " "))
		if line == "" {
			continue
		}
		entries = append(entries, core.TranscriptEntry{
			Text:     line,
			Start:    float64(event.TStartMs) / 1000,
			Duration: float64(event.DDurationMs) / 1000,
		})
	}
	return entries, nil
}

// pickCaptionTrack prefers a manually-authored English track, then any
// English track, then the first available one.
func pickCaptionTrack(tracks []captionTrack) captionTrack {
	for _, t := range tracks {
		if t.LanguageCode == "en" && t.Kind != "asr" {
			return t
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == "en" {
			return t
		}
	}
	return tracks[0]
}

func (f *TranscriptFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cleanTranscript removes irrelevant content and throwaway entries. The
// chunk builder relies on this running first; it never drops entries
// itself.
func cleanTranscript(entries []core.TranscriptEntry, minEntrySeconds float64) []core.TranscriptEntry {
	var cleaned []core.TranscriptEntry
	for _, entry := range entries {
		text := entry.Text
		for _, pattern := range irrelevantPatterns {
			text = pattern.ReplaceAllString(text, "")
		}
		text = strings.TrimSpace(text)
		if text == "" || entry.Duration < minEntrySeconds {
			continue
		}
		cleaned = append(cleaned, core.TranscriptEntry{
			Text:     text,
			Start:    entry.Start,
			Duration: entry.Duration,
		})
	}
	return cleaned
}
