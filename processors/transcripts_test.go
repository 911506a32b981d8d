package processors

import (
	"testing"

	"channelSummarize/core"
)

func TestCleanTranscript(t *testing.T) {
	entries := []core.TranscriptEntry{
		{Text: "hero shoves the river", Start: 0, Duration: 5},
		{Text: "[Applause]", Start: 5, Duration: 4},
		{Text: "watch more at https://example.com/stream now", Start: 9, Duration: 6},
		{Text: "quick cut", Start: 15, Duration: 1.5},
	}

	cleaned := cleanTranscript(entries, 3.0)

	if len(cleaned) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(cleaned))
	}
	if cleaned[0].Text != "hero shoves the river" {
		t.Errorf("unexpected first entry: %q", cleaned[0].Text)
	}
	if cleaned[1].Text != "watch more at  now" && cleaned[1].Text != "watch more at now" {
		t.Errorf("URL should be stripped, got %q", cleaned[1].Text)
	}
}

func TestCleanTranscriptKeepsOrder(t *testing.T) {
	entries := []core.TranscriptEntry{
		{Text: "first", Start: 0, Duration: 5},
		{Text: "second", Start: 5, Duration: 5},
		{Text: "third", Start: 10, Duration: 5},
	}
	cleaned := cleanTranscript(entries, 3.0)
	for i, want := range []string{"first", "second", "third"} {
		if cleaned[i].Text != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, cleaned[i].Text)
		}
	}
}

func TestPickCaptionTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1", LanguageCode: "de"},
		{BaseURL: "u2", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u3", LanguageCode: "en"},
	}
	if got := pickCaptionTrack(tracks); got.BaseURL != "u3" {
		t.Errorf("expected the manual English track, got %q", got.BaseURL)
	}

	asrOnly := []captionTrack{
		{BaseURL: "u1", LanguageCode: "de"},
		{BaseURL: "u2", LanguageCode: "en", Kind: "asr"},
	}
	if got := pickCaptionTrack(asrOnly); got.BaseURL != "u2" {
		t.Errorf("expected the ASR English track as fallback, got %q", got.BaseURL)
	}

	foreign := []captionTrack{{BaseURL: "u1", LanguageCode: "de"}}
	if got := pickCaptionTrack(foreign); got.BaseURL != "u1" {
		t.Errorf("expected the first track as last resort, got %q", got.BaseURL)
	}
}
