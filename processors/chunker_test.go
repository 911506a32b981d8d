package processors

import (
	"strings"
	"testing"

	"channelSummarize/core"
)

func entryWithWords(n int, start, duration float64) core.TranscriptEntry {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return core.TranscriptEntry{Text: strings.Join(words, " "), Start: start, Duration: duration}
}

func TestBuildChunksBudgetExample(t *testing.T) {
	// word counts [50, 60, 40] with budget 100: 50+60 would exceed, so the
	// first chunk closes at one entry and the second holds the other two.
	entries := []core.TranscriptEntry{
		entryWithWords(50, 0, 10),
		entryWithWords(60, 10, 10),
		entryWithWords(40, 20, 10),
	}

	chunks, err := BuildChunks(entries, 100)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Transcript) != 1 {
		t.Errorf("expected 1 entry in chunk 1, got %d", len(chunks[0].Transcript))
	}
	if len(chunks[1].Transcript) != 2 {
		t.Errorf("expected 2 entries in chunk 2, got %d", len(chunks[1].Transcript))
	}
	if chunks[0].ChunkID != 1 || chunks[1].ChunkID != 2 {
		t.Errorf("chunk IDs not sequential from 1: %d, %d", chunks[0].ChunkID, chunks[1].ChunkID)
	}
}

func TestBuildChunksBudgetInvariant(t *testing.T) {
	var entries []core.TranscriptEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, entryWithWords(7, float64(i*5), 5))
	}

	chunks, err := BuildChunks(entries, 20)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}
	for _, chunk := range chunks {
		total := 0
		for _, e := range chunk.Transcript {
			total += len(strings.Fields(e.Text))
		}
		if total > 20 {
			t.Errorf("chunk %d holds %d tokens, budget is 20", chunk.ChunkID, total)
		}
	}
}

func TestBuildChunksOrderPreservation(t *testing.T) {
	entries := []core.TranscriptEntry{
		{Text: "alpha", Start: 0, Duration: 5},
		{Text: "beta", Start: 5, Duration: 5},
		{Text: "gamma", Start: 10, Duration: 5},
		{Text: "delta", Start: 15, Duration: 5},
	}

	chunks, err := BuildChunks(entries, 2)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}

	var flattened []string
	for _, chunk := range chunks {
		for _, e := range chunk.Transcript {
			flattened = append(flattened, e.Text)
		}
	}
	want := []string{"alpha", "beta", "gamma", "delta"}
	if len(flattened) != len(want) {
		t.Fatalf("expected %d entries after flattening, got %d", len(want), len(flattened))
	}
	for i := range want {
		if flattened[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], flattened[i])
		}
	}
}

func TestBuildChunksOverBudgetEntry(t *testing.T) {
	entries := []core.TranscriptEntry{
		entryWithWords(10, 0, 5),
		entryWithWords(150, 5, 5), // alone exceeds the budget
		entryWithWords(10, 10, 5),
	}

	chunks, err := BuildChunks(entries, 100)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[1].Transcript) != 1 {
		t.Errorf("over-budget entry should sit alone in its chunk, got %d entries", len(chunks[1].Transcript))
	}
}

func TestBuildChunksTimesAndLabels(t *testing.T) {
	entries := []core.TranscriptEntry{
		{Text: "one", Start: 0, Duration: 2.5},
		{Text: "two", Start: 3661, Duration: 4},
	}

	chunks, err := BuildChunks(entries, 100)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	chunk := chunks[0]
	if chunk.StartTime != 0 {
		t.Errorf("expected start time 0, got %f", chunk.StartTime)
	}
	if chunk.EndTime != 3665 {
		t.Errorf("expected end time 3665, got %f", chunk.EndTime)
	}
	if chunk.Transcript[0].Timestamp != "[00:00:00]" {
		t.Errorf("expected label [00:00:00], got %s", chunk.Transcript[0].Timestamp)
	}
	if chunk.Transcript[1].Timestamp != "[01:01:01]" {
		t.Errorf("expected label [01:01:01], got %s", chunk.Transcript[1].Timestamp)
	}
}

func TestBuildChunksEmptyTranscript(t *testing.T) {
	chunks, err := BuildChunks(nil, 100)
	if err != nil {
		t.Fatalf("BuildChunks() failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty transcript, got %d", len(chunks))
	}
}

func TestBuildChunksInvalidBudget(t *testing.T) {
	if _, err := BuildChunks([]core.TranscriptEntry{{Text: "x"}}, 0); err == nil {
		t.Error("expected error for zero token budget")
	}
	if _, err := BuildChunks([]core.TranscriptEntry{{Text: "x"}}, -5); err == nil {
		t.Error("expected error for negative token budget")
	}
}
