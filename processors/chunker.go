package processors

import (
	"fmt"
	"strings"

	"channelSummarize/core"
)

// BuildChunks splits a cleaned transcript into token-bounded chunks. Tokens
// are counted as whitespace-separated words. The budget is a soft cap: a
// chunk is closed before an entry that would push it over, but a single
// entry larger than the whole budget still becomes its own chunk rather
// than being split.
func BuildChunks(entries []core.TranscriptEntry, maxTokens int) ([]core.Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunk token budget must be positive, got %d", maxTokens)
	}

	var chunks []core.Chunk
	var current []core.TranscriptEntry
	totalTokens := 0
	chunkID := 1

	closeChunk := func() {
		first := current[0]
		last := current[len(current)-1]
		chunks = append(chunks, core.Chunk{
			ChunkID:    chunkID,
			StartTime:  first.Start,
			EndTime:    last.Start + last.Duration,
			Transcript: current,
		})
		current = nil
		totalTokens = 0
		chunkID++
	}

	for _, entry := range entries {
		numTokens := len(strings.Fields(entry.Text))
		if len(current) > 0 && totalTokens+numTokens > maxTokens {
			closeChunk()
		}
		entry.Timestamp = core.FormatTimestamp(entry.Start)
		current = append(current, entry)
		totalTokens += numTokens
	}

	if len(current) > 0 {
		closeChunk()
	}

	return chunks, nil
}
