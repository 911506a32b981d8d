package core

import "fmt"

// ========== 基础数据结构 ==========

// TranscriptEntry is one caption line as delivered by the captioning
// service, after upstream cleaning. Timestamp is derived from Start when
// the entry is placed into a chunk.
type TranscriptEntry struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	Timestamp string  `json:"true_video_timestamp,omitempty"`
}

// Chunk is a contiguous, token-bounded slice of a video's transcript.
// Entries keep their original order; StartTime/EndTime are taken from the
// first and last entry.
type Chunk struct {
	ChunkID    int               `json:"chunk_id"`
	StartTime  float64           `json:"start_time"`
	EndTime    float64           `json:"end_time"`
	Transcript []TranscriptEntry `json:"transcript"`
}

// VideoTranscript is the per-video input file written by the transcripts
// stage and consumed by the summarize stage.
type VideoTranscript struct {
	VideoID string  `json:"video_id"`
	Chunks  []Chunk `json:"chunks"`
}

// SummaryRecord holds the generated summary for one chunk. Chunks whose
// response was suppressed or dropped have no record.
type SummaryRecord struct {
	ChunkID int    `json:"chunk_id"`
	Summary string `json:"summary"`
}

// SummaryBundle is the per-video output file, written exactly once and
// atomically after every chunk has been processed.
type SummaryBundle struct {
	VideoID   string          `json:"video_id"`
	Summaries []SummaryRecord `json:"summaries"`
}

// LedgerEntry records that a video finished summarization. The ledger file
// is an append-only array of these.
type LedgerEntry struct {
	VideoID          string `json:"video_id"`
	SummaryCompleted bool   `json:"summary_completed"`
	Timestamp        string `json:"timestamp"`
}

// QueuedVideo is one entry of the discovery queue file.
type QueuedVideo struct {
	VideoID    string `json:"video_id"`
	VideoIndex int    `json:"video_index"`
}

// ========== 时间戳工具 ==========

// FormatTimestamp renders an offset in seconds as [HH:MM:SS].
func FormatTimestamp(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("[%02d:%02d:%02d]", s/3600, (s%3600)/60, s%60)
}
