package processors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"channelSummarize/core"
)

// NoContentSentinel is the designated response meaning the chunk had
// nothing worth reporting. It drops the chunk's output without being
// treated as an error.
const NoContentSentinel = "NO INSIGHTFUL POKER CONTENT"

// noPriorContext marks the first chunk's request, and any request that
// follows only suppressed chunks.
const noPriorContext = "No previous context available."

const promptTemplate = `
You are a specialized analyst for high-stakes poker tournament videos with professional commentary.

Your goal is to create an insightful yet concise summary of key poker moments. Prioritize key strategic decisions, player moves, and game-changing hands. Ignore casual talk, promotions, or off-topic banter.

Important instructions:
- Use the timestamps from the transcript text directly in your summary for precise event tracking.
- Assume the chunk starts at **%s** and adjust referenced timestamps accordingly.
- Highlight key moments such as:
    - **[ALL-IN]**, **[RAISE]**, **[FOLD]**
    - **[CHECK]**, **[BET]**, **[CALL]**, **[3-BET]**, **[4-BET]**, **[5-BET]**, **[C-BET]**
    - **[BLUFF]**, **[TRAP]**, **[SLOWPLAY]**, **[ISOLATION PLAY]**, **[FLOAT]**
    - **[BUBBLE]**, **[FINAL TABLE]**, **[CHIP LEAD]**, **[ELIMINATION]**
    - **[TILT]**, **[LEVELING]**, **[ICM PRESSURE]**
- Emphasize strategic decisions, table dynamics, and momentum shifts — even if no major action occurs.
- Identify standout players, their playing style, and pivotal moments.
- **If no strategic poker insights are found, respond with: "NO INSIGHTFUL POKER CONTENT."**

%s

Transcript Chunk:
%s

Output:
`

// ChatClient is the slice of the generation service the summarizer needs.
// *openai.Client satisfies it; tests supply a scripted fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// BackoffPolicy maps a failed attempt number (1-based) to the wait before
// the next attempt.
type BackoffPolicy func(attempt int) time.Duration

// ExponentialBackoff doubles the wait with each failed attempt: 2s, 4s, 8s...
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// errShapeResponse marks a structurally unusable generation response.
var errShapeResponse = errors.New("unexpected response shape")

// SummarizerOptions carries the driver knobs, resolved once at startup.
type SummarizerOptions struct {
	Model                string
	MaxInputTokens       int
	MaxOutputTokens      int
	RequestTimeout       time.Duration
	Retries              int
	RetryableStatusCodes []int
}

// Summarizer drives the sequential, context-carrying summarization of one
// video's chunks. Chunks are processed in strict ascending order because
// each request carries the previous non-empty summary.
type Summarizer struct {
	client    ChatClient
	opts      SummarizerOptions
	backoff   BackoffPolicy
	retryable map[int]bool
}

func NewSummarizer(client ChatClient, opts SummarizerOptions, backoff BackoffPolicy) *Summarizer {
	retryable := make(map[int]bool, len(opts.RetryableStatusCodes))
	for _, code := range opts.RetryableStatusCodes {
		retryable[code] = true
	}
	return &Summarizer{client: client, opts: opts, backoff: backoff, retryable: retryable}
}

// SummarizeVideo processes every chunk of vt and returns the bundle of
// generated summaries. Individual chunk failures never abort the video:
// after exhausted retries the chunk simply contributes no record.
func (s *Summarizer) SummarizeVideo(ctx context.Context, vt core.VideoTranscript) core.SummaryBundle {
	summaries := []core.SummaryRecord{}
	previousSummary := ""

	startTime := time.Now()
	lastLog := startTime

	for idx, chunk := range vt.Chunks {
		summary, err := s.summarizeChunk(ctx, chunk, previousSummary)
		switch {
		case err != nil:
			log.Printf("chunk %d of %s dropped: %v", chunk.ChunkID, vt.VideoID, err)
		case summary == "":
			log.Printf("chunk %d of %s has no key content, skipping", chunk.ChunkID, vt.VideoID)
		default:
			summaries = append(summaries, core.SummaryRecord{ChunkID: chunk.ChunkID, Summary: summary})
			previousSummary = summary
		}

		now := time.Now()
		if now.Sub(lastLog) > 10*time.Second || idx == len(vt.Chunks)-1 {
			elapsed := now.Sub(startTime)
			avgPerChunk := elapsed / time.Duration(idx+1)
			remaining := avgPerChunk * time.Duration(len(vt.Chunks)-idx-1)
			log.Printf("%s: %d/%d chunks, elapsed %s, ETA %dm %ds",
				vt.VideoID, idx+1, len(vt.Chunks), elapsed.Round(time.Second),
				int(remaining.Minutes()), int(remaining.Seconds())%60)
			lastLog = now
		}
	}

	return core.SummaryBundle{VideoID: vt.VideoID, Summaries: summaries}
}

// summarizeChunk returns the generated summary, or "" when the service
// reported nothing worth keeping (sentinel or empty chunk), or an error
// after the retry budget is spent. Transport and retryable-status errors
// are retried with backoff; anything else fails the chunk immediately.
func (s *Summarizer) summarizeChunk(ctx context.Context, chunk core.Chunk, previousSummary string) (string, error) {
	transcriptText := labeledTranscript(chunk)
	if strings.TrimSpace(transcriptText) == "" {
		return "", nil
	}
	transcriptText = trimToTokens(transcriptText, s.opts.MaxInputTokens)

	contextInfo := noPriorContext
	if previousSummary != "" {
		contextInfo = "Previous summary context:\n" + previousSummary
	}
	prompt := fmt.Sprintf(promptTemplate, core.FormatTimestamp(chunk.StartTime), contextInfo, transcriptText)

	var lastErr error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		summary, err := s.requestSummary(ctx, prompt)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if !s.isRetryable(err) {
			return "", err
		}
		if attempt < s.opts.Retries {
			log.Printf("retrying chunk %d (attempt %d/%d): %v", chunk.ChunkID, attempt, s.opts.Retries, err)
			time.Sleep(s.backoff(attempt))
		}
	}
	return "", fmt.Errorf("exhausted %d attempts: %w", s.opts.Retries, lastErr)
}

func (s *Summarizer) requestSummary(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: s.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: s.opts.MaxOutputTokens,
	}

	resp, err := s.client.CreateChatCompletion(reqCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errShapeResponse
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.Contains(summary, NoContentSentinel) {
		return "", nil
	}
	return summary, nil
}

// isRetryable classifies a request failure. API errors are retried only
// when their HTTP status is in the configured allow-list; errors without a
// status (connection failures, timeouts) are always retryable. A response
// with no choices is a permanent shape error.
func (s *Summarizer) isRetryable(err error) bool {
	if errors.Is(err, errShapeResponse) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return s.retryable[apiErr.HTTPStatusCode]
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return s.retryable[reqErr.HTTPStatusCode]
	}
	return true
}

// labeledTranscript renders a chunk as one "[HH:MM:SS] text" line per entry.
func labeledTranscript(chunk core.Chunk) string {
	var b strings.Builder
	for i, entry := range chunk.Transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		label := entry.Timestamp
		if label == "" {
			label = core.FormatTimestamp(entry.Start)
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(entry.Text)
	}
	return b.String()
}

// trimToTokens keeps the first maxTokens whitespace-separated words.
func trimToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := strings.Fields(text)
	if len(tokens) <= maxTokens {
		return text
	}
	log.Printf("transcript exceeds token limit, trimming to %d tokens", maxTokens)
	return strings.Join(tokens[:maxTokens], " ")
}
