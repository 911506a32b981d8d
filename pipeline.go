package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"channelSummarize/core"
	"channelSummarize/processors"
	"channelSummarize/storage"
)

func runCollect(ctx context.Context, cfg *Config) error {
	collector, err := processors.NewCollector(ctx, cfg.YouTubeAPIKey, cfg.ChannelID, cfg.MinVideoSeconds, cfg.DataDir)
	if err != nil {
		return err
	}
	return collector.Run(ctx)
}

func runTranscripts(ctx context.Context, cfg *Config) error {
	queuePath := filepath.Join(cfg.DataDir, "video_queue.json")
	var queue []core.QueuedVideo
	if err := core.ReadJSON(queuePath, &queue); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("no video queue at %s, nothing to fetch", queuePath)
			return nil
		}
		return err
	}

	fetcher := processors.NewTranscriptFetcher(cfg.TranscriptDir, cfg.ChunkTokens, cfg.MinEntrySeconds)
	return fetcher.Run(ctx, queue)
}

func runSummarize(ctx context.Context, cfg *Config) error {
	ledger, err := storage.LoadLedger(cfg.LedgerPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	summarizer := processors.NewSummarizer(client, processors.SummarizerOptions{
		Model:                cfg.ChatModel,
		MaxInputTokens:       cfg.MaxInputTokens,
		MaxOutputTokens:      cfg.MaxOutputTokens,
		RequestTimeout:       time.Duration(cfg.RequestTimeoutSec) * time.Second,
		Retries:              cfg.Retries,
		RetryableStatusCodes: cfg.RetryableStatusCodes,
	}, processors.ExponentialBackoff)

	return summarizeAll(ctx, cfg, ledger, summarizer, storage.NewSummaryStore(storeOptions(cfg)))
}

// summarizeAll is the resumable core: scan the transcript directory, skip
// videos the ledger already marks done, and drive the chunk summarizer
// over the rest. A video is marked done only after its bundle is durably
// on disk, so an interrupted run redoes at most the in-flight video.
func summarizeAll(ctx context.Context, cfg *Config, ledger *storage.Ledger, summarizer *processors.Summarizer, store storage.SummaryStore) error {
	files, err := os.ReadDir(cfg.TranscriptDir)
	if err != nil {
		return fmt.Errorf("scan transcript dir: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		path := filepath.Join(cfg.TranscriptDir, file.Name())

		var vt core.VideoTranscript
		if err := core.ReadJSON(path, &vt); err != nil {
			log.Printf("skipping %s: %v", file.Name(), err)
			continue
		}
		if vt.VideoID == "" {
			log.Printf("skipping %s (missing video_id)", file.Name())
			continue
		}
		if ledger.IsDone(vt.VideoID) {
			log.Printf("skipping %s (already processed)", vt.VideoID)
			continue
		}
		if len(vt.Chunks) == 0 {
			log.Printf("skipping %s (nothing to summarize)", vt.VideoID)
			continue
		}
		log.Printf("loaded %d chunks from %s", len(vt.Chunks), file.Name())

		bundle := summarizer.SummarizeVideo(ctx, vt)

		outPath := filepath.Join(cfg.OutputDir, vt.VideoID+".json")
		if err := core.WriteJSON(outPath, bundle); err != nil {
			log.Printf("failed to save summary for %s, continuing to next video: %v", vt.VideoID, err)
			continue
		}

		if n := store.Upsert(vt, bundle); n > 0 {
			log.Printf("indexed %d summaries for %s", n, vt.VideoID)
		}

		if err := ledger.MarkDone(vt.VideoID); err != nil {
			// Resume state is now inconsistent with the output dir until
			// the next successful run; the video will be re-summarized.
			log.Printf("CRITICAL: failed to update ledger for %s: %v", vt.VideoID, err)
			continue
		}
	}
	return nil
}

func storeOptions(cfg *Config) storage.StoreOptions {
	return storage.StoreOptions{
		Backend:        cfg.Store,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		PostgresURL:    cfg.PostgresURL,
	}
}

// rehydrateMemoryIndex reloads finished bundles from the output dir so a
// fresh process can answer searches with the in-memory backend. Transcript
// files supply the chunk time ranges when still present.
func rehydrateMemoryIndex(store *storage.MemorySummaryStore, cfg *Config) (int, error) {
	files, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan output dir: %w", err)
	}

	total := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		var bundle core.SummaryBundle
		if err := core.ReadJSON(filepath.Join(cfg.OutputDir, file.Name()), &bundle); err != nil {
			log.Printf("skipping %s: %v", file.Name(), err)
			continue
		}
		if bundle.VideoID == "" || len(bundle.Summaries) == 0 {
			continue
		}

		vt := core.VideoTranscript{VideoID: bundle.VideoID}
		transcriptPath := filepath.Join(cfg.TranscriptDir, bundle.VideoID+".json")
		if err := core.ReadJSON(transcriptPath, &vt); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("no chunk times for %s: %v", bundle.VideoID, err)
		}
		total += store.Upsert(vt, bundle)
	}
	return total, nil
}

func runSearch(cfg *Config, query string, topK int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search query required")
	}

	store := storage.NewSummaryStore(storeOptions(cfg))
	if mem, ok := store.(*storage.MemorySummaryStore); ok {
		n, err := rehydrateMemoryIndex(mem, cfg)
		if err != nil {
			return err
		}
		log.Printf("in-memory index rebuilt from %d stored summaries; set STORE=pgvector or STORE=milvus for a persistent index", n)
	}

	hits := store.Search(query, topK)
	if len(hits) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, hit := range hits {
		fmt.Printf("%s %s-%s (score %.3f)\n%s\n\n",
			hit.VideoID,
			core.FormatTimestamp(hit.Start), core.FormatTimestamp(hit.End),
			hit.Score, hit.Summary)
	}
	return nil
}
