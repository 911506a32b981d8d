package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

const usage = `usage: channelSummarize <command> [args]

commands:
  collect          discover new long-form videos on the configured channel
  transcripts      fetch, clean and chunk transcripts for queued videos
  summarize        run the resumable chunk summarization over the transcript dir
  search <query>   query the summary index
  all              collect, transcripts and summarize in sequence
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	// .env is optional; explicit environment wins either way.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	stages := []string{command}
	if command == "all" {
		stages = []string{"collect", "transcripts", "summarize"}
	}
	for _, stage := range stages {
		if err := cfg.Validate(stage); err != nil {
			log.Fatalf("%v", err)
		}
	}

	for _, stage := range stages {
		var err error
		switch stage {
		case "collect":
			err = runCollect(ctx, cfg)
		case "transcripts":
			err = runTranscripts(ctx, cfg)
		case "summarize":
			err = runSummarize(ctx, cfg)
		case "search":
			query := ""
			if len(os.Args) > 2 {
				query = os.Args[2]
			}
			err = runSearch(cfg, query, 5)
		default:
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		if err != nil {
			log.Fatalf("%s failed: %v", stage, err)
		}
	}
}
