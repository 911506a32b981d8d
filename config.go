package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	ChatModel      string `json:"chat_model"`
	EmbeddingModel string `json:"embedding_model"`
	YouTubeAPIKey  string `json:"youtube_api_key"`
	ChannelID      string `json:"channel_id"`

	DataDir       string `json:"data_dir"`
	TranscriptDir string `json:"transcript_dir"`
	OutputDir     string `json:"output_dir"`
	LedgerPath    string `json:"ledger_path"`
	PostgresURL   string `json:"postgres_url"`

	// Store names the search index backend: "pgvector", "milvus", or
	// anything else for the in-memory fallback.
	Store string `json:"store"`

	ChunkTokens       int     `json:"chunk_tokens"`
	MaxInputTokens    int     `json:"max_input_tokens"`
	MaxOutputTokens   int     `json:"max_output_tokens"`
	RequestTimeoutSec int     `json:"request_timeout_sec"`
	Retries           int     `json:"retries"`
	MinVideoSeconds   int     `json:"min_video_seconds"`
	MinEntrySeconds   float64 `json:"min_entry_seconds"`

	// HTTP statuses from the generation service that are worth retrying.
	// Anything else is treated as a permanent error for that chunk.
	RetryableStatusCodes []int `json:"retryable_status_codes"`
}

func loadConfig() (*Config, error) {
	config := defaultConfig()

	// Try to load from config.json first
	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}

	// Override with environment variables if present
	applyEnvOverrides(config)
	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:              "https://api.deepseek.com",
		ChatModel:            "deepseek-chat",
		EmbeddingModel:       "text-embedding-3-small",
		DataDir:              "data",
		ChunkTokens:          20000,
		MaxInputTokens:       55000,
		MaxOutputTokens:      8192,
		RequestTimeoutSec:    60,
		Retries:              5,
		MinVideoSeconds:      600,
		MinEntrySeconds:      3.0,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

func applyEnvOverrides(config *Config) {
	if key := os.Getenv("API_KEY"); key != "" {
		config.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		config.APIKey = key
	}
	if url := os.Getenv("BASE_URL"); url != "" {
		config.BaseURL = url
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		config.ChatModel = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.EmbeddingModel = model
	}
	if key := os.Getenv("YOUTUBE_API_KEY"); key != "" {
		config.YouTubeAPIKey = key
	}
	if id := os.Getenv("CHANNEL_ID"); id != "" {
		config.ChannelID = id
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if dir := os.Getenv("TRANSCRIPT_DIR"); dir != "" {
		config.TranscriptDir = dir
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		config.OutputDir = dir
	}
	if path := os.Getenv("LEDGER_PATH"); path != "" {
		config.LedgerPath = path
	}
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		config.PostgresURL = url
	}
	if store := os.Getenv("STORE"); store != "" {
		config.Store = store
	}
	if v := envInt("CHUNK_TOKENS"); v != 0 {
		config.ChunkTokens = v
	}
	if v := envInt("MAX_INPUT_TOKENS"); v != 0 {
		config.MaxInputTokens = v
	}
	if v := envInt("MAX_OUTPUT_TOKENS"); v != 0 {
		config.MaxOutputTokens = v
	}
	if v := envInt("REQUEST_TIMEOUT"); v != 0 {
		config.RequestTimeoutSec = v
	}
	if v := envInt("RETRIES"); v != 0 {
		config.Retries = v
	}
	if v := envInt("MIN_VIDEO_SECONDS"); v != 0 {
		config.MinVideoSeconds = v
	}
	if v := os.Getenv("MIN_ENTRY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.MinEntrySeconds = f
		}
	}
	if codes := os.Getenv("RETRYABLE_STATUS_CODES"); codes != "" {
		parsed := []int{}
		for _, part := range strings.Split(codes, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				parsed = append(parsed, n)
			}
		}
		if len(parsed) > 0 {
			config.RetryableStatusCodes = parsed
		}
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Validate checks the fields a stage depends on. Missing required values
// are fatal at startup, before any work begins.
func (c *Config) Validate(stage string) error {
	var errors []string

	switch stage {
	case "collect":
		if strings.TrimSpace(c.YouTubeAPIKey) == "" {
			errors = append(errors, "YouTube API key is required")
		}
		if strings.TrimSpace(c.ChannelID) == "" {
			errors = append(errors, "channel ID is required")
		}
		if strings.TrimSpace(c.DataDir) == "" {
			errors = append(errors, "data dir is required")
		}
	case "transcripts":
		if strings.TrimSpace(c.DataDir) == "" {
			errors = append(errors, "data dir is required")
		}
		if strings.TrimSpace(c.TranscriptDir) == "" {
			errors = append(errors, "transcript dir is required")
		}
		if c.ChunkTokens <= 0 {
			errors = append(errors, "chunk token budget must be positive")
		}
	case "summarize":
		if strings.TrimSpace(c.APIKey) == "" {
			errors = append(errors, "API key is required")
		}
		if strings.TrimSpace(c.BaseURL) == "" {
			errors = append(errors, "base URL is required")
		}
		if strings.TrimSpace(c.TranscriptDir) == "" {
			errors = append(errors, "transcript dir is required")
		}
		if strings.TrimSpace(c.OutputDir) == "" {
			errors = append(errors, "output dir is required")
		}
		if strings.TrimSpace(c.LedgerPath) == "" {
			errors = append(errors, "ledger path is required")
		}
		if c.Retries <= 0 {
			errors = append(errors, "retry ceiling must be positive")
		}
	case "search":
		// Only the vector backends call the embedding endpoint; the
		// in-memory fallback answers searches without a key.
		if storeNeedsAPIKey(c.Store) && strings.TrimSpace(c.APIKey) == "" {
			errors = append(errors, "API key is required for the "+c.Store+" store backend")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed for %s: %s", stage, strings.Join(errors, "; "))
	}
	return nil
}

func storeNeedsAPIKey(backend string) bool {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "pgvector", "milvus":
		return true
	}
	return false
}
