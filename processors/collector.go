package processors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"channelSummarize/core"
)

// defaultStartDate bounds the first discovery run; later runs resume from
// the recorded last-collected date.
const defaultStartDate = "2025-02-01T00:00:00Z"

type lastCollected struct {
	LastCollectedDate string `json:"last_collected_date"`
}

// Collector discovers long-form videos on a channel through the YouTube
// Data API and appends qualifying IDs to the work queue.
type Collector struct {
	svc             *youtube.Service
	channelID       string
	dataDir         string
	minVideoSeconds int
}

func NewCollector(ctx context.Context, apiKey, channelID string, minVideoSeconds int, dataDir string) (*Collector, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Collector{
		svc:             svc,
		channelID:       channelID,
		dataDir:         dataDir,
		minVideoSeconds: minVideoSeconds,
	}, nil
}

func (c *Collector) queuePath() string     { return filepath.Join(c.dataDir, "video_queue.json") }
func (c *Collector) collectedPath() string { return filepath.Join(c.dataDir, "collected_videos.json") }
func (c *Collector) lastRunPath() string   { return filepath.Join(c.dataDir, "last_collected.json") }

// Run pages through the channel's uploads newer than the last run, filters
// out short videos, and persists the updated queue and bookkeeping files.
func (c *Collector) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	collected := []string{}
	if err := core.ReadJSON(c.collectedPath(), &collected); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	seen := make(map[string]bool, len(collected))
	for _, id := range collected {
		seen[id] = true
	}

	last := lastCollected{LastCollectedDate: defaultStartDate}
	if err := core.ReadJSON(c.lastRunPath(), &last); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if last.LastCollectedDate == "" {
		last.LastCollectedDate = defaultStartDate
	}
	log.Printf("checking videos published after %s", last.LastCollectedDate)

	queue := []core.QueuedVideo{}
	pageToken := ""
	for {
		call := c.svc.Search.List([]string{"id"}).
			ChannelId(c.channelID).
			MaxResults(50).
			Order("date").
			Type("video").
			PublishedAfter(last.LastCollectedDate).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return fmt.Errorf("search videos: %w", err)
		}
		if len(resp.Items) == 0 {
			log.Printf("no videos found, check filters or API settings")
			break
		}

		for _, item := range resp.Items {
			if item.Id == nil || item.Id.VideoId == "" {
				continue
			}
			videoID := item.Id.VideoId
			if seen[videoID] {
				continue
			}

			duration, err := c.videoDuration(ctx, videoID)
			if err != nil {
				log.Printf("failed to fetch details for %s: %v", videoID, err)
				continue
			}
			if duration < c.minVideoSeconds {
				log.Printf("skipping %s (duration %d mins)", videoID, duration/60)
				continue
			}

			log.Printf("qualifying video %s (duration %d mins)", videoID, duration/60)
			queue = append(queue, core.QueuedVideo{VideoID: videoID, VideoIndex: len(queue) + 1})
			collected = append(collected, videoID)
			seen[videoID] = true
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if err := core.WriteJSON(c.queuePath(), queue); err != nil {
		return err
	}
	if err := core.WriteJSON(c.collectedPath(), collected); err != nil {
		return err
	}
	last.LastCollectedDate = time.Now().UTC().Format(time.RFC3339)
	if err := core.WriteJSON(c.lastRunPath(), last); err != nil {
		return err
	}

	log.Printf("found %d new qualifying videos", len(queue))
	return nil
}

func (c *Collector) videoDuration(ctx context.Context, videoID string) (int, error) {
	resp, err := c.svc.Videos.List([]string{"contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil {
		return 0, fmt.Errorf("no content details for %s", videoID)
	}
	return parseISODuration(resp.Items[0].ContentDetails.Duration)
}

// parseISODuration converts the API's ISO-8601 duration (e.g. "PT1H2M3S",
// "P1DT2H") into whole seconds.
func parseISODuration(s string) (int, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid ISO duration %q", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
	}

	total := 0
	parse := func(part string, units map[byte]int) error {
		num := ""
		for i := 0; i < len(part); i++ {
			ch := part[i]
			if ch >= '0' && ch <= '9' {
				num += string(ch)
				continue
			}
			mult, ok := units[ch]
			if !ok || num == "" {
				return fmt.Errorf("invalid ISO duration %q", orig)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return fmt.Errorf("invalid ISO duration %q", orig)
			}
			total += n * mult
			num = ""
		}
		if num != "" {
			return fmt.Errorf("invalid ISO duration %q", orig)
		}
		return nil
	}

	if err := parse(datePart, map[byte]int{'D': 86400, 'W': 604800}); err != nil {
		return 0, err
	}
	if err := parse(timePart, map[byte]int{'H': 3600, 'M': 60, 'S': 1}); err != nil {
		return 0, err
	}
	return total, nil
}
