package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"linkfeed/internal/cache"
	"linkfeed/internal/config"
	"linkfeed/internal/domain"
	"linkfeed/internal/slack"
)

// fullWindowDays is the scrape window for a full cache rebuild.
const fullWindowDays = 5 * 365

// Usage: cachesync [full|incremental]
func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	client := slack.NewClient(cfg.SlackBotToken, log)
	channel := domain.Channel{ID: cfg.SlackChannelID, Name: cfg.SlackChannelName}
	scraper := slack.NewScraper(client, channel, log)
	linkCache := cache.New(cfg.CachePath, cfg.MaxCacheEntries, log)

	mode := "incremental"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx := context.Background()
	switch mode {
	case "full":
		err = fullUpdate(ctx, scraper, linkCache, cfg.PageSize, log)
	case "incremental":
		err = incrementalUpdate(ctx, scraper, linkCache, cfg.PageSize, log)
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q (want full or incremental)\n", mode)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Errorf("Cache %s update failed", mode)
		os.Exit(1)
	}
}

// fullUpdate rebuilds the cache from a full re-fetch of the channel.
func fullUpdate(ctx context.Context, scraper *slack.Scraper, c *cache.Cache, pageSize int, log logrus.FieldLogger) error {
	links, err := scraper.Scrape(ctx, slack.ScrapeOptions{
		MaxAgeDays: fullWindowDays,
		PageSize:   pageSize,
	})
	if err != nil {
		return err
	}
	if err := c.Save(links); err != nil {
		return err
	}
	log.WithField("link_count", len(links)).Info("Full cache update complete")
	return nil
}

// incrementalUpdate fetches the recent overlap window and reconciles it
// into the existing cache.
func incrementalUpdate(ctx context.Context, scraper *slack.Scraper, c *cache.Cache, pageSize int, log logrus.FieldLogger) error {
	existing, err := c.Load()
	if err != nil {
		return err
	}

	oldest := cache.OldestFetchBound(existing, time.Now())
	log.WithField("oldest", oldest).Info("Fetching new messages")

	fresh, err := scraper.Scrape(ctx, slack.ScrapeOptions{
		Oldest:   oldest,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}

	merged := cache.Reconcile(existing, fresh, c.MaxEntries())
	if len(merged) == len(existing) && len(fresh) == 0 {
		log.Info("No new links found")
		return nil
	}
	if err := c.Save(merged); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"fresh":  len(fresh),
		"cached": len(merged),
	}).Info("Incremental cache update complete")
	return nil
}
