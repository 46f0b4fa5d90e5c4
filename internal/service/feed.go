package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"linkfeed/internal/cache"
	"linkfeed/internal/domain"
	"linkfeed/internal/slack"
	"linkfeed/internal/storage"
)

// Scraper is the channel-scrape dependency of the feed service.
// *slack.Scraper satisfies it; tests substitute a fake.
type Scraper interface {
	Scrape(ctx context.Context, opts slack.ScrapeOptions) ([]domain.Link, error)
}

// QueryFilter narrows the link feed. Zero values mean "no constraint".
type QueryFilter struct {
	From    time.Time
	To      time.Time
	Sender  string
	Keyword string
}

// Matches reports whether a link passes the filter. Keyword matching is
// a case-insensitive substring test against the URL and every comment.
func (f QueryFilter) Matches(link domain.Link) bool {
	if !f.From.IsZero() && link.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && link.Timestamp.After(f.To) {
		return false
	}
	if f.Sender != "" && !strings.EqualFold(link.Sender.Name, f.Sender) {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		if strings.Contains(strings.ToLower(link.URL), kw) {
			return true
		}
		for _, c := range link.Comments {
			if strings.Contains(strings.ToLower(c.Text), kw) {
				return true
			}
		}
		return false
	}
	return true
}

// FeedService reconciles scraped and cached links against the durable
// store and serves the queryable feed. The store may be absent (nil
// repository) or failing; the service then degrades to non-persistent
// pass-through rather than erroring.
type FeedService struct {
	scraper Scraper
	repo    storage.Repository
	cache   *cache.Cache
	log     logrus.FieldLogger

	// MaxAgeDays and PageSize are passed through to every scrape.
	// Zero values fall back to the scraper defaults.
	MaxAgeDays int
	PageSize   int
}

// NewFeedService creates a FeedService. repo may be nil when the store
// is unavailable.
func NewFeedService(scraper Scraper, repo storage.Repository, c *cache.Cache, logger logrus.FieldLogger) *FeedService {
	return &FeedService{
		scraper: scraper,
		repo:    repo,
		cache:   c,
		log:     logger.WithField("component", "feed_service"),
	}
}

// Sync reconciles a batch of links against the durable store. For each
// link, an already-stored record with the same source message id wins,
// preserving any vote/comment mutations applied server-side. New links
// are inserted with zeroed vote state and a fresh durable id.
//
// A single-item store failure does not abort the batch: that item is
// returned ephemeral, without a durable id. With the store wholly
// unavailable the input is returned unmodified.
func (s *FeedService) Sync(ctx context.Context, links []domain.Link) []domain.Link {
	if s.repo == nil {
		return links
	}

	out := make([]domain.Link, 0, len(links))
	for _, link := range links {
		stored, err := s.repo.FindLinkByMessageID(ctx, link.SourceMessageID)
		if err == nil {
			out = append(out, *stored)
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).WithField("message_id", link.SourceMessageID).Warn("Store lookup failed, returning ephemeral record")
			out = append(out, link)
			continue
		}

		inserted, err := s.repo.InsertLink(ctx, link)
		if err != nil {
			s.log.WithError(err).WithField("message_id", link.SourceMessageID).Warn("Store insert failed, returning ephemeral record")
			out = append(out, link)
			continue
		}
		out = append(out, *inserted)
	}
	return out
}

// Live scrapes the channel, syncs the result through the store and
// returns it. When the scrape fails the cache file is served instead,
// so the endpoint always returns something.
func (s *FeedService) Live(ctx context.Context) ([]domain.Link, error) {
	links, err := s.scraper.Scrape(ctx, slack.ScrapeOptions{
		MaxAgeDays: s.MaxAgeDays,
		PageSize:   s.PageSize,
	})
	if err != nil {
		s.log.WithError(err).Warn("Live scrape failed, falling back to cache")
		cached, cacheErr := s.cache.Load()
		if cacheErr != nil {
			return nil, err
		}
		return s.Sync(ctx, cached), nil
	}
	return s.Sync(ctx, links), nil
}

// Query returns stored links matching the filter, newest first. With
// the store unavailable the cache file is used instead.
func (s *FeedService) Query(ctx context.Context, filter QueryFilter) ([]domain.Link, error) {
	var (
		links []domain.Link
		err   error
	)
	if s.repo != nil {
		links, err = s.repo.ListLinks(ctx)
	}
	if s.repo == nil || err != nil {
		if err != nil {
			s.log.WithError(err).Warn("Store list failed, falling back to cache")
		}
		links, err = s.cache.Load()
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.Link, 0, len(links))
	for _, link := range links {
		if filter.Matches(link) {
			out = append(out, link)
		}
	}
	return out, nil
}

// IncrementalSync performs one incremental cache update: scrape the
// overlap window, reconcile into the cache file, and sync the fresh
// records into the store. Used by the cron schedule and the cachesync
// CLI.
func (s *FeedService) IncrementalSync(ctx context.Context) error {
	existing, err := s.cache.Load()
	if err != nil {
		return err
	}

	oldest := cache.OldestFetchBound(existing, time.Now())
	fresh, err := s.scraper.Scrape(ctx, slack.ScrapeOptions{Oldest: oldest, PageSize: s.PageSize})
	if err != nil {
		return err
	}

	merged := cache.Reconcile(existing, fresh, s.cache.MaxEntries())
	if err := s.cache.Save(merged); err != nil {
		return err
	}

	s.Sync(ctx, fresh)
	s.log.WithFields(logrus.Fields{
		"fresh":  len(fresh),
		"cached": len(merged),
	}).Info("Incremental sync complete")
	return nil
}
