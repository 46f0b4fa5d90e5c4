package slack

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"linkfeed/internal/domain"
)

const (
	// DefaultMaxAgeDays is the scrape window when none is given.
	DefaultMaxAgeDays = 7
	// DefaultPageSize is the history page size when none is given.
	DefaultPageSize = 200
)

// ScrapeOptions controls one channel scrape.
type ScrapeOptions struct {
	// MaxAgeDays bounds the scrape window relative to now.
	// Zero means DefaultMaxAgeDays.
	MaxAgeDays int

	// Oldest, when set, overrides the MaxAgeDays cutoff with an explicit
	// instant. Incremental runs use this to fetch a short overlap window.
	Oldest time.Time

	// PageSize is the history page size. Zero means DefaultPageSize.
	PageSize int

	// SenderFilter, when non-empty, keeps only messages whose resolved
	// sender matches by display or real name.
	SenderFilter string
}

// Scraper orchestrates the fetch → extract → normalize pipeline for one
// channel and deduplicates the result by normalized URL.
type Scraper struct {
	client  *Client
	channel domain.Channel
	log     logrus.FieldLogger
}

// NewScraper creates a Scraper bound to a single channel.
func NewScraper(client *Client, channel domain.Channel, logger logrus.FieldLogger) *Scraper {
	return &Scraper{
		client:  client,
		channel: channel,
		log:     logger.WithField("component", "scraper"),
	}
}

// Scrape fetches all messages in the window, extracts and normalizes
// their links, and returns one Link per distinct normalized URL.
//
// A fetch failure propagates as a scrape failure. An identity-lookup
// failure for a single author degrades to a sentinel identity instead
// of aborting the run. When the same URL appears in more than one
// message, the record processed last wins (the output keeps the
// position of the first occurrence).
func (s *Scraper) Scrape(ctx context.Context, opts ScrapeOptions) ([]domain.Link, error) {
	maxAgeDays := opts.MaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	cutoff := opts.Oldest
	if cutoff.IsZero() {
		cutoff = time.Now().AddDate(0, 0, -maxAgeDays)
	}

	log := s.log.WithField("channel", s.channel.ID)

	messages, err := s.client.FetchHistory(ctx, s.channel.ID, cutoff, pageSize)
	if err != nil {
		return nil, err
	}

	// One identity lookup per distinct author within a run.
	senders := map[string]resolvedSender{}

	var links []domain.Link
	byURL := map[string]int{}

	for _, msg := range messages {
		if msg.User == "" || msg.Timestamp == "" {
			continue
		}
		sentAt, ok := messageTime(msg.Timestamp)
		if !ok {
			continue
		}
		// Exact re-check of the window, independent of what the
		// upstream paging returned.
		if sentAt.Before(cutoff) {
			continue
		}

		urls := ExtractLinks(msg)
		if len(urls) == 0 {
			continue
		}

		sender, cached := senders[msg.User]
		if !cached {
			sender = s.resolveSender(ctx, msg.User)
			senders[msg.User] = sender
		}
		if opts.SenderFilter != "" && !senderMatches(sender, opts.SenderFilter) {
			continue
		}

		for _, raw := range urls {
			link := domain.Link{
				URL:             NormalizeURL(raw),
				Sender:          sender.Sender,
				Channel:         s.channel,
				Timestamp:       sentAt,
				SourceMessageID: messageID(msg),
				Comments:        []domain.Comment{},
			}
			if i, seen := byURL[link.URL]; seen {
				links[i] = link
			} else {
				byURL[link.URL] = len(links)
				links = append(links, link)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"messages": len(messages),
		"links":    len(links),
	}).Info("Channel scrape complete")
	return links, nil
}

// resolvedSender carries the canonical sender plus the raw names the
// optional sender filter matches against.
type resolvedSender struct {
	Sender      domain.Sender
	DisplayName string
	RealName    string
}

// resolveSender looks up an author's identity, substituting a sentinel
// identity when the lookup fails.
func (s *Scraper) resolveSender(ctx context.Context, userID string) resolvedSender {
	user, err := s.client.UserInfo(ctx, userID)
	if err != nil || user == nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Identity lookup failed, using sentinel")
		return resolvedSender{Sender: domain.Sender{ID: userID, Name: "Unknown"}}
	}
	name := user.RealName
	if name == "" {
		name = user.Name
	}
	if name == "" {
		name = "Unknown"
	}
	return resolvedSender{
		Sender: domain.Sender{
			ID:     userID,
			Name:   name,
			Avatar: user.Profile.Image72,
		},
		DisplayName: user.Name,
		RealName:    user.RealName,
	}
}

func senderMatches(sender resolvedSender, filter string) bool {
	return strings.EqualFold(sender.DisplayName, filter) ||
		strings.EqualFold(sender.RealName, filter) ||
		strings.EqualFold(sender.Sender.Name, filter)
}
