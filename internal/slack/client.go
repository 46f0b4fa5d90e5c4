package slack

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// maxFetchMessages is the hard safety cap on the total number of
// messages one history walk may accumulate across pages.
const maxFetchMessages = 50000

// API is the subset of the Slack Web API the ingestion pipeline uses.
// *slack.Client satisfies it; tests substitute a fake.
type API interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Client wraps the Slack Web API with paginated history fetching and
// identity lookup. It is constructed once and passed to the components
// that need it; there is no ambient global client.
type Client struct {
	api API
	log logrus.FieldLogger
}

// NewClient creates a Client authenticated with the given bot token.
func NewClient(token string, logger logrus.FieldLogger) *Client {
	return &Client{
		api: slack.New(token),
		log: logger.WithField("component", "slack_client"),
	}
}

// NewClientWithAPI creates a Client over an existing API implementation.
func NewClientWithAPI(api API, logger logrus.FieldLogger) *Client {
	return &Client{
		api: api,
		log: logger.WithField("component", "slack_client"),
	}
}

// FetchHistory walks the cursor-based history API and returns all
// messages in channelID sent after oldest. Pages are requested with up
// to pageSize messages each, following the next-page cursor until the
// upstream reports no more pages or the safety cap is reached.
//
// The upstream window semantics may admit boundary overlap; callers
// re-filter by exact timestamp before use. A failed page request is not
// retried here and propagates as a fetch failure.
func (c *Client) FetchHistory(ctx context.Context, channelID string, oldest time.Time, pageSize int) ([]slack.Message, error) {
	log := c.log.WithFields(logrus.Fields{
		"channel": channelID,
		"oldest":  oldest.Unix(),
	})

	var messages []slack.Message
	cursor := ""
	pages := 0

	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Limit:     pageSize,
			Oldest:    strconv.FormatInt(oldest.Unix(), 10),
			Cursor:    cursor,
		})
		if err != nil {
			log.WithError(err).Error("Failed to fetch history page")
			return nil, fmt.Errorf("failed to fetch history for channel %s: %w", channelID, err)
		}

		messages = append(messages, resp.Messages...)
		pages++

		if len(messages) >= maxFetchMessages {
			log.WithField("message_count", len(messages)).Warn("History fetch hit safety cap, stopping")
			messages = messages[:maxFetchMessages]
			break
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}

	log.WithFields(logrus.Fields{
		"pages":         pages,
		"message_count": len(messages),
	}).Debug("History fetch complete")
	return messages, nil
}

// UserInfo looks up the identity of a Slack user. Callers are expected
// to tolerate lookup failure by substituting a sentinel identity rather
// than aborting a whole scrape.
func (c *Client) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	return user, nil
}
