package slack

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// urlPattern matches http/https URLs in message body text. Slack wraps
// URLs in angle brackets; those are stripped during normalization, not
// here, so the raw match may still carry them.
var urlPattern = regexp.MustCompile(`https?://\S+`)

var urlWrapping = strings.NewReplacer("<", "", ">", "")

// ExtractLinks returns the candidate URLs found in a single message:
// body-text matches first, then attachment from_url values. Nothing is
// deduplicated at this stage and malformed or missing fields degrade to
// an empty result, never an error.
func ExtractLinks(msg slack.Message) []string {
	urls := urlPattern.FindAllString(msg.Text, -1)
	for _, att := range msg.Attachments {
		if att.FromURL != "" {
			urls = append(urls, att.FromURL)
		}
	}
	return urls
}

// NormalizeURL strips the angle-bracket wrapping Slack puts around
// links in message text.
func NormalizeURL(raw string) string {
	return urlWrapping.Replace(raw)
}

// messageTime converts Slack's fractional-second ts token into a
// whole-millisecond instant.
func messageTime(ts string) (time.Time, bool) {
	seconds, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(seconds * 1000)), true
}

// messageID prefers the client-generated message id and falls back to
// the raw ts token. The fallback is best-effort: it is not guaranteed
// globally unique across all time.
func messageID(msg slack.Message) string {
	if msg.ClientMsgID != "" {
		return msg.ClientMsgID
	}
	return msg.Timestamp
}
