package domain

import "time"

// Sender is the resolved identity of the user who shared a link.
// Name falls back to the display name, then "Unknown" when the
// identity lookup fails.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Channel identifies the source channel a link was shared in.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Votes holds the vote state of a feed item. A user ID appears in at
// most one of UpVoters/DownVoters at a time, and Up/Down always equal
// the respective voter-set sizes.
type Votes struct {
	Up         int      `json:"up"`
	Down       int      `json:"down"`
	UpVoters   []string `json:"upVoters"`
	DownVoters []string `json:"downVoters"`
}

// Comment is a single user comment on a feed item. Comments are
// append-only; insertion order is display order.
type Comment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Link is the canonical record of one URL shared in the source channel.
type Link struct {
	// ID is the durable store identifier. Empty for ephemeral records
	// that have not (or could not) been persisted yet.
	ID string `json:"id,omitempty"`

	// URL is the normalized (de-wrapped) absolute URL.
	URL string `json:"url"`

	Sender  Sender  `json:"sender"`
	Channel Channel `json:"channel"`

	// Timestamp is the send time of the source message.
	Timestamp time.Time `json:"timestamp"`

	// SourceMessageID is the upstream message identifier, or the raw
	// send-time token when no client-generated id exists. It is the
	// dedup and upsert key: at most one stored Link per id.
	SourceMessageID string `json:"sourceMessageId"`

	Votes    Votes     `json:"votes"`
	Comments []Comment `json:"comments"`
}

// HasVoted reports which voter set, if any, the user currently sits in.
func (v Votes) HasVoted(userID string) (up bool, down bool) {
	for _, id := range v.UpVoters {
		if id == userID {
			up = true
		}
	}
	for _, id := range v.DownVoters {
		if id == userID {
			down = true
		}
	}
	return up, down
}
