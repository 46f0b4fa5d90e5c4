package domain

import "time"

// Article is a scraped marketing-content piece. Articles are produced
// by an external collaborator and consumed here read-only except for
// their vote/comment state, which follows the same shape as Link.
type Article struct {
	ID             string    `json:"id,omitempty"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	FullArticleURL string    `json:"fullArticleUrl"`
	SummaryURL     string    `json:"summaryUrl,omitempty"`
	Image          string    `json:"image,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	ScrapedAt      time.Time `json:"scrapedAt"`

	Votes    Votes     `json:"votes"`
	Comments []Comment `json:"comments"`
}
