package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"linkfeed/internal/domain"
	"linkfeed/internal/service"
	"linkfeed/internal/storage"
)

// Handler holds the HTTP-facing dependencies.
type Handler struct {
	feed  *service.FeedService
	votes *service.VoteService
	repo  storage.Repository
	log   logrus.FieldLogger
}

// NewHandler creates the HTTP handler set.
func NewHandler(feed *service.FeedService, votes *service.VoteService, repo storage.Repository, logger logrus.FieldLogger) *Handler {
	return &Handler{
		feed:  feed,
		votes: votes,
		repo:  repo,
		log:   logger.WithField("component", "http_handler"),
	}
}

type voteRequest struct {
	ItemID    string `json:"itemId"`
	VoteType  string `json:"voteType"`
	IsArticle bool   `json:"isArticle"`
	UserID    string `json:"userId"`
}

type commentRequest struct {
	ItemID    string `json:"itemId"`
	User      string `json:"user"`
	Text      string `json:"text"`
	IsArticle bool   `json:"isArticle"`
}

// QueryLinks serves the filtered link feed.
// GET /api/links?from=&to=&sender=&keyword=
func (h *Handler) QueryLinks(c *gin.Context) {
	filter := service.QueryFilter{
		Sender:  c.Query("sender"),
		Keyword: c.Query("keyword"),
	}

	var ok bool
	if filter.From, ok = parseDateParam(c.Query("from")); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' date"})
		return
	}
	if filter.To, ok = parseDateParam(c.Query("to")); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' date"})
		return
	}

	links, err := h.feed.Query(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// LiveLinks scrapes the channel and serves the synced result, falling
// back to the cache when the scrape fails.
// GET /api/links/live
func (h *Handler) LiveLinks(c *gin.Context) {
	links, err := h.feed.Live(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Live links request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch channel links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// Vote applies one vote toggle transition.
// POST /api/vote
func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ItemID == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parameters"})
		return
	}
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	votes, err := h.votes.Vote(c.Request.Context(), req.ItemID, service.VoteType(req.VoteType), req.IsArticle, req.UserID)
	if err != nil {
		h.respondMutationError(c, err, "failed to record vote")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "votes": votes})
}

// Comment appends a comment to an item.
// POST /api/comments
func (h *Handler) Comment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ItemID == "" || req.User == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	comment, err := h.votes.Comment(c.Request.Context(), req.ItemID, req.User, req.Text, req.IsArticle)
	if err != nil {
		h.respondMutationError(c, err, "failed to add comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comment": comment})
}

// ListArticles serves the stored articles, newest first.
// GET /api/articles
func (h *Handler) ListArticles(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusOK, gin.H{"articles": []domain.Article{}})
		return
	}
	articles, err := h.repo.ListArticles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// IngestArticles upserts a batch of already-shaped article records
// produced by the external article source.
// PUT /api/articles
func (h *Handler) IngestArticles(c *gin.Context) {
	var articles []domain.Article
	if err := c.ShouldBindJSON(&articles); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	upserted := 0
	for _, article := range articles {
		if article.FullArticleURL == "" {
			continue
		}
		if article.ScrapedAt.IsZero() {
			article.ScrapedAt = time.Now()
		}
		if _, err := h.repo.UpsertArticle(c.Request.Context(), article); err != nil {
			h.log.WithError(err).WithField("url", article.FullArticleURL).Warn("Article upsert failed")
			continue
		}
		upserted++
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "upserted": upserted})
}

// ResetVotes zeroes all vote state on both collections.
// POST /api/admin/reset-votes
func (h *Handler) ResetVotes(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	count, err := h.repo.ResetAllVotes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset votes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reset": count})
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondMutationError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, service.ErrInvalidVote), errors.Is(err, service.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// parseDateParam accepts RFC 3339 instants or plain dates.
func parseDateParam(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
