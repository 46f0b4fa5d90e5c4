package storage

import (
	"context"
	"errors"

	"linkfeed/internal/domain"
)

// ErrNotFound is returned when a lookup matches no stored record.
var ErrNotFound = errors.New("item not found")

// Repository defines the interface for the durable store: two document
// collections (links and articles) with their vote/comment state. This
// allows us to swap storage implementations without changing the
// services that use it.
type Repository interface {
	// InsertLink stores a new link, assigns its durable id and returns
	// the stored record. If a link with the same source message id
	// already exists, the existing record is returned instead; at most
	// one stored link per source message id.
	InsertLink(ctx context.Context, link domain.Link) (*domain.Link, error)

	// FindLinkByID retrieves a link by its durable id.
	FindLinkByID(ctx context.Context, id string) (*domain.Link, error)

	// FindLinkByMessageID retrieves a link by its source message id.
	FindLinkByMessageID(ctx context.Context, messageID string) (*domain.Link, error)

	// UpdateLink replaces a stored link identified by its durable id.
	UpdateLink(ctx context.Context, link domain.Link) error

	// ListLinks retrieves all stored links, newest first.
	ListLinks(ctx context.Context) ([]domain.Link, error)

	// UpsertArticle stores an article keyed by its full-article URL,
	// assigning a durable id on first insert and preserving existing
	// vote/comment state on subsequent upserts.
	UpsertArticle(ctx context.Context, article domain.Article) (*domain.Article, error)

	// FindArticleByID retrieves an article by its durable id.
	FindArticleByID(ctx context.Context, id string) (*domain.Article, error)

	// UpdateArticle replaces a stored article identified by its durable id.
	UpdateArticle(ctx context.Context, article domain.Article) error

	// ListArticles retrieves all stored articles, newest first.
	ListArticles(ctx context.Context) ([]domain.Article, error)

	// ResetAllVotes zeroes the vote state on every link and article and
	// returns the number of records touched.
	ResetAllVotes(ctx context.Context) (int, error)

	// Close gracefully shuts down the repository.
	Close() error
}
