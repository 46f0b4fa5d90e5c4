package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfeed/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
// It returns the repository instance and a cleanup function.
func setupTestDB(t *testing.T) (*BadgerRepository, func()) {
	t.Helper()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)
	testLogger.SetLevel(logrus.ErrorLevel)

	repo, err := NewBadgerRepository(t.TempDir(), testLogger)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		err := repo.Close()
		assert.NoError(t, err, "Failed to close test BadgerDB repository")
	}

	return repo, cleanup
}

func testLink(msgID, url string, at time.Time) domain.Link {
	return domain.Link{
		URL:             url,
		SourceMessageID: msgID,
		Timestamp:       at,
		Sender:          domain.Sender{ID: "U1", Name: "Jane Doe"},
		Channel:         domain.Channel{ID: "C123", Name: "marketing"},
	}
}

func TestBadgerRepository_InsertAndFindLink(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	link := testLink("m1", "https://example.com/a", time.Now())

	inserted, err := repo.InsertLink(ctx, link)
	require.NoError(t, err)
	require.NotEmpty(t, inserted.ID, "insert must assign a durable id")
	assert.NotNil(t, inserted.Votes.UpVoters)
	assert.NotNil(t, inserted.Votes.DownVoters)
	assert.NotNil(t, inserted.Comments)
	assert.Zero(t, inserted.Votes.Up)
	assert.Zero(t, inserted.Votes.Down)

	byID, err := repo.FindLinkByID(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, byID.ID)
	assert.Equal(t, "https://example.com/a", byID.URL)

	byMsg, err := repo.FindLinkByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, byMsg.ID)
}

func TestBadgerRepository_InsertDuplicateMessageIDReturnsExisting(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first, err := repo.InsertLink(ctx, testLink("m1", "https://example.com/a", time.Now()))
	require.NoError(t, err)

	// A concurrent incremental run re-inserting the same message id must
	// not create a second record.
	second, err := repo.InsertLink(ctx, testLink("m1", "https://example.com/other", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://example.com/a", second.URL, "the stored record wins")

	links, err := repo.ListLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestBadgerRepository_UpdateLinkPreservesMutations(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	inserted, err := repo.InsertLink(ctx, testLink("m1", "https://example.com/a", time.Now()))
	require.NoError(t, err)

	inserted.Votes.Up = 1
	inserted.Votes.UpVoters = []string{"U7"}
	inserted.Comments = append(inserted.Comments, domain.Comment{ID: "c1", User: "U7", Text: "nice", Timestamp: time.Now()})
	require.NoError(t, repo.UpdateLink(ctx, *inserted))

	got, err := repo.FindLinkByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Votes.Up)
	assert.Equal(t, []string{"U7"}, got.Votes.UpVoters)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "nice", got.Comments[0].Text)
}

func TestBadgerRepository_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.FindLinkByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindLinkByMessageID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdateLink(ctx, domain.Link{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindArticleByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerRepository_ListLinksNewestFirst(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	_, err := repo.InsertLink(ctx, testLink("m1", "https://example.com/old", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = repo.InsertLink(ctx, testLink("m2", "https://example.com/new", now))
	require.NoError(t, err)
	_, err = repo.InsertLink(ctx, testLink("m3", "https://example.com/mid", now.Add(-time.Minute)))
	require.NoError(t, err)

	links, err := repo.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "m2", links[0].SourceMessageID)
	assert.Equal(t, "m3", links[1].SourceMessageID)
	assert.Equal(t, "m1", links[2].SourceMessageID)
}

func TestBadgerRepository_UpsertArticle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	article := domain.Article{
		Title:          "Q3 Growth Levers",
		FullArticleURL: "https://vault.example.com/q3-growth",
		ScrapedAt:      time.Now(),
	}

	first, err := repo.UpsertArticle(ctx, article)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// Mutate vote state, then upsert a refreshed copy of the content.
	first.Votes.Up = 2
	first.Votes.UpVoters = []string{"U1", "U2"}
	require.NoError(t, repo.UpdateArticle(ctx, *first))

	refreshed := article
	refreshed.Title = "Q3 Growth Levers (updated)"
	second, err := repo.UpsertArticle(ctx, refreshed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert by URL must keep the durable id")
	assert.Equal(t, "Q3 Growth Levers (updated)", second.Title)
	assert.Equal(t, 2, second.Votes.Up, "upsert must preserve vote state")
	assert.Equal(t, []string{"U1", "U2"}, second.Votes.UpVoters)
}

func TestBadgerRepository_ResetAllVotes(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	link, err := repo.InsertLink(ctx, testLink("m1", "https://example.com/a", time.Now()))
	require.NoError(t, err)
	link.Votes = domain.Votes{Up: 3, Down: 1, UpVoters: []string{"U1", "U2", "U3"}, DownVoters: []string{"U4"}}
	require.NoError(t, repo.UpdateLink(ctx, *link))

	article, err := repo.UpsertArticle(ctx, domain.Article{Title: "T", FullArticleURL: "https://vault.example.com/t", ScrapedAt: time.Now()})
	require.NoError(t, err)
	article.Votes = domain.Votes{Up: 5, UpVoters: []string{"U1", "U2", "U3", "U4", "U5"}, DownVoters: []string{}}
	require.NoError(t, repo.UpdateArticle(ctx, *article))

	count, err := repo.ResetAllVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	gotLink, err := repo.FindLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Zero(t, gotLink.Votes.Up)
	assert.Zero(t, gotLink.Votes.Down)
	assert.Empty(t, gotLink.Votes.UpVoters)
	assert.Empty(t, gotLink.Votes.DownVoters)

	gotArticle, err := repo.FindArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Zero(t, gotArticle.Votes.Up)
	assert.Empty(t, gotArticle.Votes.UpVoters)
}
