package cache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfeed/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func linkAt(msgID string, at time.Time) domain.Link {
	return domain.Link{
		URL:             "https://example.com/" + msgID,
		SourceMessageID: msgID,
		Timestamp:       at,
		Sender:          domain.Sender{ID: "U1", Name: "Jane Doe"},
		Channel:         domain.Channel{ID: "C123", Name: "marketing"},
	}
}

func TestCache_LoadMissingFileIsEmpty(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "links.json"), 0, testLogger())

	links, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestCache_SaveAndLoadRoundTrip(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nested", "dir", "links.json"), 0, testLogger())
	now := time.Now().Truncate(time.Millisecond)

	saved := []domain.Link{linkAt("m1", now), linkAt("m2", now.Add(-time.Minute))}
	require.NoError(t, c.Save(saved))

	loaded, err := c.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "m1", loaded[0].SourceMessageID)
	assert.Equal(t, "m2", loaded[1].SourceMessageID)
	assert.Equal(t, saved[0].URL, loaded[0].URL)
}

func TestCache_SaveTruncatesToCap(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "links.json"), 3, testLogger())
	now := time.Now()

	var links []domain.Link
	for i := 0; i < 10; i++ {
		links = append(links, linkAt(fmt.Sprintf("m%d", i), now.Add(-time.Duration(i)*time.Minute)))
	}
	require.NoError(t, c.Save(links))

	loaded, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestLastSeen(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	links := []domain.Link{
		linkAt("m1", now.Add(-time.Hour)),
		linkAt("m2", now),
		linkAt("m3", now.Add(-time.Minute)),
	}
	assert.Equal(t, now, LastSeen(links))
	assert.True(t, LastSeen(nil).IsZero())
}

func TestOldestFetchBound(t *testing.T) {
	now := time.Now()

	t.Run("empty cache uses window floor", func(t *testing.T) {
		assert.Equal(t, now.Add(-3*time.Hour), OldestFetchBound(nil, now))
	})

	t.Run("recent cache uses last seen minus overlap", func(t *testing.T) {
		lastSeen := now.Add(-30 * time.Minute).Truncate(time.Second)
		links := []domain.Link{linkAt("m1", lastSeen)}
		assert.Equal(t, lastSeen.Add(-5*time.Minute), OldestFetchBound(links, now))
	})

	t.Run("stale cache is floored at the window", func(t *testing.T) {
		links := []domain.Link{linkAt("m1", now.Add(-48*time.Hour))}
		assert.Equal(t, now.Add(-3*time.Hour), OldestFetchBound(links, now))
	})
}

func TestReconcile_EmptyCachePlusThreeFresh(t *testing.T) {
	now := time.Now()
	fresh := []domain.Link{
		linkAt("m3", now),
		linkAt("m2", now.Add(-time.Minute)),
		linkAt("m1", now.Add(-2*time.Minute)),
	}

	out := Reconcile(nil, fresh, 1000)
	require.Len(t, out, 3)
	assert.Equal(t, "m3", out[0].SourceMessageID)
	assert.Equal(t, "m2", out[1].SourceMessageID)
	assert.Equal(t, "m1", out[2].SourceMessageID)
}

func TestReconcile_NoveltyGateIsStrict(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	existing := []domain.Link{linkAt("m1", now)}

	// Same whole-second timestamp as the last-seen entry: re-delivered
	// by the overlap window, rejected by the novelty gate.
	redelivered := linkAt("m1-again", now.Add(500 * time.Millisecond))
	newer := linkAt("m2", now.Add(2*time.Second))

	out := Reconcile(existing, []domain.Link{newer, redelivered}, 1000)
	require.Len(t, out, 2)
	assert.Equal(t, "m2", out[0].SourceMessageID)
	assert.Equal(t, "m1", out[1].SourceMessageID)
}

func TestReconcile_DedupByMessageID_FreshShadowsStale(t *testing.T) {
	now := time.Now()
	existing := []domain.Link{linkAt("m1", now.Add(-time.Hour))}

	freshCopy := linkAt("m1", now)
	freshCopy.URL = "https://example.com/updated"

	out := Reconcile(existing, []domain.Link{freshCopy}, 1000)
	require.Len(t, out, 1)
	assert.Equal(t, "https://example.com/updated", out[0].URL)
}

func TestReconcile_Idempotent(t *testing.T) {
	now := time.Now()
	existing := []domain.Link{
		linkAt("m3", now),
		linkAt("m2", now.Add(-time.Minute)),
		linkAt("m1", now.Add(-2*time.Minute)),
	}

	once := Reconcile(existing, nil, 1000)
	twice := Reconcile(once, nil, 1000)
	assert.Equal(t, existing, once)
	assert.Equal(t, once, twice)
}

func TestReconcile_CacheBound(t *testing.T) {
	now := time.Now()

	existing := make([]domain.Link, 0, 1000)
	for i := 0; i < 1000; i++ {
		existing = append(existing, linkAt(fmt.Sprintf("old-%d", i), now.Add(-time.Duration(i+10)*time.Minute)))
	}

	fresh := make([]domain.Link, 0, 5)
	for i := 0; i < 5; i++ {
		fresh = append(fresh, linkAt(fmt.Sprintf("new-%d", i), now.Add(-time.Duration(i)*time.Second)))
	}

	out := Reconcile(existing, fresh, 1000)
	require.Len(t, out, 1000)

	// The 5 fresh entries lead the sequence.
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("new-%d", i), out[i].SourceMessageID)
	}
	// The 5 oldest prior entries fell off the end.
	assert.Equal(t, "old-994", out[999].SourceMessageID)
}
