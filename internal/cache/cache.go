// Package cache maintains a bounded, rebuildable local snapshot of
// recently scraped links. It is an acceleration structure, not a source
// of truth: it can be rebuilt at any time from a full re-fetch, and
// evicting an entry never touches the durable store.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linkfeed/internal/domain"
)

const (
	// DefaultMaxEntries caps the number of links the cache retains.
	DefaultMaxEntries = 1000

	// overlapMargin is subtracted from the last-seen timestamp when
	// computing an incremental fetch bound, guarding against boundary
	// gaps from clock skew or pagination edges. Re-delivered messages
	// are handled by dedup.
	overlapMargin = 5 * time.Minute

	// incrementalWindow is the widest lookback an incremental fetch
	// uses regardless of cache state.
	incrementalWindow = 3 * time.Hour
)

// Cache is a JSON file holding an ordered, newest-first sequence of
// links. The file is read fully into memory and written fully on every
// update; concurrent writers race last-writer-wins.
type Cache struct {
	path       string
	maxEntries int
	mu         sync.Mutex
	log        logrus.FieldLogger
}

// New creates a Cache over the file at path. maxEntries <= 0 means
// DefaultMaxEntries.
func New(path string, maxEntries int, logger logrus.FieldLogger) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		path:       path,
		maxEntries: maxEntries,
		log:        logger.WithField("component", "cache"),
	}
}

// MaxEntries returns the retention cap.
func (c *Cache) MaxEntries() int {
	return c.maxEntries
}

// Load reads the cached links. A missing file is an empty cache, not an
// error.
func (c *Cache) Load() ([]domain.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", c.path, err)
	}

	var links []domain.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", c.path, err)
	}
	return links, nil
}

// Save writes the full link sequence, truncated to the retention cap.
func (c *Cache) Save(links []domain.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(links) > c.maxEntries {
		links = links[:c.maxEntries]
	}

	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.path, err)
	}

	c.log.WithField("link_count", len(links)).Debug("Cache written")
	return nil
}

// LastSeen returns the newest link timestamp in the cache, truncated to
// whole seconds. The zero time means an empty cache.
func LastSeen(links []domain.Link) time.Time {
	var last time.Time
	for _, l := range links {
		ts := l.Timestamp.Truncate(time.Second)
		if ts.After(last) {
			last = ts
		}
	}
	return last
}

// OldestFetchBound computes how far back an incremental fetch should
// reach: the last-seen timestamp minus the overlap margin, but never
// further back than the incremental window. The overlap only widens the
// fetch; acceptance is still gated strictly by Reconcile.
func OldestFetchBound(links []domain.Link, now time.Time) time.Time {
	floor := now.Add(-incrementalWindow)
	last := LastSeen(links)
	if last.IsZero() {
		return floor
	}
	bound := last.Add(-overlapMargin)
	if bound.Before(floor) {
		return floor
	}
	return bound
}

// Reconcile merges freshly scraped links into the existing cache:
// fresh links strictly newer than the cache's last-seen timestamp go
// first, then the existing entries, deduplicated by source message id
// with the first occurrence winning (a fresh record shadows a stale
// cached one), truncated to maxEntries.
//
// Reconcile is idempotent: with no new upstream activity it returns the
// existing cache unchanged in content and order.
func Reconcile(existing, fresh []domain.Link, maxEntries int) []domain.Link {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	lastSeen := LastSeen(existing)
	merged := make([]domain.Link, 0, len(fresh)+len(existing))
	for _, l := range fresh {
		if l.Timestamp.Truncate(time.Second).After(lastSeen) {
			merged = append(merged, l)
		}
	}
	merged = append(merged, existing...)

	seen := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, l := range merged {
		if _, dup := seen[l.SourceMessageID]; dup {
			continue
		}
		seen[l.SourceMessageID] = struct{}{}
		deduped = append(deduped, l)
	}

	if len(deduped) > maxEntries {
		deduped = deduped[:maxEntries]
	}
	return deduped
}
