package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkfeed/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
//
// Key layout:
//
//	link:{id}          link document
//	linkmsg:{msgID}    source-message-id index -> link id
//	article:{id}       article document
//	articleurl:{url}   article URL index -> article id
//
// The index keys are written in the same transaction as the documents,
// which is what enforces the at-most-one-link-per-message-id invariant
// under concurrent duplicate inserts.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath and returns a
// repository over it.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the underlying database.
func (r *BadgerRepository) Close() error {
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

func linkKey(id string) []byte        { return []byte("link:" + id) }
func linkMsgKey(msgID string) []byte  { return []byte("linkmsg:" + msgID) }
func articleKey(id string) []byte     { return []byte("article:" + id) }
func articleURLKey(url string) []byte { return []byte("articleurl:" + url) }

// InsertLink stores a new link with a fresh durable id. When a link
// with the same source message id already exists, that record is
// returned unchanged instead of inserting a duplicate.
func (r *BadgerRepository) InsertLink(ctx context.Context, link domain.Link) (*domain.Link, error) {
	log := r.log.WithFields(logrus.Fields{
		"url":        link.URL,
		"message_id": link.SourceMessageID,
	})

	var stored domain.Link
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(linkMsgKey(link.SourceMessageID))
		if err == nil {
			id, err := copyValue(item)
			if err != nil {
				return err
			}
			return getJSON(txn, linkKey(string(id)), &stored)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		link.ID = uuid.NewString()
		if link.Votes.UpVoters == nil {
			link.Votes.UpVoters = []string{}
		}
		if link.Votes.DownVoters == nil {
			link.Votes.DownVoters = []string{}
		}
		if link.Comments == nil {
			link.Comments = []domain.Comment{}
		}
		if err := setJSON(txn, linkKey(link.ID), link); err != nil {
			return err
		}
		if err := txn.Set(linkMsgKey(link.SourceMessageID), []byte(link.ID)); err != nil {
			return err
		}
		stored = link
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to insert link")
		return nil, fmt.Errorf("failed to insert link %s: %w", link.SourceMessageID, err)
	}
	return &stored, nil
}

// FindLinkByID retrieves a link by its durable id.
func (r *BadgerRepository) FindLinkByID(ctx context.Context, id string) (*domain.Link, error) {
	var link domain.Link
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, linkKey(id), &link)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link %s: %w", id, err)
	}
	return &link, nil
}

// FindLinkByMessageID retrieves a link by its source message id.
func (r *BadgerRepository) FindLinkByMessageID(ctx context.Context, messageID string) (*domain.Link, error) {
	var link domain.Link
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(linkMsgKey(messageID))
		if err != nil {
			return err
		}
		id, err := copyValue(item)
		if err != nil {
			return err
		}
		return getJSON(txn, linkKey(string(id)), &link)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link by message id %s: %w", messageID, err)
	}
	return &link, nil
}

// UpdateLink replaces a stored link. The link must already exist.
func (r *BadgerRepository) UpdateLink(ctx context.Context, link domain.Link) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(linkKey(link.ID)); err != nil {
			return err
		}
		return setJSON(txn, linkKey(link.ID), link)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update link %s: %w", link.ID, err)
	}
	return nil
}

// ListLinks retrieves all stored links, newest first.
func (r *BadgerRepository) ListLinks(ctx context.Context) ([]domain.Link, error) {
	var links []domain.Link
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("link:"), func(val []byte) error {
			var link domain.Link
			if err := json.Unmarshal(val, &link); err != nil {
				return fmt.Errorf("failed to unmarshal link: %w", err)
			}
			links = append(links, link)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].Timestamp.After(links[j].Timestamp)
	})
	return links, nil
}

// UpsertArticle stores an article keyed by its full-article URL. The
// first insert assigns a durable id and zeroed vote state; later
// upserts refresh the content fields but preserve id, votes and
// comments.
func (r *BadgerRepository) UpsertArticle(ctx context.Context, article domain.Article) (*domain.Article, error) {
	var stored domain.Article
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(articleURLKey(article.FullArticleURL))
		if err == nil {
			id, err := copyValue(item)
			if err != nil {
				return err
			}
			var existing domain.Article
			if err := getJSON(txn, articleKey(string(id)), &existing); err != nil {
				return err
			}
			article.ID = existing.ID
			article.Votes = existing.Votes
			article.Comments = existing.Comments
			stored = article
			return setJSON(txn, articleKey(article.ID), article)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		article.ID = uuid.NewString()
		article.Votes = domain.Votes{UpVoters: []string{}, DownVoters: []string{}}
		if article.Comments == nil {
			article.Comments = []domain.Comment{}
		}
		if err := setJSON(txn, articleKey(article.ID), article); err != nil {
			return err
		}
		if err := txn.Set(articleURLKey(article.FullArticleURL), []byte(article.ID)); err != nil {
			return err
		}
		stored = article
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert article %s: %w", article.FullArticleURL, err)
	}
	return &stored, nil
}

// FindArticleByID retrieves an article by its durable id.
func (r *BadgerRepository) FindArticleByID(ctx context.Context, id string) (*domain.Article, error) {
	var article domain.Article
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, articleKey(id), &article)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return &article, nil
}

// UpdateArticle replaces a stored article. The article must already exist.
func (r *BadgerRepository) UpdateArticle(ctx context.Context, article domain.Article) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(articleKey(article.ID)); err != nil {
			return err
		}
		return setJSON(txn, articleKey(article.ID), article)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update article %s: %w", article.ID, err)
	}
	return nil
}

// ListArticles retrieves all stored articles, newest first.
func (r *BadgerRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	var articles []domain.Article
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("article:"), func(val []byte) error {
			var article domain.Article
			if err := json.Unmarshal(val, &article); err != nil {
				return fmt.Errorf("failed to unmarshal article: %w", err)
			}
			articles = append(articles, article)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].ScrapedAt.After(articles[j].ScrapedAt)
	})
	return articles, nil
}

// ResetAllVotes zeroes the vote state on every stored link and article.
func (r *BadgerRepository) ResetAllVotes(ctx context.Context) (int, error) {
	count := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		zero := domain.Votes{UpVoters: []string{}, DownVoters: []string{}}

		// Collect first, write after the iterators are closed.
		updates := map[string][]byte{}

		err := scanPrefixKeys(txn, []byte("link:"), func(key, val []byte) error {
			var link domain.Link
			if err := json.Unmarshal(val, &link); err != nil {
				return err
			}
			link.Votes = zero
			data, err := json.Marshal(link)
			if err != nil {
				return err
			}
			updates[string(key)] = data
			return nil
		})
		if err != nil {
			return err
		}

		err = scanPrefixKeys(txn, []byte("article:"), func(key, val []byte) error {
			var article domain.Article
			if err := json.Unmarshal(val, &article); err != nil {
				return err
			}
			article.Votes = zero
			data, err := json.Marshal(article)
			if err != nil {
				return err
			}
			updates[string(key)] = data
			return nil
		})
		if err != nil {
			return err
		}

		for key, data := range updates {
			if err := txn.SetEntry(badger.NewEntry([]byte(key), data)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset votes: %w", err)
	}
	r.log.WithField("count", count).Info("Vote state reset")
	return count, nil
}

func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", string(key), err)
	}
	return txn.SetEntry(badger.NewEntry(key, data))
}

func copyValue(item *badger.Item) ([]byte, error) {
	return item.ValueCopy(nil)
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	return scanPrefixKeys(txn, prefix, func(_, val []byte) error {
		return fn(val)
	})
}

func scanPrefixKeys(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Errorf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warningf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.logger.Infof(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.logger.Debugf(f, v...) }
