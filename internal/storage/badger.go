package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"linkmind/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

var _ Repository = (*BadgerRepository)(nil)

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

// Key layout:
//   user:{userID}:link:{linkID}
//   user:{userID}:tag:{tagID}

func linkKey(userID int64, linkID string) []byte {
	return []byte(fmt.Sprintf("user:%d:link:%s", userID, linkID))
}

func linkPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("user:%d:link:", userID))
}

func tagKey(userID int64, tagID string) []byte {
	return []byte(fmt.Sprintf("user:%d:tag:%s", userID, tagID))
}

func tagPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("user:%d:tag:", userID))
}

// SaveLink stores or updates a link.
func (r *BadgerRepository) SaveLink(ctx context.Context, link domain.Link) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id": link.UserID,
		"link_id": link.ID,
	})

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	if err := r.setJSON(linkKey(link.UserID, link.ID), link); err != nil {
		log.WithError(err).Error("Failed to save link")
		return fmt.Errorf("failed to save link %s: %w", link.ID, err)
	}
	log.Debug("Link saved")
	return nil
}

// GetLink retrieves a single link by id.
func (r *BadgerRepository) GetLink(ctx context.Context, userID int64, linkID string) (domain.Link, error) {
	var link domain.Link
	err := r.getJSON(linkKey(userID, linkID), &link)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Link{}, ErrNotFound
		}
		return domain.Link{}, fmt.Errorf("failed to get link %s: %w", linkID, err)
	}
	return link, nil
}

// GetLinksByUser retrieves all links for a user, newest first.
func (r *BadgerRepository) GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error) {
	var links []domain.Link

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := linkPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var link domain.Link
				if err := json.Unmarshal(val, &link); err != nil {
					return fmt.Errorf("failed to unmarshal link data for key %s: %w", string(item.Key()), err)
				}
				links = append(links, link)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to retrieve links")
		return nil, fmt.Errorf("failed to get links for user %d: %w", userID, err)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// DeleteLink removes a link. Deleting a missing link succeeds.
func (r *BadgerRepository) DeleteLink(ctx context.Context, userID int64, linkID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(linkKey(userID, linkID))
	})
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"link_id": linkID,
		}).Error("Failed to delete link")
		return fmt.Errorf("failed to delete link %s for user %d: %w", linkID, userID, err)
	}
	return nil
}

// CountLinksByUser returns the user's total link count.
func (r *BadgerRepository) CountLinksByUser(ctx context.Context, userID int64) (int, error) {
	return r.countPrefix(linkPrefix(userID))
}

// CountLinksSince counts links created at or after the given instant.
func (r *BadgerRepository) CountLinksSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := linkPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var link domain.Link
				if err := json.Unmarshal(val, &link); err != nil {
					return err
				}
				if !link.CreatedAt.Before(since) {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count links since %s for user %d: %w", since, userID, err)
	}
	return count, nil
}

// SaveTag stores or updates a tag.
func (r *BadgerRepository) SaveTag(ctx context.Context, tag domain.Tag) error {
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now()
	}
	if err := r.setJSON(tagKey(tag.UserID, tag.ID), tag); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id": tag.UserID,
			"tag_id":  tag.ID,
		}).Error("Failed to save tag")
		return fmt.Errorf("failed to save tag %s: %w", tag.ID, err)
	}
	return nil
}

// GetTag retrieves a single tag by id.
func (r *BadgerRepository) GetTag(ctx context.Context, userID int64, tagID string) (domain.Tag, error) {
	var tag domain.Tag
	err := r.getJSON(tagKey(userID, tagID), &tag)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Tag{}, ErrNotFound
		}
		return domain.Tag{}, fmt.Errorf("failed to get tag %s: %w", tagID, err)
	}
	return tag, nil
}

// GetTagsByUser retrieves the user's tag vocabulary, oldest first, so that
// creation order is stable across reads.
func (r *BadgerRepository) GetTagsByUser(ctx context.Context, userID int64) ([]domain.Tag, error) {
	var tagList []domain.Tag

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := tagPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var tag domain.Tag
				if err := json.Unmarshal(val, &tag); err != nil {
					return fmt.Errorf("failed to unmarshal tag data for key %s: %w", string(item.Key()), err)
				}
				tagList = append(tagList, tag)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to retrieve tags")
		return nil, fmt.Errorf("failed to get tags for user %d: %w", userID, err)
	}

	sort.Slice(tagList, func(i, j int) bool {
		return tagList[i].CreatedAt.Before(tagList[j].CreatedAt)
	})
	return tagList, nil
}

// DeleteTag removes a tag. Links referencing it keep the dangling id; the
// display layer renders those as unknown.
func (r *BadgerRepository) DeleteTag(ctx context.Context, userID int64, tagID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tagKey(userID, tagID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete tag %s for user %d: %w", tagID, userID, err)
	}
	return nil
}

// CountTagsByUser returns the size of the user's vocabulary.
func (r *BadgerRepository) CountTagsByUser(ctx context.Context, userID int64) (int, error) {
	return r.countPrefix(tagPrefix(userID))
}

func (r *BadgerRepository) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

func (r *BadgerRepository) getJSON(key []byte, v any) error {
	return r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (r *BadgerRepository) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count keys under %s: %w", string(prefix), err)
	}
	return count, nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
