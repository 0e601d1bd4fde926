// Package tags owns the user's tag vocabulary and the reconciliation of
// AI-suggested tag names against it.
package tags

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkmind/internal/domain"
	"linkmind/internal/storage"
)

// FindByNormalizedName looks a name up in a vocabulary snapshot using the
// single normalization rule. Pure; no live lookup race.
func FindByNormalizedName(vocab []domain.Tag, name string) (domain.Tag, bool) {
	normalized := domain.NormalizeTagName(name)
	for _, t := range vocab {
		if domain.NormalizeTagName(t.Name) == normalized {
			return t, true
		}
	}
	return domain.Tag{}, false
}

// Store is the persistence-facing wrapper around the tag vocabulary.
type Store struct {
	repo storage.Repository
	log  logrus.FieldLogger
}

// NewStore creates a vocabulary store over the given repository.
func NewStore(repo storage.Repository, logger logrus.FieldLogger) *Store {
	return &Store{
		repo: repo,
		log:  logger.WithField("component", "tag_store"),
	}
}

// Vocabulary returns a snapshot of the user's tags.
func (s *Store) Vocabulary(ctx context.Context, userID int64) ([]domain.Tag, error) {
	tagList, err := s.repo.GetTagsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary for user %d: %w", userID, err)
	}
	return tagList, nil
}

// Count returns the size of the user's vocabulary.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountTagsByUser(ctx, userID)
}

// Create persists a new tag with the given name, preserving its original
// casing. Callers are responsible for the normalized-uniqueness check
// against a vocabulary snapshot.
func (s *Store) Create(ctx context.Context, userID int64, name string, provenance domain.Provenance) (domain.Tag, error) {
	tag := domain.Tag{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Provenance: provenance,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.SaveTag(ctx, tag); err != nil {
		return domain.Tag{}, fmt.Errorf("create tag %q: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"tag_id":     tag.ID,
		"name":       name,
		"provenance": provenance,
	}).Info("Tag created")
	return tag, nil
}

// Delete removes a tag from the vocabulary. Links keep any dangling
// reference; readers render those as unknown tags.
func (s *Store) Delete(ctx context.Context, userID int64, tagID string) error {
	if err := s.repo.DeleteTag(ctx, userID, tagID); err != nil {
		return fmt.Errorf("delete tag %s: %w", tagID, err)
	}
	return nil
}
