package storage

import (
	"context"
	"errors"
	"time"

	"linkmind/internal/domain"
)

// ErrNotFound is returned by point reads when the entity does not exist,
// including when it was deleted while a tagging run was in flight.
var ErrNotFound = errors.New("entity not found")

// Repository defines the interface for data storage operations.
// This allows us to swap storage implementations (e.g., BadgerDB, PostgreSQL)
// without changing the core application logic that uses it.
type Repository interface {
	// SaveLink stores a new link or updates an existing one.
	SaveLink(ctx context.Context, link domain.Link) error

	// GetLink retrieves a single link, or ErrNotFound.
	GetLink(ctx context.Context, userID int64, linkID string) (domain.Link, error)

	// GetLinksByUser retrieves all links saved by a user, newest first.
	GetLinksByUser(ctx context.Context, userID int64) ([]domain.Link, error)

	// DeleteLink removes a link. Deleting a missing link is not an error.
	DeleteLink(ctx context.Context, userID int64, linkID string) error

	// CountLinksByUser returns the user's total saved-link count.
	CountLinksByUser(ctx context.Context, userID int64) (int, error)

	// CountLinksSince returns how many links the user saved at or after
	// the given instant. Used for the daily quota check.
	CountLinksSince(ctx context.Context, userID int64, since time.Time) (int, error)

	// SaveTag stores a new tag or updates an existing one.
	SaveTag(ctx context.Context, tag domain.Tag) error

	// GetTag retrieves a single tag, or ErrNotFound.
	GetTag(ctx context.Context, userID int64, tagID string) (domain.Tag, error)

	// GetTagsByUser retrieves the user's tag vocabulary.
	GetTagsByUser(ctx context.Context, userID int64) ([]domain.Tag, error)

	// DeleteTag removes a tag. Links referencing it keep the dangling id.
	DeleteTag(ctx context.Context, userID int64, tagID string) error

	// CountTagsByUser returns the size of the user's tag vocabulary.
	CountTagsByUser(ctx context.Context, userID int64) (int, error)

	// Close gracefully shuts down the repository connection.
	Close() error
}
