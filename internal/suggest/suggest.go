// Package suggest defines the AI tag-suggestion collaborator: given page
// metadata, it proposes topical tag names for a link.
package suggest

import (
	"context"
	"errors"

	"linkmind/internal/domain"
	"linkmind/internal/metadata"
)

// ErrResourceExhausted marks the quota class of provider failure (rate or
// budget limits on the AI backend). Callers distinguish it from transient
// errors: it is not retryable and surfaces to the user.
var ErrResourceExhausted = errors.New("ai provider resource exhausted")

// Suggestion is the result of one AI call.
type Suggestion struct {
	// Tags are the proposed tag names, as returned by the model. May
	// contain duplicates, mixed case, and stray whitespace; the
	// reconciliation engine normalizes them.
	Tags []string

	// FromCache reports whether the answer was served from the client's
	// memo instead of a live call.
	FromCache bool

	// TokensUsed and Cost are resource accounting for the call. Zero when
	// FromCache is true.
	TokensUsed int
	Cost       float64
}

// Suggester produces candidate tags for a link from its metadata.
type Suggester interface {
	Suggest(ctx context.Context, md metadata.Metadata, userID int64, plan domain.Plan) (Suggestion, error)
}
