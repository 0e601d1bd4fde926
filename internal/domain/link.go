package domain

import "time"

// Status tracks where a link is in its tagging lifecycle.
type Status string

const (
	// StatusPending means the link is saved but has not been processed yet.
	StatusPending Status = "pending"

	// StatusProcessing means a tagging run is currently in flight.
	StatusProcessing Status = "processing"

	// StatusCompleted means tagging finished and the tag set is final.
	StatusCompleted Status = "completed"

	// StatusNeedsAction means tagging was blocked by a plan limit and the
	// user has to intervene (upgrade or tag by hand). Distinct from
	// StatusPending so the UI can prompt instead of silently retrying.
	StatusNeedsAction Status = "needs_action"

	// StatusError means an external provider failed hard (e.g. the AI
	// backend reported resource exhaustion). Carries a ProcessingError.
	StatusError Status = "error"
)

// ProcessingError is the structured payload attached to a link in StatusError.
type ProcessingError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Analysis records what the tagging run learned about a link.
type Analysis struct {
	// SuggestedTags is the raw tag list returned by the AI collaborator,
	// before reconciliation against the user's vocabulary.
	SuggestedTags []string `json:"suggested_tags,omitempty"`

	// CacheHit reports whether the metadata came from the in-memory cache
	// rather than a live fetch.
	CacheHit bool `json:"cache_hit"`

	// TokensUsed and Cost are resource accounting from the AI call.
	TokensUsed int     `json:"tokens_used"`
	Cost       float64 `json:"cost"`
}

// Link represents a saved URL with its metadata, tags, and lifecycle status.
type Link struct {
	// ID is the opaque unique identifier for the link.
	ID string `json:"id"`

	// UserID identifies the owner. Tags referenced by TagIDs always belong
	// to the same user.
	UserID int64 `json:"user_id"`

	// URL is the saved address.
	URL string `json:"url"`

	// Title and Description come from fetched page metadata, or from the
	// user at save time.
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status Status `json:"status"`

	// TagIDs is the set of Tag identities applied to this link. Order is
	// irrelevant. Ids may dangle after a tag is deleted; readers treat a
	// missing tag as "unknown".
	TagIDs []string `json:"tag_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Read       bool `json:"read"`
	Bookmarked bool `json:"bookmarked"`
	Archived   bool `json:"archived"`
	Priority   int  `json:"priority"`

	// Error is set only while Status == StatusError.
	Error *ProcessingError `json:"error,omitempty"`

	// Analysis is attached after a completed tagging run.
	Analysis *Analysis `json:"analysis,omitempty"`
}

// HasTag reports whether the link already references the given tag id.
func (l *Link) HasTag(id string) bool {
	for _, t := range l.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}
