package domain

import (
	"strings"
	"time"
)

// Provenance records how a tag entered the user's vocabulary.
type Provenance string

const (
	ProvenanceManual      Provenance = "manual"
	ProvenanceAI          Provenance = "ai"
	ProvenanceRecommended Provenance = "recommended"
)

// Tag is a named label owned by one user. Within a user's vocabulary no two
// tags share a name under NormalizeTagName comparison.
type Tag struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NormalizeTagName is the single normalization rule used everywhere tag names
// are compared: trim surrounding whitespace, lowercase the rest. Original
// casing is preserved on the stored Tag itself.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
