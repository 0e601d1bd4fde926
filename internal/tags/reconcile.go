package tags

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"linkmind/internal/domain"
	"linkmind/internal/plan"
)

// Input carries everything one reconciliation run needs. Vocabulary must be
// a snapshot read immediately before the call, so tags created by other
// in-flight runs are visible and never duplicated.
type Input struct {
	UserID int64

	// Suggested are raw tag names from the AI collaborator: possibly
	// duplicated, mixed case, with stray whitespace.
	Suggested []string

	// ManualTagIDs are the user's own selections on the link. They are
	// preserved verbatim in the result, regardless of quota state.
	ManualTagIDs []string

	Vocabulary []domain.Tag
	Plan       domain.Plan
}

// Result is the outcome of reconciling suggestions against the vocabulary.
type Result struct {
	// TagIDs is the final set for the link: manual ids, existing matches,
	// and newly created tags, deduplicated.
	TagIDs []string

	// Created lists the tags created during this run.
	Created []domain.Tag

	// Skipped counts suggestions dropped because the plan had no headroom
	// left, for caller-level user notification.
	Skipped int
}

// Creator is the slice of the vocabulary store reconciliation needs.
type Creator interface {
	Create(ctx context.Context, userID int64, name string, provenance domain.Provenance) (domain.Tag, error)
}

// Engine maps suggested tag names onto existing or newly created tag
// identities. Re-running with the same suggestions against the updated
// vocabulary creates nothing new: the normalized lookup resolves them all.
type Engine struct {
	store Creator
	log   logrus.FieldLogger
}

// NewEngine creates a reconciliation engine over the vocabulary store.
func NewEngine(store Creator, logger logrus.FieldLogger) *Engine {
	return &Engine{
		store: store,
		log:   logger.WithField("component", "reconciler"),
	}
}

// Reconcile applies suggestions to the vocabulary. It never fails as a
// whole: quota pressure truncates creations, and an individual creation
// failure drops that one suggestion. Manual selections always survive.
func (e *Engine) Reconcile(ctx context.Context, in Input) Result {
	log := e.log.WithField("user_id", in.UserID)

	var existingIDs []string
	var toCreate []string
	seen := make(map[string]bool)

	for _, raw := range in.Suggested {
		name := domain.NormalizeTagName(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if tag, ok := FindByNormalizedName(in.Vocabulary, raw); ok {
			existingIDs = append(existingIDs, tag.ID)
			continue
		}
		// Preserve original casing (trimmed) for creation.
		toCreate = append(toCreate, strings.TrimSpace(raw))
	}

	skipped := 0
	headroom := plan.RemainingTagSlots(in.Plan, len(in.Vocabulary))
	if headroom != domain.Unlimited && len(toCreate) > headroom {
		skipped = len(toCreate) - headroom
		toCreate = toCreate[:headroom]
		log.WithFields(logrus.Fields{
			"skipped":  skipped,
			"headroom": headroom,
		}).Warn("Tag suggestions truncated by plan limit")
	}

	var created []domain.Tag
	for _, name := range toCreate {
		tag, err := e.store.Create(ctx, in.UserID, name, domain.ProvenanceAI)
		if err != nil {
			// Soft failure: drop this suggestion, keep going.
			log.WithError(err).WithField("name", name).Warn("Tag creation failed, suggestion dropped")
			continue
		}
		created = append(created, tag)
	}

	final := make([]string, 0, len(in.ManualTagIDs)+len(existingIDs)+len(created))
	added := make(map[string]bool)
	appendID := func(id string) {
		if !added[id] {
			added[id] = true
			final = append(final, id)
		}
	}
	for _, id := range in.ManualTagIDs {
		appendID(id)
	}
	for _, id := range existingIDs {
		appendID(id)
	}
	for _, tag := range created {
		appendID(tag.ID)
	}

	log.WithFields(logrus.Fields{
		"existing": len(existingIDs),
		"created":  len(created),
		"skipped":  skipped,
	}).Info("Reconciliation finished")

	return Result{TagIDs: final, Created: created, Skipped: skipped}
}
