// Package pipeline drives the per-link tagging run: metadata fetch, AI
// suggestion, reconciliation against the user's vocabulary, and convergence
// of the link's lifecycle status, with live progress in the Registry.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"linkmind/internal/domain"
	"linkmind/internal/metadata"
	"linkmind/internal/plan"
	"linkmind/internal/retry"
	"linkmind/internal/storage"
	"linkmind/internal/suggest"
	"linkmind/internal/tags"
)

// Progress fractions published to the registry as a run advances.
const (
	progressStarted   = 0.1
	progressFetching  = 0.3
	progressFetched   = 0.6
	progressSuggested = 0.8
)

// Vocabulary is the slice of the tag store the runner needs.
type Vocabulary interface {
	Vocabulary(ctx context.Context, userID int64) ([]domain.Tag, error)
	Count(ctx context.Context, userID int64) (int, error)
}

// Reconciler maps suggested tag names onto tag identities.
type Reconciler interface {
	Reconcile(ctx context.Context, in tags.Input) tags.Result
}

// Request identifies one tagging run.
type Request struct {
	UserID int64
	LinkID string
	Plan   domain.Plan

	// ManualTagIDs are tag ids the user picked at save time. They survive
	// the run verbatim, whatever happens.
	ManualTagIDs []string
}

// Outcome is what the caller observes. Status mirrors the link's final
// persisted state; StatusPending means the run failed softly and the link
// was left (or restored) untouched. Nothing escapes the runner as an error.
type Outcome struct {
	Status domain.Status

	// SkippedTags counts AI suggestions dropped for lack of plan headroom,
	// for a one-shot user notification.
	SkippedTags int
}

// Runner executes tagging runs. Runs for different links are independent;
// preventing re-entry for a link already in the registry is the caller's
// job.
type Runner struct {
	repo      storage.Repository
	fetcher   metadata.Fetcher
	cache     *metadata.Cache
	suggester suggest.Suggester
	vocab     Vocabulary
	engine    Reconciler
	registry  *Registry
	retryCfg  retry.Config
	log       logrus.FieldLogger
}

// NewRunner wires a pipeline runner.
func NewRunner(
	repo storage.Repository,
	fetcher metadata.Fetcher,
	cache *metadata.Cache,
	suggester suggest.Suggester,
	vocab Vocabulary,
	engine Reconciler,
	registry *Registry,
	logger logrus.FieldLogger,
) *Runner {
	return &Runner{
		repo:      repo,
		fetcher:   fetcher,
		cache:     cache,
		suggester: suggester,
		vocab:     vocab,
		engine:    engine,
		registry:  registry,
		retryCfg:  retry.DefaultConfig(),
		log:       logger.WithField("component", "pipeline"),
	}
}

// Registry exposes the runner's progress table to the UI layer.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Process runs the tagging pipeline for one link to a terminal outcome.
func (r *Runner) Process(ctx context.Context, req Request) Outcome {
	log := r.log.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"link_id": req.LinkID,
	})

	// Pre-flight guard: with zero tag headroom and no manual selections,
	// AI suggestions are the only tagging path and none of them could be
	// applied. Abort before touching any external service; the link stays
	// exactly as it was and never enters the registry.
	tagCount, err := r.vocab.Count(ctx, req.UserID)
	if err != nil {
		log.WithError(err).Warn("Could not read tag count, run aborted")
		return Outcome{Status: domain.StatusPending}
	}
	if plan.RemainingTagSlots(req.Plan, tagCount) == 0 && len(req.ManualTagIDs) == 0 {
		log.Info("No tag headroom and no manual tags, run not started")
		return Outcome{Status: domain.StatusNeedsAction}
	}

	link, err := r.repo.GetLink(ctx, req.UserID, req.LinkID)
	if err != nil {
		log.WithError(err).Warn("Could not load link, run aborted")
		return Outcome{Status: domain.StatusPending}
	}
	prevStatus := link.Status

	r.registry.Begin(req.LinkID, progressStarted)
	defer r.registry.Finish(req.LinkID)

	link.Status = domain.StatusProcessing
	if err := r.repo.SaveLink(ctx, link); err != nil {
		log.WithError(err).Warn("Could not mark link processing, run aborted")
		return Outcome{Status: prevStatus}
	}

	outcome, err := r.run(ctx, req, link, log)
	if err != nil {
		return r.absorbFailure(ctx, req, prevStatus, err, log)
	}
	return outcome
}

// run executes steps 3-6: fetch, suggest, reconcile, persist. Any returned
// error is classified by the caller; it never escapes the orchestration
// boundary.
func (r *Runner) run(ctx context.Context, req Request, link domain.Link, log logrus.FieldLogger) (Outcome, error) {
	r.registry.Advance(req.LinkID, progressFetching)
	md, cacheHit := r.fetchMetadata(ctx, req.UserID, link.URL, log)
	r.registry.Advance(req.LinkID, progressFetched)

	suggestion, err := r.suggest(ctx, md, req)
	if err != nil {
		return Outcome{}, err
	}
	r.registry.Advance(req.LinkID, progressSuggested)

	// Manual selections are the pre-selected ids plus whatever was already
	// on the link before the run.
	manual := append(append([]string(nil), req.ManualTagIDs...), link.TagIDs...)

	// Snapshot the vocabulary now, not earlier: tags created by other
	// in-flight runs must be visible so they resolve as existing matches
	// instead of duplicates.
	vocab, err := r.vocab.Vocabulary(ctx, req.UserID)
	if err != nil {
		return Outcome{}, err
	}

	result := r.engine.Reconcile(ctx, tags.Input{
		UserID:       req.UserID,
		Suggested:    suggestion.Tags,
		ManualTagIDs: manual,
		Vocabulary:   vocab,
		Plan:         req.Plan,
	})

	// Quota pressure that left the link with no tags at all is surfaced as
	// needing manual action rather than a hollow completion.
	status := domain.StatusCompleted
	if len(result.TagIDs) == 0 && result.Skipped > 0 {
		status = domain.StatusNeedsAction
	}

	// Re-read before the final write: the user may have deleted or edited
	// the link while the run was suspended on an external call.
	current, err := r.repo.GetLink(ctx, req.UserID, req.LinkID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("Link deleted during run, result discarded")
			return Outcome{Status: domain.StatusPending, SkippedTags: result.Skipped}, nil
		}
		return Outcome{}, err
	}

	current.Status = status
	current.TagIDs = result.TagIDs
	current.Error = nil
	current.Analysis = &domain.Analysis{
		SuggestedTags: suggestion.Tags,
		CacheHit:      cacheHit || suggestion.FromCache,
		TokensUsed:    suggestion.TokensUsed,
		Cost:          suggestion.Cost,
	}
	if current.Title == "" {
		current.Title = md.Title
	}
	if current.Description == "" {
		current.Description = md.Description
	}

	if err := r.repo.SaveLink(ctx, current); err != nil {
		return Outcome{}, err
	}

	log.WithFields(logrus.Fields{
		"status":  status,
		"tags":    len(result.TagIDs),
		"skipped": result.Skipped,
	}).Info("Tagging run finished")

	return Outcome{Status: status, SkippedTags: result.Skipped}, nil
}

// fetchMetadata resolves page metadata through the cache. A failed fetch is
// never fatal: the hostname stands in for the title.
func (r *Runner) fetchMetadata(ctx context.Context, userID int64, pageURL string, log logrus.FieldLogger) (metadata.Metadata, bool) {
	if md, ok := r.cache.Get(userID, pageURL); ok {
		return md, true
	}

	var md metadata.Metadata
	err := retry.Do(ctx, r.retryCfg, func() error {
		var ferr error
		md, ferr = r.fetcher.Fetch(ctx, pageURL)
		return ferr
	})
	if err != nil {
		log.WithError(err).Warn("Metadata fetch failed, falling back to hostname title")
		return metadata.Metadata{
			Title:  metadata.FallbackTitle(pageURL),
			Domain: metadata.FallbackTitle(pageURL),
		}, false
	}

	r.cache.Put(userID, pageURL, md)
	return md, false
}

// suggest calls the AI collaborator, retrying transient failures only.
// Resource exhaustion passes through untouched for classification.
func (r *Runner) suggest(ctx context.Context, md metadata.Metadata, req Request) (suggest.Suggestion, error) {
	var s suggest.Suggestion
	cfg := r.retryCfg
	cfg.IsRetryable = func(err error) bool {
		return !errors.Is(err, suggest.ErrResourceExhausted) && retry.IsTransient(err)
	}
	err := retry.Do(ctx, cfg, func() error {
		var serr error
		s, serr = r.suggester.Suggest(ctx, md, req.UserID, req.Plan)
		return serr
	})
	return s, err
}

// absorbFailure applies the error taxonomy: AI resource exhaustion persists
// a structured error state; everything else restores the pre-run status.
// The registry entry is removed by the deferred Finish either way.
func (r *Runner) absorbFailure(ctx context.Context, req Request, prevStatus domain.Status, runErr error, log logrus.FieldLogger) Outcome {
	current, err := r.repo.GetLink(ctx, req.UserID, req.LinkID)
	if err != nil {
		// Deleted mid-run, or unreadable: nothing to restore.
		log.WithError(runErr).Info("Run failed and link is gone, nothing to restore")
		return Outcome{Status: domain.StatusPending}
	}

	if errors.Is(runErr, suggest.ErrResourceExhausted) {
		current.Status = domain.StatusError
		current.Error = &domain.ProcessingError{
			Code:      "ai_resource_exhausted",
			Message:   runErr.Error(),
			Timestamp: time.Now(),
		}
		if err := r.repo.SaveLink(ctx, current); err != nil {
			log.WithError(err).Error("Could not persist error state")
		}
		log.WithError(runErr).Warn("AI provider exhausted, link marked errored")
		return Outcome{Status: domain.StatusError}
	}

	// Transient/other: non-destructive. Status returns to its pre-run
	// value; tags and metadata stay as they were.
	current.Status = prevStatus
	if err := r.repo.SaveLink(ctx, current); err != nil {
		log.WithError(err).Error("Could not restore link status")
	}
	log.WithError(runErr).Warn("Run failed, link restored for manual retry")
	return Outcome{Status: prevStatus}
}
