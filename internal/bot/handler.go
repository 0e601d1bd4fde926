package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkmind/internal/config"
	"linkmind/internal/domain"
	"linkmind/internal/pipeline"
	"linkmind/internal/plan"
	"linkmind/internal/storage"
	"linkmind/internal/tags"
)

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot      *tgbot.Bot
	cfg      config.Config
	repo     storage.Repository
	runner   *pipeline.Runner
	tagStore *tags.Store
	userPlan domain.Plan
	log      logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, repo storage.Repository, runner *pipeline.Runner, tagStore *tags.Store, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	b, err := tgbot.New(cfg.TelegramBotToken)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := &Handler{
		bot:      b,
		cfg:      cfg,
		repo:     repo,
		runner:   runner,
		tagStore: tagStore,
		userPlan: domain.Plan(cfg.DefaultPlan),
		log:      log,
	}

	h.registerHandlers()

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// registerHandlers sets up the command and message handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/list", tgbot.MatchTypeExact, h.listHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/tags", tgbot.MatchTypeExact, h.tagsHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/delete", tgbot.MatchTypePrefix, h.deleteHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/retry", tgbot.MatchTypePrefix, h.retryHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypeContains, h.defaultHandler)
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.reply(ctx, update,
		"Welcome to linkmind! Send me a link and I'll save it, fetch its "+
			"metadata, and tag it for you. Commands: /list, /tags, /delete <n>, /retry <n>.")
}

// defaultHandler treats any message containing a URL as a save request.
func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID
	log := h.log.WithField("user_id", userID)

	// Commands have their own handlers.
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	pageURL, ok := extractURL(update.Message.Text)
	if !ok {
		h.reply(ctx, update, "Send me a link to save, or use /start for help.")
		return
	}

	if msg, ok := h.checkLinkQuota(ctx, userID); !ok {
		h.reply(ctx, update, msg)
		return
	}

	link := domain.Link{
		ID:        uuid.NewString(),
		UserID:    userID,
		URL:       pageURL,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := h.repo.SaveLink(ctx, link); err != nil {
		log.WithError(err).Error("Failed to save link")
		h.reply(ctx, update, "Sorry, I could not save that link. Try again.")
		return
	}
	log.WithField("url", pageURL).Info("Link saved, starting tagging run")
	h.reply(ctx, update, "Saved. Tagging it now...")

	go h.runPipeline(link, update.Message.Chat.ID)
}

// runPipeline executes one tagging run off the polling goroutine and sends
// the one-shot outcome notification.
func (h *Handler) runPipeline(link domain.Link, chatID int64) {
	// Independent of the incoming update's lifetime; bounded on its own.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	outcome := h.runner.Process(ctx, pipeline.Request{
		UserID: link.UserID,
		LinkID: link.ID,
		Plan:   h.userPlan,
	})
	h.notifyOutcome(ctx, chatID, outcome)
}

func (h *Handler) notifyOutcome(ctx context.Context, chatID int64, outcome pipeline.Outcome) {
	var text string
	switch outcome.Status {
	case domain.StatusCompleted:
		text = "Done! Your link is tagged. See /list."
		if outcome.SkippedTags > 0 {
			text = fmt.Sprintf(
				"Done, but %d suggested tag(s) were skipped: your plan's tag limit is reached. Upgrade to keep them.",
				outcome.SkippedTags)
		}
	case domain.StatusNeedsAction:
		text = "Your plan's tag limit is reached, so I could not tag this link. Upgrade or add tags manually."
	case domain.StatusError:
		text = "The tagging service is out of capacity right now. The link is saved; retry later with /retry."
	default:
		text = "Tagging did not finish; the link is saved as pending. Use /retry when ready."
	}

	if _, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.log.WithError(err).Error("Failed to send outcome notification")
	}
}

// checkLinkQuota applies the link-count policies before anything is created.
func (h *Handler) checkLinkQuota(ctx context.Context, userID int64) (string, bool) {
	total, err := h.repo.CountLinksByUser(ctx, userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to count links")
		return "Sorry, something went wrong. Try again.", false
	}
	if !plan.CanCreateLink(h.userPlan, total) {
		return "You've reached your plan's saved-link limit. Delete some links or upgrade.", false
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	today, err := h.repo.CountLinksSince(ctx, userID, midnight)
	if err != nil {
		h.log.WithError(err).Error("Failed to count today's links")
		return "Sorry, something went wrong. Try again.", false
	}
	if !plan.CanCreateLinkToday(h.userPlan, today) {
		return "You've reached today's link limit. Come back tomorrow or upgrade.", false
	}
	return "", true
}

// listHandler renders the user's links with tags and live progress.
func (h *Handler) listHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID

	links, err := h.repo.GetLinksByUser(ctx, userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list links")
		h.reply(ctx, update, "Sorry, I could not load your links.")
		return
	}
	if len(links) == 0 {
		h.reply(ctx, update, "No links saved yet. Send me one!")
		return
	}

	names := h.tagNames(ctx, userID)

	var sb strings.Builder
	for i, link := range links {
		title := link.Title
		if title == "" {
			title = link.URL
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, title, link.URL)

		if fraction, active := h.runner.Registry().Progress(link.ID); active {
			fmt.Fprintf(&sb, "   tagging... %d%%\n", int(fraction*100))
		} else {
			fmt.Fprintf(&sb, "   [%s]%s\n", link.Status, renderTags(link.TagIDs, names))
		}
	}
	h.reply(ctx, update, sb.String())
}

// tagsHandler lists the user's tag vocabulary.
func (h *Handler) tagsHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID

	vocab, err := h.tagStore.Vocabulary(ctx, userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to load vocabulary")
		h.reply(ctx, update, "Sorry, I could not load your tags.")
		return
	}
	if len(vocab) == 0 {
		h.reply(ctx, update, "No tags yet. They appear as links get processed.")
		return
	}

	var sb strings.Builder
	for _, tag := range vocab {
		fmt.Fprintf(&sb, "#%s (%s)\n", tag.Name, tag.Provenance)
	}
	h.reply(ctx, update, sb.String())
}

// deleteHandler removes the n-th link from the /list ordering. Safe to race
// with an in-flight run; the pipeline tolerates the link disappearing.
func (h *Handler) deleteHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID

	link, msg := h.linkByIndex(ctx, userID, update.Message.Text, "/delete")
	if msg != "" {
		h.reply(ctx, update, msg)
		return
	}

	if err := h.repo.DeleteLink(ctx, userID, link.ID); err != nil {
		h.log.WithError(err).Error("Failed to delete link")
		h.reply(ctx, update, "Sorry, I could not delete that link.")
		return
	}
	h.reply(ctx, update, "Deleted.")
}

// retryHandler re-runs tagging for a link, unless a run is already in
// flight for it.
func (h *Handler) retryHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID := update.Message.From.ID

	link, msg := h.linkByIndex(ctx, userID, update.Message.Text, "/retry")
	if msg != "" {
		h.reply(ctx, update, msg)
		return
	}

	if h.runner.Registry().Active(link.ID) {
		h.reply(ctx, update, "That link is being tagged right now.")
		return
	}

	h.reply(ctx, update, "Retrying...")
	go h.runPipeline(link, update.Message.Chat.ID)
}

func (h *Handler) linkByIndex(ctx context.Context, userID int64, text, command string) (domain.Link, string) {
	arg := strings.TrimSpace(strings.TrimPrefix(text, command))
	index, err := strconv.Atoi(arg)
	if err != nil || index < 1 {
		return domain.Link{}, fmt.Sprintf("Usage: %s <number from /list>", command)
	}

	links, err := h.repo.GetLinksByUser(ctx, userID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list links")
		return domain.Link{}, "Sorry, I could not load your links."
	}
	if index > len(links) {
		return domain.Link{}, fmt.Sprintf("You only have %d link(s).", len(links))
	}
	return links[index-1], ""
}

// tagNames returns id -> name for the user's vocabulary, for display.
func (h *Handler) tagNames(ctx context.Context, userID int64) map[string]string {
	names := make(map[string]string)
	vocab, err := h.tagStore.Vocabulary(ctx, userID)
	if err != nil {
		h.log.WithError(err).Warn("Failed to load vocabulary for display")
		return names
	}
	for _, tag := range vocab {
		names[tag.ID] = tag.Name
	}
	return names
}

// renderTags formats a link's tag ids as names. Dangling ids (tag deleted
// after being applied) render as unknown.
func renderTags(ids []string, names map[string]string) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			parts = append(parts, "#"+name)
		} else {
			parts = append(parts, "#unknown")
		}
	}
	return " " + strings.Join(parts, " ")
}

func (h *Handler) reply(ctx context.Context, update *models.Update, text string) {
	_, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to send message")
	}
}

// extractURL finds the first http(s) URL in a message.
func extractURL(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field, true
		}
	}
	return "", false
}
