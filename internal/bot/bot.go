package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"textlens/internal/ratelimiter"
	"textlens/internal/router"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 5 * time.Minute

// Actions are the user actions the bot can trigger.
type Actions interface {
	Summarize(ctx context.Context, sourceText string) router.Result
	RunPrompt(ctx context.Context, promptText string, sourceText string) router.Result
}

// PageFetcher turns a URL into text.
type PageFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type Bot struct {
	api          *bot.Bot
	rateLimiter  *ratelimiter.RateLimiter
	actions      Actions
	pages        PageFetcher
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	actions Actions,
	pages PageFetcher,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := &Bot{
		actions:      actions,
		pages:        pages,
		allowedUsers: allowedUsers,
		log:          log,
	}

	api, err := bot.New(strings.TrimSpace(token), bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)

	return b, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	message := update.Message
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.userAllowed(userID) {
		b.log.DebugContext(updateCtx, "User is not allowed",
			"userID", userID,
			"chatID", chatID,
			"username", message.From.Username)

		return
	}

	if err := b.handleMessage(updateCtx, chatID, message.Text); err != nil {
		b.log.ErrorContext(updateCtx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"userID", userID,
			"messageID", message.ID)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}
