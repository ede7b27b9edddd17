package bot

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const sendSpinnerInterval = 4 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.api.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

// withSpinner shows the typing status while fn runs.
func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(spinCtx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-spinCtx.Done():
				return
			case <-t.C:
				b.sendTyping(spinCtx, chatID)
			}
		}
	}()

	return fn()
}
