package bot

import (
	"context"
	"errors"
	"fmt"
	"textlens/internal/chunker"
	"textlens/internal/markdown"
	"textlens/internal/page"
	"textlens/internal/router"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Escaping can at most double a part, which keeps it under Telegram's 4096 limit.
const replyPartMaxChars = 2000

const helpBody = `Send me text and I will summarize it.

/summarize <text or URL> – summarize text or a web page
/prompt <instruction>
<text or URL> – run your own instruction on the text, the instruction goes on the first line`

func helpText() string {
	return markdown.Bold("TextLens") + "\n\n" + markdown.EscapeV2(helpBody)
}

func (b *Bot) handleMessage(ctx context.Context, chatID int64, text string) error {
	cmd, err := parseCommand(text)
	if err != nil {
		return b.sendUsage(ctx, chatID, err)
	}

	if cmd.kind == commandHelp {
		return b.sendMessage(ctx, chatID, helpText())
	}

	return b.withSpinner(ctx, chatID, func() error {
		source, err := b.resolveSource(ctx, cmd.source)
		if err != nil {
			b.log.WarnContext(ctx, "Failed to fetch source page",
				"error", err,
				"chatID", chatID)

			return errors.Join(
				fmt.Errorf("resolve source: %w", err),
				b.sendMessage(ctx, chatID, "❌ "+markdown.EscapeV2("Failed to fetch the page: "+err.Error())),
			)
		}

		var res router.Result
		switch cmd.kind {
		case commandPrompt:
			res = b.actions.RunPrompt(ctx, cmd.prompt, source)
		default:
			res = b.actions.Summarize(ctx, source)
		}

		return b.sendResult(ctx, chatID, res)
	})
}

// resolveSource fetches the page when the source is a lone URL.
func (b *Bot) resolveSource(ctx context.Context, source string) (string, error) {
	u, ok := page.SourceURL(source)
	if !ok || b.pages == nil {
		return source, nil
	}

	text, err := b.pages.FetchText(ctx, u)
	if err != nil {
		return "", fmt.Errorf("fetch text: %w", err)
	}

	return text, nil
}

func (b *Bot) sendResult(ctx context.Context, chatID int64, res router.Result) error {
	if !res.OK {
		return b.sendMessage(ctx, chatID, "❌ "+markdown.EscapeV2("Error: "+res.Error))
	}

	var errs []error
	for _, part := range chunker.Split(res.Result, replyPartMaxChars) {
		if err := b.sendMessage(ctx, chatID, markdown.EscapeV2(part)); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) sendUsage(ctx context.Context, chatID int64, cause error) error {
	var text string

	switch {
	case errors.Is(cause, errMissingPrompt):
		text = "✖️ Put your instruction right after /prompt and the text on the next line\\."
	default:
		text = "✖️ Send some text or a URL to work on\\."
	}

	return b.sendMessage(ctx, chatID, text)
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := b.rateLimiter.Send(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}
