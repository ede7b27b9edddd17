package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// Sender delivers one message. *bot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type request struct {
	ctx      context.Context
	params   *bot.SendMessageParams
	response chan response
}

type response struct {
	message *models.Message
	err     error
}

// RateLimiter sends messages one at a time, keeping at least the chat's
// rate between two messages to the same chat.
type RateLimiter struct {
	sender   Sender
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(sender Sender, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		sender:   sender,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

func (rl *RateLimiter) Send(
	ctx context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	if err := rl.ctx.Err(); err != nil {
		return nil, err
	}

	req := request{
		ctx:      ctx,
		params:   params,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-rl.ctx.Done():
		return nil, rl.ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{
						err: rl.ctx.Err(),
					}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	chatID := getChatID(req.params)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.response <- response{
					err: rl.ctx.Err(),
				}

				return
			case <-req.ctx.Done():
				req.response <- response{
					err: req.ctx.Err(),
				}

				return
			}
		}
	}

	message, err := rl.sender.SendMessage(req.ctx, req.params)

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}

func getChatID(params *bot.SendMessageParams) int64 {
	if params == nil {
		return 0
	}

	switch id := params.ChatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	default:
		return 0
	}
}

func getDelay(
	chatID int64,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
