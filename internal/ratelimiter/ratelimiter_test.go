package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []time.Time
	texts []string
	err   error
}

func (s *recordingSender) SendMessage(
	_ context.Context,
	params *bot.SendMessageParams,
) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, time.Now())
	s.texts = append(s.texts, params.Text)

	if s.err != nil {
		return nil, s.err
	}

	return &models.Message{Text: params.Text}, nil
}

func TestGetDelay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{
			"Private chat - no delay needed",
			123456789,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Private chat - delay needed",
			123456789,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Group chat - no delay needed",
			-123456789,
			now.Add(-4 * time.Second),
			true,
		},
		{
			"Group chat - delay needed",
			-123456789,
			now.Add(-1 * time.Second),
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getDelay(test.chatID, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestGetChatID(t *testing.T) {
	tests := []struct {
		name   string
		params *bot.SendMessageParams
		want   int64
	}{
		{"int64", &bot.SendMessageParams{ChatID: int64(12345)}, 12345},
		{"int", &bot.SendMessageParams{ChatID: 67890}, 67890},
		{"channel username", &bot.SendMessageParams{ChatID: "@channel"}, 0},
		{"nil params", nil, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getChatID(test.params)

			if got != test.want {
				t.Errorf("Expected %v chatID, got %v", test.want, got)
			}
		})
	}
}

func TestGetRate(t *testing.T) {
	tests := []struct {
		name   string
		chatID int64
		want   time.Duration
	}{
		{
			"PrivateChatRate",
			1,
			privateChatRate,
		},
		{
			"GroupChatRate",
			-1,
			groupChatRate,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getRate(test.chatID)

			if got != test.want {
				t.Errorf("Expected %v rate, got %v", test.want, got)
			}
		})
	}
}

func TestSendPacesSameChat(t *testing.T) {
	sender := &recordingSender{}
	rl := New(sender, slog.New(slog.DiscardHandler))
	defer rl.Stop()

	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		msg, err := rl.Send(ctx, &bot.SendMessageParams{ChatID: int64(1), Text: text})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if msg.Text != text {
			t.Fatalf("expected %q, got %q", text, msg.Text)
		}
	}

	if gap := sender.sent[1].Sub(sender.sent[0]); gap < privateChatRate-50*time.Millisecond {
		t.Fatalf("expected messages to be paced, gap was %v", gap)
	}
}

func TestSendReturnsSenderError(t *testing.T) {
	sender := &recordingSender{err: errors.New("forbidden")}
	rl := New(sender, slog.New(slog.DiscardHandler))
	defer rl.Stop()

	if _, err := rl.Send(context.Background(), &bot.SendMessageParams{ChatID: int64(1), Text: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSendAfterStop(t *testing.T) {
	rl := New(&recordingSender{}, slog.New(slog.DiscardHandler))
	rl.Stop()

	if _, err := rl.Send(context.Background(), &bot.SendMessageParams{ChatID: int64(1)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
