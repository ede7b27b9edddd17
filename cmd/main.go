package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"textlens/internal/backend"
	"textlens/internal/bot"
	"textlens/internal/chunker"
	"textlens/internal/config"
	"textlens/internal/database"
	"textlens/internal/page"
	"textlens/internal/relay"
	"textlens/internal/resolver"
	"textlens/internal/router"
	"textlens/internal/scheduler"
	"textlens/internal/server"
	"time"

	"golang.org/x/sync/errgroup"
)

const relayClientTimeout = 2 * time.Minute

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	seedAPIKey(ctx, db, cfg.DefaultAPIKey, log)

	policy := initPolicy(cfg, log)
	actions := router.New(db, policy, cfg.InferSummarizeIntent, log)

	relayHandler := relay.New(cfg.RelayUpstreamURL, cfg.RelayAPIKey, &http.Client{Timeout: relayClientTimeout}, log)
	if cfg.RelayAPIKey == "" {
		log.WarnContext(ctx, "OPENROUTER_API_KEY is missing so relay requests will fail",
			"envVar", "OPENROUTER_API_KEY")
	}

	srv := server.New(cfg.ListenAddr, actions, db, relayHandler, log)

	sched := scheduler.New(ctx, cfg.DiagnosticsSpec, db, policy, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.Spec())

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.Spec(),
		"timezone", scheduler.Timezone)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	if botInst := initBot(ctx, cfg, actions, log); botInst != nil {
		defer botInst.Stop()

		g.Go(func() error {
			botInst.Start(gctx)
			return nil
		})
		log.InfoContext(ctx, "Bot is started",
			"allowedUsersCount", len(cfg.AllowedUsers))
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.ErrorContext(ctx, "Service stopped with error",
			"error", err,
			"uptimeSeconds", time.Since(start).Seconds())

		return
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initPolicy(cfg config.Config, log *slog.Logger) *resolver.Policy {
	reducer := chunker.New(cfg.MaxChunkChars)

	summarizer := backend.NewSummarizer(cfg.SummarizerURL, reducer, nil, log)
	primary := backend.NewPrimaryChat(cfg.PrimaryBaseURL, nil)
	secondary := backend.NewSecondaryChat(cfg.SecondaryBaseURL, cfg.SecondaryModel, nil)

	return resolver.New(
		resolver.Chains(summarizer.Descriptor(), primary.Descriptor(), secondary.Descriptor()),
		log,
		resolver.WithAttemptTimeout(cfg.AttemptTimeout),
	)
}

func seedAPIKey(ctx context.Context, db *database.Database, apiKey string, log *slog.Logger) {
	if apiKey == "" {
		return
	}

	seeded, err := db.SeedAPIKey(ctx, apiKey)
	if err != nil {
		log.ErrorContext(ctx, "Failed to seed API key",
			"error", err,
			"envVar", "DEFAULT_API_KEY")

		return
	}

	log.InfoContext(ctx, "API key seed is checked",
		"seeded", seeded)
}

func initBot(ctx context.Context, cfg config.Config, actions *router.Router, log *slog.Logger) *bot.Bot {
	if cfg.TelegramToken == "" {
		log.InfoContext(ctx, "TELEGRAM_TOKEN is missing so bot is disabled",
			"envVar", "TELEGRAM_TOKEN")

		return nil
	}

	botInst, err := bot.New(cfg.TelegramToken, actions, page.NewFetcher(nil, log), cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot so it is disabled",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return nil
	}

	return botInst
}
