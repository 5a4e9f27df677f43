package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"scout_bot/internal/ai"
	"scout_bot/internal/bot"
	"scout_bot/internal/config"
	"scout_bot/internal/hn"
	"scout_bot/internal/notifier"
	"scout_bot/internal/pipeline"
	"scout_bot/internal/reddit"
	"scout_bot/internal/scanner"
	"scout_bot/internal/scheduler"
	"scout_bot/internal/storage"
	"scout_bot/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	completer := ai.New(ai.Config{
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.OpenRouterModel,
		BaseURL: cfg.OpenRouterBaseURL,
	}, log)
	generator := summary.NewGenerator(store, completer, log)

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, generator, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	hnScanner := scanner.New(store, hn.New(http.DefaultClient, cfg.HNBaseURL, log), log)
	campaignScanner := scanner.NewCampaignScanner(store, reddit.New(http.DefaultClient, cfg.RedditBaseURL, log), log)
	pipe := pipeline.New(store, generator, notifier.New(b.Sender(), store, log), log)

	sched := scheduler.New(log)
	sched.Add(scheduler.Job{
		Name:     "hn_scan",
		Interval: time.Duration(cfg.HNScanIntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := hnScanner.Scan(ctx, scanner.Options{InitialLookback: cfg.HNInitialLookback})
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "campaign_scan",
		Interval: time.Duration(cfg.CampaignTickMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := campaignScanner.ScanDue(ctx, time.Now(), false)
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "pipeline",
		Interval: time.Duration(cfg.PipelineIntervalMinutes) * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := pipe.Run(ctx, pipeline.Options{})
			return err
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
