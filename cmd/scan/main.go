// Command scan runs the scan and delivery pipeline from the command line,
// either once or on a loop, without starting the interactive bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scout_bot/internal/ai"
	"scout_bot/internal/config"
	"scout_bot/internal/hn"
	"scout_bot/internal/notifier"
	"scout_bot/internal/pipeline"
	"scout_bot/internal/reddit"
	"scout_bot/internal/scanner"
	"scout_bot/internal/storage"
	"scout_bot/internal/summary"
)

func main() {
	var (
		source       = flag.String("source", "all", "which feeds to scan: hn, reddit, all")
		campaignID   = flag.Int64("campaign", 0, "scan a single campaign by ID even if not due")
		dryRun       = flag.Bool("dry-run", false, "evaluate scans without writing anything")
		skipDelivery = flag.Bool("skip-delivery", false, "enrich matches but do not send alerts")
		loop         = flag.Bool("loop", false, "keep running on the configured intervals")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	log := newLogger(cfg.LogLevel)

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := runner{
		cfg:          cfg,
		store:        store,
		log:          log,
		source:       *source,
		campaignID:   *campaignID,
		dryRun:       *dryRun,
		skipDelivery: *skipDelivery,
	}
	if err := r.init(); err != nil {
		log.Error("init", "error", err)
		os.Exit(1)
	}

	if err := r.pass(ctx); err != nil {
		log.Error("scan pass", "error", err)
		os.Exit(1)
	}
	if !*loop {
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.HNScanIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.pass(ctx); err != nil {
				log.Error("scan pass", "error", err)
			}
		}
	}
}

type runner struct {
	cfg          *config.Config
	store        storage.Storage
	log          *slog.Logger
	source       string
	campaignID   int64
	dryRun       bool
	skipDelivery bool

	hn        *scanner.Scanner
	campaigns *scanner.CampaignScanner
	pipe      *pipeline.Pipeline
}

func (r *runner) init() error {
	r.hn = scanner.New(r.store, hn.New(http.DefaultClient, r.cfg.HNBaseURL, r.log), r.log)
	r.campaigns = scanner.NewCampaignScanner(r.store, reddit.New(http.DefaultClient, r.cfg.RedditBaseURL, r.log), r.log)

	completer := ai.New(ai.Config{
		APIKey:  r.cfg.OpenRouterAPIKey,
		Model:   r.cfg.OpenRouterModel,
		BaseURL: r.cfg.OpenRouterBaseURL,
	}, r.log)
	generator := summary.NewGenerator(r.store, completer, r.log)

	var deliverer pipeline.Deliverer
	if !r.skipDelivery && !r.dryRun {
		api, err := tgbotapi.NewBotAPI(r.cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("create bot api: %w", err)
		}
		deliverer = notifier.New(api, r.store, r.log)
	}
	r.pipe = pipeline.New(r.store, generator, deliverer, r.log)
	return nil
}

// pass runs one scan of the selected sources, then one pipeline pass
// unless this is a dry run.
func (r *runner) pass(ctx context.Context) error {
	if r.source == "hn" || r.source == "all" {
		result, err := r.hn.Scan(ctx, scanner.Options{
			InitialLookback: r.cfg.HNInitialLookback,
			DryRun:          r.dryRun,
		})
		if err != nil {
			return fmt.Errorf("scan hackernews: %w", err)
		}
		r.log.Info("hackernews scan",
			"items_scanned", result.ItemsScanned,
			"matches_created", result.MatchesCreated,
			"last_seen_id", result.LastSeenID,
			"dry_run", r.dryRun)
	}

	if r.source == "reddit" || r.source == "all" {
		if err := r.scanCampaigns(ctx); err != nil {
			return err
		}
	}

	if r.dryRun {
		return nil
	}

	result, err := r.pipe.Run(ctx, pipeline.Options{SkipDelivery: r.skipDelivery})
	if err != nil {
		return fmt.Errorf("pipeline pass: %w", err)
	}
	for _, msg := range result.Errors {
		r.log.Warn("pipeline error", "detail", msg)
	}
	return nil
}

func (r *runner) scanCampaigns(ctx context.Context) error {
	var results []scanner.CampaignResult
	if r.campaignID != 0 {
		campaign, err := r.store.GetCampaign(ctx, r.campaignID)
		if err != nil {
			return fmt.Errorf("load campaign %d: %w", r.campaignID, err)
		}
		results = append(results, r.campaigns.ScanCampaign(ctx, campaign, r.dryRun))
	} else {
		var err error
		results, err = r.campaigns.ScanDue(ctx, time.Now(), r.dryRun)
		if err != nil {
			return fmt.Errorf("scan due campaigns: %w", err)
		}
	}

	for _, res := range results {
		r.log.Info("campaign scan",
			"campaign", res.CampaignName,
			"subreddits", res.SubredditsScanned,
			"posts", res.PostsChecked,
			"comments", res.CommentsChecked,
			"new_matches", res.NewMatches,
			"duplicates", res.DuplicatesSkipped,
			"errors", len(res.Errors))
		for _, msg := range res.Errors {
			r.log.Warn("campaign scan error", "campaign", res.CampaignName, "detail", msg)
		}
	}
	return nil
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
