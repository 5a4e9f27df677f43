// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	HNBaseURL     string
	RedditBaseURL string

	// Scan cadence and depth.
	HNScanIntervalMinutes   int
	HNInitialLookback       int
	CampaignTickMinutes     int
	PipelineIntervalMinutes int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken:  token,
		DatabasePath:      envOr("DATABASE_PATH", "./data/scout.db"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   os.Getenv("OPENROUTER_MODEL"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		HNBaseURL:         os.Getenv("HN_BASE_URL"),
		RedditBaseURL:     os.Getenv("REDDIT_BASE_URL"),
	}

	var err error
	if cfg.HNScanIntervalMinutes, err = envInt("HN_SCAN_INTERVAL_MINUTES", 10); err != nil {
		return nil, err
	}
	if cfg.HNInitialLookback, err = envInt("HN_INITIAL_LOOKBACK", 100); err != nil {
		return nil, err
	}
	if cfg.CampaignTickMinutes, err = envInt("CAMPAIGN_TICK_MINUTES", 5); err != nil {
		return nil, err
	}
	if cfg.PipelineIntervalMinutes, err = envInt("PIPELINE_INTERVAL_MINUTES", 5); err != nil {
		return nil, err
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
