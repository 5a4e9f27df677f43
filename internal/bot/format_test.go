package bot

import (
	"strings"
	"testing"
	"time"

	"scout_bot/internal/model"
)

func TestFormatKeywordList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatKeywordList(nil)
		if !strings.Contains(got, "/watch") {
			t.Errorf("empty list should point at /watch, got %q", got)
		}
	})

	t.Run("mixed statuses", func(t *testing.T) {
		got := FormatKeywordList([]model.Keyword{
			{ID: 1, Phrase: "rust", IsActive: true},
			{ID: 2, Phrase: "machine learning", IsActive: false},
		})
		for _, want := range []string{"#1 rust [active]", "#2 machine learning [paused]"} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})
}

func TestFormatCampaignList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatCampaignList(nil)
		if !strings.Contains(got, "No campaigns") {
			t.Errorf("unexpected empty message: %q", got)
		}
	})

	t.Run("full campaign", func(t *testing.T) {
		scanned := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
		got := FormatCampaignList([]model.Campaign{{
			ID:            3,
			Name:          "launch watch",
			ScanInterval:  30,
			IsActive:      true,
			LastScannedAt: &scanned,
			Subreddits: []model.CampaignSubreddit{
				{Name: "golang", IsActive: true},
				{Name: "programming", IsActive: true},
				{Name: "dormant", IsActive: false},
			},
			Keywords: []model.CampaignKeyword{
				{Phrase: "monitoring", IsActive: true},
			},
		}})
		for _, want := range []string{
			"#3 launch watch",
			"(every 30 min) [active]",
			"r/golang, r/programming",
			"keywords: monitoring",
			"last scan: 2026-08-20 14:30 UTC",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
		if strings.Contains(got, "dormant") {
			t.Errorf("inactive subreddit must not be listed:\n%s", got)
		}
	})

	t.Run("bare campaign", func(t *testing.T) {
		got := FormatCampaignList([]model.Campaign{{ID: 4, Name: "empty", ScanInterval: 60}})
		for _, want := range []string{"no active subreddits", "no active keywords", "[paused]"} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})
}
