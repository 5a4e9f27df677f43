// Package pipeline runs the enrich-then-deliver pass over pending matches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scout_bot/internal/model"
	"scout_bot/internal/storage"
)

// defaultLimit bounds how many matches one pass touches.
const defaultLimit = 50

// Enricher generates a summary for a match.
type Enricher interface {
	Generate(ctx context.Context, match *model.Match, systemPrompt string) (*model.Summary, error)
}

// Deliverer sends a match to its owner.
type Deliverer interface {
	Deliver(ctx context.Context, match *model.Match, summary *model.Summary) error
}

// Options control one pipeline pass.
type Options struct {
	// Limit bounds the number of matches per phase; zero selects the default.
	Limit int
	// SkipDelivery runs enrichment only; matches stay pending.
	SkipDelivery bool
}

// Result summarizes one pipeline pass.
type Result struct {
	Enriched      int
	EnrichFailed  int
	Delivered     int
	DeliverFailed int
	Errors        []string
}

// Pipeline enriches pending matches with summaries, then delivers them.
// A match whose enrichment fails is skipped this pass and stays pending,
// so the next pass retries it.
type Pipeline struct {
	store    storage.Storage
	enricher Enricher
	notifier Deliverer
	log      *slog.Logger
}

// New creates a Pipeline.
func New(store storage.Storage, enricher Enricher, notifier Deliverer, log *slog.Logger) *Pipeline {
	return &Pipeline{store: store, enricher: enricher, notifier: notifier, log: log}
}

// Run executes one pass: summarize every pending match that has no summary
// yet, then deliver every pending match that has one. Per-match failures
// are collected, never propagated.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var result Result
	prompts := map[int64]string{}

	unprocessed, err := p.store.ListUnprocessedMatches(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list unprocessed matches: %w", err)
	}
	for i := range unprocessed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		match := &unprocessed[i]
		prompt, err := p.systemPrompt(ctx, match, prompts)
		if err != nil {
			result.EnrichFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("match %d: %v", match.ID, err))
			continue
		}
		if _, err := p.enricher.Generate(ctx, match, prompt); err != nil {
			result.EnrichFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("match %d: %v", match.ID, err))
			p.log.Warn("enrichment failed", "match_id", match.ID, "error", err)
			continue
		}
		result.Enriched++
	}

	if opts.SkipDelivery {
		p.log.Info("pipeline pass (delivery skipped)",
			"enriched", result.Enriched,
			"enrich_failed", result.EnrichFailed)
		return result, nil
	}

	pending, err := p.store.ListPendingMatches(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list pending matches: %w", err)
	}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		match := &pending[i]
		latest, err := p.store.LatestSummary(ctx, match.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// Campaign alerts wait for their summary and are retried next
			// pass; user alerts go out without one rather than sit on a
			// broken or unconfigured completion gateway.
			if match.OwnerKind == model.OwnerCampaign {
				continue
			}
			latest = nil
		} else if err != nil {
			result.DeliverFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("match %d: %v", match.ID, err))
			continue
		}
		if err := p.notifier.Deliver(ctx, match, latest); err != nil {
			result.DeliverFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("match %d: %v", match.ID, err))
			p.log.Warn("delivery failed", "match_id", match.ID, "error", err)
			continue
		}
		result.Delivered++
	}

	p.log.Info("pipeline pass complete",
		"enriched", result.Enriched,
		"enrich_failed", result.EnrichFailed,
		"delivered", result.Delivered,
		"deliver_failed", result.DeliverFailed)
	return result, nil
}

// systemPrompt returns the campaign's prompt for campaign matches, cached
// per pass; user matches use the generator's default.
func (p *Pipeline) systemPrompt(ctx context.Context, match *model.Match, cache map[int64]string) (string, error) {
	if match.OwnerKind != model.OwnerCampaign {
		return "", nil
	}
	if prompt, ok := cache[match.OwnerID]; ok {
		return prompt, nil
	}
	campaign, err := p.store.GetCampaign(ctx, match.OwnerID)
	if err != nil {
		return "", fmt.Errorf("load campaign %d: %w", match.OwnerID, err)
	}
	cache[match.OwnerID] = campaign.SystemPrompt
	return campaign.SystemPrompt, nil
}
