// Package summary generates the AI summary attached to each match before
// delivery. Summaries are versioned; regeneration appends a new version
// instead of overwriting.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"scout_bot/internal/ai"
	"scout_bot/internal/model"
	"scout_bot/internal/storage"
)

// maxTokens caps the length of a generated summary.
const maxTokens = 512

const defaultSystemPrompt = `You summarize social media mentions for a monitoring bot.
Given a post or comment that matched a watched keyword, write a short summary:
what the author is saying, why the keyword appears, and whether a reply seems worthwhile.
Keep it under three sentences. Do not invent details that are not in the text.`

// Completer produces chat completions.
type Completer interface {
	Chat(ctx context.Context, systemPrompt string, messages []string, maxTokens int) (ai.Completion, error)
}

// Generator creates and stores summary versions for matches.
type Generator struct {
	store storage.Storage
	ai    Completer
	log   *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(store storage.Storage, completer Completer, log *slog.Logger) *Generator {
	return &Generator{store: store, ai: completer, log: log}
}

// Generate produces the first summary for a match and stores it as the next
// version. An empty systemPrompt selects the default.
func (g *Generator) Generate(ctx context.Context, match *model.Match, systemPrompt string) (*model.Summary, error) {
	completion, err := g.ai.Chat(ctx, resolvePrompt(systemPrompt), []string{matchPrompt(match)}, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate summary for match %d: %w", match.ID, err)
	}

	s := &model.Summary{MatchID: match.ID, Content: completion.Content}
	if err := g.store.CreateSummary(ctx, s); err != nil {
		return nil, fmt.Errorf("store summary for match %d: %w", match.ID, err)
	}
	g.log.Debug("summary generated",
		"match_id", match.ID,
		"version", s.Version,
		"tokens", completion.TokensUsed)
	return s, nil
}

// Regenerate produces a fresh summary informed by the previous version and
// optional user feedback, stored as a new version.
func (g *Generator) Regenerate(ctx context.Context, match *model.Match, systemPrompt, feedback string) (*model.Summary, error) {
	previous, err := g.store.LatestSummary(ctx, match.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load previous summary for match %d: %w", match.ID, err)
	}

	messages := []string{matchPrompt(match)}
	if previous != nil {
		messages = append(messages, "Previous draft:\n"+previous.Content)
	}
	if strings.TrimSpace(feedback) != "" {
		messages = append(messages, "Rewrite the summary taking this feedback into account:\n"+feedback)
	} else {
		messages = append(messages, "Rewrite the summary with a different angle or emphasis.")
	}

	completion, err := g.ai.Chat(ctx, resolvePrompt(systemPrompt), messages, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("regenerate summary for match %d: %w", match.ID, err)
	}

	s := &model.Summary{MatchID: match.ID, Content: completion.Content}
	if err := g.store.CreateSummary(ctx, s); err != nil {
		return nil, fmt.Errorf("store summary for match %d: %w", match.ID, err)
	}
	g.log.Debug("summary regenerated", "match_id", match.ID, "version", s.Version)
	return s, nil
}

func resolvePrompt(systemPrompt string) string {
	if strings.TrimSpace(systemPrompt) == "" {
		return defaultSystemPrompt
	}
	return systemPrompt
}

// matchPrompt renders the matched content for the model.
func matchPrompt(match *model.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", match.Source)
	fmt.Fprintf(&b, "Type: %s\n", contentType(match.Kind))
	if match.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", match.Title)
	}
	if match.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", match.Author)
	}
	fmt.Fprintf(&b, "Matched keyword: %s\n", match.MatchedKeyword)
	fmt.Fprintf(&b, "Content:\n%s\n", match.Snippet)
	return b.String()
}

func contentType(kind model.ItemKind) string {
	switch kind {
	case model.KindComment, model.KindRedditComment:
		return "comment"
	default:
		return "post"
	}
}
