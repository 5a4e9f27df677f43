package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"scout_bot/internal/ai"
	"scout_bot/internal/model"
	"scout_bot/internal/storage"
)

// fakeCompleter records the prompts it was asked for and returns canned
// content.
type fakeCompleter struct {
	content string
	err     error

	systemPrompts []string
	messages      [][]string
}

func (f *fakeCompleter) Chat(_ context.Context, systemPrompt string, messages []string, _ int) (ai.Completion, error) {
	f.systemPrompts = append(f.systemPrompts, systemPrompt)
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	return ai.Completion{Content: f.content, TokensUsed: 42}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedMatch(t *testing.T, store *storage.SQLite) *model.Match {
	t.Helper()
	ctx := context.Background()
	sub, err := store.GetOrCreateSubscriber(ctx, 100)
	if err != nil {
		t.Fatalf("seed subscriber: %v", err)
	}
	m := &model.Match{
		OwnerKind:      model.OwnerUser,
		OwnerID:        sub.ID,
		ItemRef:        model.ItemRef(42),
		MatchedKeyword: "rust",
		Source:         "hackernews",
		Kind:           model.KindStory,
		Title:          "Why we rewrote it in rust",
		Snippet:        "Why we rewrote it in rust",
		Author:         "alice",
		ItemCreatedAt:  time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Status:         model.StatusPending,
	}
	if err := store.CreateMatch(ctx, m); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return m
}

func TestGenerateStoresFirstVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	match := seedMatch(t, store)

	completer := &fakeCompleter{content: "Alice explains the rewrite."}
	g := NewGenerator(store, completer, testLogger())

	got, err := g.Generate(ctx, match, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if diff := cmp.Diff(1, got.Version); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Alice explains the rewrite.", got.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	latest, err := store.LatestSummary(ctx, match.ID)
	if err != nil {
		t.Fatalf("latest summary: %v", err)
	}
	if diff := cmp.Diff(got.Content, latest.Content); diff != "" {
		t.Errorf("stored content mismatch (-want +got):\n%s", diff)
	}

	// The default system prompt is used when none is configured.
	if !strings.Contains(completer.systemPrompts[0], "monitoring bot") {
		t.Errorf("unexpected system prompt: %q", completer.systemPrompts[0])
	}
	prompt := completer.messages[0][0]
	for _, want := range []string{"rust", "Why we rewrote it in rust", "alice", "hackernews"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateUsesCampaignPrompt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	match := seedMatch(t, store)

	completer := &fakeCompleter{content: "ok"}
	g := NewGenerator(store, completer, testLogger())

	if _, err := g.Generate(ctx, match, "You are a pirate."); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if diff := cmp.Diff("You are a pirate.", completer.systemPrompts[0]); diff != "" {
		t.Errorf("system prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestRegenerateAppendsVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	match := seedMatch(t, store)

	completer := &fakeCompleter{content: "First draft."}
	g := NewGenerator(store, completer, testLogger())

	if _, err := g.Generate(ctx, match, ""); err != nil {
		t.Fatalf("generate: %v", err)
	}

	completer.content = "Second draft."
	got, err := g.Regenerate(ctx, match, "", "shorter please")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if diff := cmp.Diff(2, got.Version); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}

	latest, err := store.LatestSummary(ctx, match.ID)
	if err != nil {
		t.Fatalf("latest summary: %v", err)
	}
	if diff := cmp.Diff("Second draft.", latest.Content); diff != "" {
		t.Errorf("latest content mismatch (-want +got):\n%s", diff)
	}

	// The regeneration prompt carries the previous draft and the feedback.
	regen := completer.messages[1]
	if !strings.Contains(strings.Join(regen, "\n"), "First draft.") {
		t.Errorf("previous draft missing from prompt: %v", regen)
	}
	if !strings.Contains(strings.Join(regen, "\n"), "shorter please") {
		t.Errorf("feedback missing from prompt: %v", regen)
	}
}

func TestRegenerateWithoutPreviousSummary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	match := seedMatch(t, store)

	completer := &fakeCompleter{content: "Fresh take."}
	g := NewGenerator(store, completer, testLogger())

	got, err := g.Regenerate(ctx, match, "", "")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if diff := cmp.Diff(1, got.Version); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}
	joined := strings.Join(completer.messages[0], "\n")
	if strings.Contains(joined, "Previous draft") {
		t.Errorf("prompt must not reference a previous draft: %s", joined)
	}
	if !strings.Contains(joined, "different angle") {
		t.Errorf("prompt missing rewrite instruction: %s", joined)
	}
}

func TestGenerateAIFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	match := seedMatch(t, store)

	wantErr := errors.New("model overloaded")
	g := NewGenerator(store, &fakeCompleter{err: wantErr}, testLogger())

	if _, err := g.Generate(ctx, match, ""); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped AI error, got %v", err)
	}
	if _, err := store.LatestSummary(ctx, match.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no stored summary, got %v", err)
	}
}
