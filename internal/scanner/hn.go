// Package scanner implements the incremental scans over both feeds:
// the linear Hacker News item stream and the per-campaign subreddit
// listings.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scout_bot/internal/matcher"
	"scout_bot/internal/model"
	"scout_bot/internal/storage"
)

// SourceHackerNews is the cursor and match source name for the linear feed.
const SourceHackerNews = "hackernews"

const (
	// batchSize is how many item IDs are fetched and committed together.
	batchSize = 50
	// fetchConcurrency bounds parallel item fetches within a batch.
	fetchConcurrency = 10
	// defaultLookback is how far behind the feed head a fresh cursor starts.
	defaultLookback = 100
)

// Feed is the linear item feed consumed by the scanner.
type Feed interface {
	MaxItemID(ctx context.Context) (int64, error)
	ItemsBatch(ctx context.Context, ids []int64, concurrency int) []model.ContentItem
}

// Options control a single scan run.
type Options struct {
	// InitialLookback is how many items behind the feed head a first-ever
	// scan starts. Zero selects the default.
	InitialLookback int
	// DryRun evaluates the scan without writing items, matches or the cursor.
	DryRun bool
}

// Result summarizes one scan run.
type Result struct {
	ItemsScanned      int
	ItemsStored       int
	MatchesCreated    int
	DuplicatesSkipped int
	LastSeenID        int64
}

// Scanner walks the linear feed from the stored cursor to the feed head,
// matching active subscriber keywords and committing each batch atomically.
type Scanner struct {
	store storage.Storage
	feed  Feed
	log   *slog.Logger
}

// New creates a Scanner.
func New(store storage.Storage, feed Feed, log *slog.Logger) *Scanner {
	return &Scanner{store: store, feed: feed, log: log}
}

// Scan processes all items between the cursor and the current feed head.
// When no keywords are active the cursor fast-forwards to the head without
// fetching items, so a later subscription never replays the backlog.
func (s *Scanner) Scan(ctx context.Context, opts Options) (Result, error) {
	cursor, err := s.store.GetCursor(ctx, SourceHackerNews)
	if err != nil {
		return Result{}, fmt.Errorf("get cursor: %w", err)
	}
	maxID, err := s.feed.MaxItemID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get feed head: %w", err)
	}

	lookback := opts.InitialLookback
	if lookback <= 0 {
		lookback = defaultLookback
	}

	start := cursor.LastSeenID + 1
	if cursor.LastSeenID == 0 {
		start = maxID - int64(lookback) + 1
		if start < 1 {
			start = 1
		}
	}
	if start > maxID {
		s.log.Debug("scan up to date", "last_seen_id", cursor.LastSeenID, "max_id", maxID)
		return Result{LastSeenID: cursor.LastSeenID}, nil
	}

	keywords, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active keywords: %w", err)
	}
	if len(keywords) == 0 {
		if !opts.DryRun {
			if err := s.store.AdvanceCursor(ctx, SourceHackerNews, maxID); err != nil {
				return Result{}, fmt.Errorf("advance cursor: %w", err)
			}
		}
		s.log.Info("no active keywords, fast-forwarding cursor", "last_seen_id", maxID)
		return Result{LastSeenID: maxID}, nil
	}

	phrases, byPhrase := groupKeywords(keywords)

	result := Result{LastSeenID: cursor.LastSeenID}
	for batchStart := start; batchStart <= maxID; batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batchEnd := batchStart + batchSize - 1
		if batchEnd > maxID {
			batchEnd = maxID
		}
		ids := make([]int64, 0, batchEnd-batchStart+1)
		for id := batchStart; id <= batchEnd; id++ {
			ids = append(ids, id)
		}
		result.ItemsScanned += len(ids)

		items := s.feed.ItemsBatch(ctx, ids, fetchConcurrency)
		matches := s.matchItems(items, phrases, byPhrase)

		if opts.DryRun {
			result.ItemsStored += len(items)
			result.MatchesCreated += len(matches)
			result.LastSeenID = batchEnd
			continue
		}

		committed, err := s.store.CommitScanBatch(ctx, storage.ScanBatch{
			Source:  SourceHackerNews,
			LastID:  batchEnd,
			Items:   items,
			Matches: matches,
		})
		if err != nil {
			return result, fmt.Errorf("commit batch ending at %d: %w", batchEnd, err)
		}
		result.ItemsStored += committed.ItemsStored
		result.MatchesCreated += committed.MatchesCreated
		result.DuplicatesSkipped += committed.DuplicatesSkipped
		result.LastSeenID = batchEnd

		s.log.Debug("batch committed",
			"last_id", batchEnd,
			"items", committed.ItemsStored,
			"matches", committed.MatchesCreated)
	}

	s.log.Info("scan complete",
		"items_scanned", result.ItemsScanned,
		"matches_created", result.MatchesCreated,
		"last_seen_id", result.LastSeenID,
		"dry_run", opts.DryRun)
	return result, nil
}

// matchItems evaluates every distinct phrase against each item and fans a
// hit out to one match per subscriber watching that phrase.
func (s *Scanner) matchItems(items []model.ContentItem, phrases []string, byPhrase map[string][]model.Keyword) []model.Match {
	var matches []model.Match
	for _, item := range items {
		text := matcher.SearchableText(item.Title, item.Body, item.URL)
		for _, hit := range matcher.All(text, phrases) {
			for _, kw := range byPhrase[hit.Keyword] {
				matches = append(matches, model.Match{
					OwnerKind:      model.OwnerUser,
					OwnerID:        kw.SubscriberID,
					ItemRef:        model.ItemRef(item.SourceItemID),
					MatchedKeyword: kw.Phrase,
					Source:         SourceHackerNews,
					Kind:           item.Kind,
					Title:          item.Title,
					Snippet:        hit.Snippet,
					Permalink:      item.SourceURL(),
					Author:         item.Author,
					ItemCreatedAt:  item.CreatedAt,
					Status:         model.StatusPending,
				})
			}
		}
	}
	return matches
}

// groupKeywords returns the distinct phrases in stable order plus the
// keyword rows watching each phrase.
func groupKeywords(keywords []model.Keyword) ([]string, map[string][]model.Keyword) {
	var phrases []string
	byPhrase := make(map[string][]model.Keyword)
	for _, kw := range keywords {
		if _, seen := byPhrase[kw.Phrase]; !seen {
			phrases = append(phrases, kw.Phrase)
		}
		byPhrase[kw.Phrase] = append(byPhrase[kw.Phrase], kw)
	}
	return phrases, byPhrase
}

// scanTime truncates to whole seconds so stored timestamps round-trip
// through the storage layer's layout.
func scanTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
