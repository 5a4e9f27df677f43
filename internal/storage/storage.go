// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"scout_bot/internal/model"
)

// Sentinel errors returned by Storage implementations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a record with the same dedupe key already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidTransition indicates a match status change that the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ScanBatch is one linear-feed batch committed atomically: the items
// fetched, the matches they produced, and the cursor position to advance to.
type ScanBatch struct {
	Source  string
	LastID  int64
	Items   []model.ContentItem
	Matches []model.Match
}

// BatchResult reports what a committed batch actually changed.
type BatchResult struct {
	ItemsStored       int
	MatchesCreated    int
	DuplicatesSkipped int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	// Cursors. GetCursor creates the cursor at position 0 on first access;
	// AdvanceCursor never moves the position backward.
	GetCursor(ctx context.Context, source string) (*model.Cursor, error)
	AdvanceCursor(ctx context.Context, source string, lastSeenID int64) error

	GetOrCreateSubscriber(ctx context.Context, chatID int64) (*model.Subscriber, error)
	GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error)

	CreateKeyword(ctx context.Context, k *model.Keyword) error
	GetKeyword(ctx context.Context, id int64) (*model.Keyword, error)
	ListKeywords(ctx context.Context, subscriberID int64) ([]model.Keyword, error)
	ListActiveKeywords(ctx context.Context) ([]model.Keyword, error)
	UpdateKeyword(ctx context.Context, k *model.Keyword) error
	DeleteKeyword(ctx context.Context, id int64) error

	// StoreItem is idempotent on SourceItemID; it reports whether a new
	// row was inserted.
	StoreItem(ctx context.Context, item *model.ContentItem) (bool, error)
	GetItem(ctx context.Context, sourceItemID int64) (*model.ContentItem, error)

	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error)
	AddCampaignSubreddit(ctx context.Context, s *model.CampaignSubreddit) error
	AddCampaignKeyword(ctx context.Context, k *model.CampaignKeyword) error

	// CreateMatch returns ErrDuplicate when the (owner, item, keyword)
	// tuple already has a match.
	CreateMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id int64) (*model.Match, error)
	ListPendingMatches(ctx context.Context, limit int) ([]model.Match, error)
	// ListUnprocessedMatches returns pending matches that have no summary yet.
	ListUnprocessedMatches(ctx context.Context, limit int) ([]model.Match, error)
	UpdateMatchStatus(ctx context.Context, id int64, next model.MatchStatus) error
	MarkMatchSent(ctx context.Context, id int64, messageID int64) error

	// CommitScanBatch persists a linear-feed batch and advances the cursor
	// in a single transaction.
	CommitScanBatch(ctx context.Context, batch ScanBatch) (BatchResult, error)
	// CommitCampaignScan persists a campaign's new matches and its
	// last-scanned timestamp in a single transaction.
	CommitCampaignScan(ctx context.Context, campaignID int64, scannedAt time.Time, matches []model.Match) (created, duplicates int, err error)

	// CreateSummary assigns the next version number for the match.
	CreateSummary(ctx context.Context, s *model.Summary) error
	LatestSummary(ctx context.Context, matchID int64) (*model.Summary, error)

	GetThread(ctx context.Context, ownerKind model.OwnerKind, ownerID int64, source string) (*model.Thread, error)
	// CreateThread is idempotent: if a thread already exists for the
	// (owner, source) pair the existing one is returned.
	CreateThread(ctx context.Context, t *model.Thread) (*model.Thread, error)

	Close() error
}
