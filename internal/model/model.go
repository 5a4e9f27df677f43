// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// ItemKind discriminates the content variants arriving from the two feeds.
type ItemKind string

// Supported item kinds.
const (
	KindStory         ItemKind = "story"
	KindComment       ItemKind = "comment"
	KindRedditPost    ItemKind = "post_reddit"
	KindRedditComment ItemKind = "comment_reddit"
)

// ContentItem is a stored item from the linear feed.
// Items are immutable once stored; re-storing the same SourceItemID is a no-op.
type ContentItem struct {
	ID           int64
	SourceItemID int64
	Kind         ItemKind
	Title        string
	Body         string
	URL          string
	Author       string
	Score        int
	ParentID     int64
	CreatedAt    time.Time
	DiscoveredAt time.Time
}

// SourceURL returns the public page for the item.
func (c *ContentItem) SourceURL() string {
	return ItemURL(c.SourceItemID)
}

// Cursor tracks the last processed position for a linear feed.
type Cursor struct {
	SourceName string
	LastSeenID int64
	LastScanAt *time.Time
}

// Subscriber is a Telegram chat that owns keyword subscriptions.
type Subscriber struct {
	ID        int64
	ChatID    int64
	CreatedAt time.Time
}

// Keyword is a single phrase a subscriber watches on the linear feed.
// Single-word phrases match on word boundaries; multi-word phrases match
// as case-insensitive substrings.
type Keyword struct {
	ID           int64
	SubscriberID int64
	Phrase       string
	IsActive     bool
	CreatedAt    time.Time
}

// Campaign groups subreddits and keywords scanned together on an interval.
type Campaign struct {
	ID            int64
	Name          string
	ChatID        int64
	SystemPrompt  string
	ScanInterval  int // minutes
	IsActive      bool
	LastScannedAt *time.Time
	CreatedAt     time.Time

	Subreddits []CampaignSubreddit
	Keywords   []CampaignKeyword
}

// ActiveSubreddits returns the names of the campaign's active subreddits.
func (c *Campaign) ActiveSubreddits() []string {
	var names []string
	for _, s := range c.Subreddits {
		if s.IsActive {
			names = append(names, s.Name)
		}
	}
	return names
}

// ActiveKeywords returns the campaign's active keyword phrases.
func (c *Campaign) ActiveKeywords() []string {
	var phrases []string
	for _, k := range c.Keywords {
		if k.IsActive {
			phrases = append(phrases, k.Phrase)
		}
	}
	return phrases
}

// CampaignSubreddit is one subreddit watched by a campaign.
type CampaignSubreddit struct {
	ID         int64
	CampaignID int64
	Name       string
	IsActive   bool
}

// CampaignKeyword is one phrase watched by a campaign.
type CampaignKeyword struct {
	ID         int64
	CampaignID int64
	Phrase     string
	IsActive   bool
}

// OwnerKind identifies who a match belongs to.
type OwnerKind string

// Supported owner kinds.
const (
	OwnerUser     OwnerKind = "user"
	OwnerCampaign OwnerKind = "campaign"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

// Match lifecycle states. Done, Skipped and Dismissed are terminal;
// nothing ever returns to Pending.
const (
	StatusPending   MatchStatus = "pending"
	StatusSent      MatchStatus = "sent"
	StatusDone      MatchStatus = "done"
	StatusSkipped   MatchStatus = "skipped"
	StatusDismissed MatchStatus = "dismissed"
)

// Terminal reports whether no further status transitions are allowed.
func (s MatchStatus) Terminal() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusDismissed
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSent || next == StatusDone ||
			next == StatusSkipped || next == StatusDismissed
	case StatusSent:
		return next == StatusDone || next == StatusSkipped || next == StatusDismissed
	default:
		return false
	}
}

// Match records one keyword hit against one content item for one owner.
// At most one match exists per (owner kind, owner, item ref, keyword).
type Match struct {
	ID             int64
	OwnerKind      OwnerKind
	OwnerID        int64
	ItemRef        string
	MatchedKeyword string
	Source         string
	Kind           ItemKind
	Title          string
	Snippet        string
	Permalink      string
	Author         string
	ItemCreatedAt  time.Time
	DiscoveredAt   time.Time
	Status         MatchStatus
	CompletedAt    *time.Time
	MessageID      int64
}

// Summary is one version of AI-generated text attached to a match.
type Summary struct {
	ID        int64
	MatchID   int64
	Content   string
	Version   int
	CreatedAt time.Time
}

// Thread is the per-(owner, source) delivery destination. Alerts for a
// source are sent as replies to the thread's header message.
type Thread struct {
	ID        int64
	OwnerKind OwnerKind
	OwnerID   int64
	Source    string
	MessageID int64
	CreatedAt time.Time
}

// ItemRef builds the source-prefixed reference for a linear-feed item,
// used as the dedupe key on matches.
func ItemRef(sourceItemID int64) string {
	return fmt.Sprintf("hn:%d", sourceItemID)
}

// ItemURL returns the Hacker News page for a linear-feed item ID.
func ItemURL(sourceItemID int64) string {
	return fmt.Sprintf("https://news.ycombinator.com/item?id=%d", sourceItemID)
}
