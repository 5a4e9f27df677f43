package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scout_bot/internal/matcher"
	"scout_bot/internal/model"
	"scout_bot/internal/reddit"
	"scout_bot/internal/storage"
)

// SourceReddit is the match source name for campaign scans.
const SourceReddit = "reddit"

const (
	// postLimit and commentLimit bound how much of each listing is read
	// per scan.
	postLimit    = 25
	commentLimit = 100
)

// Listings is the subreddit feed consumed by campaign scans.
type Listings interface {
	Posts(ctx context.Context, subreddit string, limit int) ([]reddit.Post, error)
	Comments(ctx context.Context, subreddit string, limit int) ([]reddit.Comment, error)
}

// CampaignResult summarizes one campaign's scan.
type CampaignResult struct {
	CampaignID        int64
	CampaignName      string
	SubredditsScanned int
	PostsChecked      int
	CommentsChecked   int
	NewMatches        int
	DuplicatesSkipped int
	// Errors collects per-subreddit failures; a failing subreddit never
	// aborts the rest of the campaign.
	Errors []string
}

// CampaignScanner scans each due campaign's subreddits for keyword hits.
type CampaignScanner struct {
	store storage.Storage
	feeds Listings
	log   *slog.Logger
}

// NewCampaignScanner creates a CampaignScanner.
func NewCampaignScanner(store storage.Storage, feeds Listings, log *slog.Logger) *CampaignScanner {
	return &CampaignScanner{store: store, feeds: feeds, log: log}
}

// ScanDue scans every campaign whose interval has elapsed. Campaign
// failures are recorded in that campaign's result, never propagated.
func (s *CampaignScanner) ScanDue(ctx context.Context, now time.Time, dryRun bool) ([]CampaignResult, error) {
	campaigns, err := s.store.ListDueCampaigns(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}

	results := make([]CampaignResult, 0, len(campaigns))
	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.ScanCampaign(ctx, &campaigns[i], dryRun))
	}
	return results, nil
}

// ScanCampaign scans one campaign's subreddits. The campaign's
// last-scanned timestamp advances even when some subreddits fail, so a
// permanently broken subreddit cannot wedge the schedule.
func (s *CampaignScanner) ScanCampaign(ctx context.Context, campaign *model.Campaign, dryRun bool) CampaignResult {
	result := CampaignResult{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
	}
	phrases := campaign.ActiveKeywords()

	var matches []model.Match
	for _, subreddit := range campaign.ActiveSubreddits() {
		result.SubredditsScanned++

		posts, err := s.feeds.Posts(ctx, subreddit, postLimit)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("r/%s posts: %v", subreddit, err))
		}
		result.PostsChecked += len(posts)
		for _, post := range posts {
			hit, ok := matcher.MatchPost(post.Title, post.Body, phrases)
			if !ok {
				continue
			}
			matches = append(matches, model.Match{
				OwnerKind:      model.OwnerCampaign,
				OwnerID:        campaign.ID,
				ItemRef:        "t3_" + post.ID,
				MatchedKeyword: hit.Keyword,
				Source:         SourceReddit,
				Kind:           model.KindRedditPost,
				Title:          post.Title,
				Snippet:        hit.Snippet,
				Permalink:      post.Permalink,
				Author:         post.Author,
				ItemCreatedAt:  post.Created,
				Status:         model.StatusPending,
			})
		}

		comments, err := s.feeds.Comments(ctx, subreddit, commentLimit)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("r/%s comments: %v", subreddit, err))
		}
		result.CommentsChecked += len(comments)
		for _, comment := range comments {
			hit, ok := matcher.MatchComment(comment.Body, phrases)
			if !ok {
				continue
			}
			matches = append(matches, model.Match{
				OwnerKind:      model.OwnerCampaign,
				OwnerID:        campaign.ID,
				ItemRef:        "t1_" + comment.ID,
				MatchedKeyword: hit.Keyword,
				Source:         SourceReddit,
				Kind:           model.KindRedditComment,
				Title:          comment.LinkTitle,
				Snippet:        hit.Snippet,
				Permalink:      comment.Permalink,
				Author:         comment.Author,
				ItemCreatedAt:  comment.Created,
				Status:         model.StatusPending,
			})
		}
	}

	if dryRun {
		result.NewMatches = len(matches)
		s.log.Info("campaign scan (dry run)",
			"campaign", campaign.Name,
			"would_create", len(matches))
		return result
	}

	created, duplicates, err := s.store.CommitCampaignScan(ctx, campaign.ID, scanTime(time.Now()), matches)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("commit: %v", err))
		return result
	}
	result.NewMatches = created
	result.DuplicatesSkipped = duplicates

	s.log.Info("campaign scan complete",
		"campaign", campaign.Name,
		"subreddits", result.SubredditsScanned,
		"new_matches", created,
		"duplicates", duplicates,
		"errors", len(result.Errors))
	return result
}
