// Package hn implements the Hacker News API client for the linear item feed.
package hn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scout_bot/internal/model"
	"scout_bot/internal/upstream"
)

const defaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches items from the Hacker News API with retry on transient
// failures.
type Client struct {
	client  HTTPClient
	baseURL string
	policy  upstream.Policy
	log     *slog.Logger
}

// New creates a Client. An empty baseURL selects the public API.
func New(client HTTPClient, baseURL string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  client,
		baseURL: baseURL,
		policy:  upstream.DefaultPolicy(),
		log:     log,
	}
}

// SetRetryPolicy overrides the default retry schedule (useful for testing).
func (c *Client) SetRetryPolicy(p upstream.Policy) {
	c.policy = p
}

// apiItem is the wire shape of one item.
type apiItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Parent  int64  `json:"parent"`
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http get: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return upstream.ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			return &upstream.RateLimitError{
				RetryAfter: upstream.ParseRetryAfter(resp.Header.Get("Retry-After")),
			}
		case resp.StatusCode != http.StatusOK:
			return &upstream.StatusError{Code: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// MaxItemID returns the current maximum item ID on the feed.
func (c *Client) MaxItemID(ctx context.Context) (int64, error) {
	var max int64
	if err := c.get(ctx, c.baseURL+"/maxitem.json", &max); err != nil {
		return 0, fmt.Errorf("fetch max item id: %w", err)
	}
	if max <= 0 {
		return 0, fmt.Errorf("unexpected max item id %d", max)
	}
	return max, nil
}

// Item fetches a single item by ID. It returns (nil, nil) when the item does
// not exist, is deleted or dead, or is neither a story nor a comment.
func (c *Client) Item(ctx context.Context, id int64) (*model.ContentItem, error) {
	var raw json.RawMessage
	err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &raw)
	if errors.Is(err, upstream.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}

	// The API returns a literal null for unknown IDs.
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var item apiItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item %d: %w", id, err)
	}
	return toContentItem(item), nil
}

// ItemsBatch fetches multiple items with bounded concurrency. Failures for
// individual IDs are logged and dropped; the successfully fetched items are
// returned in no particular order.
func (c *Client) ItemsBatch(ctx context.Context, ids []int64, concurrency int) []model.ContentItem {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu    sync.Mutex
		items []model.ContentItem
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			item, err := c.Item(ctx, id)
			if err != nil {
				c.log.Warn("fetch item failed", "id", id, "error", err)
				return nil
			}
			if item == nil {
				return nil
			}
			mu.Lock()
			items = append(items, *item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// toContentItem converts an API item, returning nil for deleted, dead, or
// non-story-non-comment items and for items missing required fields.
func toContentItem(item apiItem) *model.ContentItem {
	if item.Deleted || item.Dead {
		return nil
	}
	if item.Type != "story" && item.Type != "comment" {
		return nil
	}
	if item.ID == 0 || item.By == "" || item.Time == 0 {
		return nil
	}

	kind := model.KindStory
	if item.Type == "comment" {
		kind = model.KindComment
	}
	return &model.ContentItem{
		SourceItemID: item.ID,
		Kind:         kind,
		Title:        item.Title,
		Body:         item.Text,
		URL:          item.URL,
		Author:       item.By,
		Score:        item.Score,
		ParentID:     item.Parent,
		CreatedAt:    time.Unix(item.Time, 0).UTC(),
	}
}
