// Package reddit implements the subreddit feed client used by campaign
// scans. It reads the public Atom endpoints, which cover recent posts and
// comments without OAuth.
package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"scout_bot/internal/upstream"
)

const defaultBaseURL = "https://www.reddit.com"

const userAgent = "ScoutBot/1.0 (keyword monitor)"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Post is a subreddit post.
type Post struct {
	ID        string
	Subreddit string
	Title     string
	Body      string
	Author    string
	Permalink string
	Created   time.Time
}

// Comment is a subreddit comment.
type Comment struct {
	ID        string
	Subreddit string
	Body      string
	Author    string
	Permalink string
	LinkTitle string
	Created   time.Time
}

// Client fetches subreddit listings with retry on transient failures.
// Inaccessible subreddits (not found, private) yield empty listings rather
// than errors.
type Client struct {
	client  HTTPClient
	baseURL string
	policy  upstream.Policy
	log     *slog.Logger
}

// New creates a Client. An empty baseURL selects the public site.
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

// Posts returns recent posts from a subreddit, newest first.
func (c *Client) Posts(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	url := fmt.Sprintf("%s/r/%s/new/.rss?limit=%d", c.baseURL, subreddit, limit)
	feed, err := c.fetchFeed(ctx, url)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			c.log.Warn("subreddit not accessible", "subreddit", subreddit)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch posts from r/%s: %w", subreddit, err)
	}

	var posts []Post
	for _, entry := range feed.Items {
		id := strings.TrimPrefix(entry.GUID, "t3_")
		if id == "" {
			continue
		}
		posts = append(posts, Post{
			ID:        id,
			Subreddit: subreddit,
			Title:     entry.Title,
			Body:      flattenHTML(entry.Content),
			Author:    entryAuthor(entry),
			Permalink: entry.Link,
			Created:   entryTime(entry),
		})
	}
	return posts, nil
}

// Comments returns recent comments from a subreddit, newest first.
func (c *Client) Comments(ctx context.Context, subreddit string, limit int) ([]Comment, error) {
	url := fmt.Sprintf("%s/r/%s/comments/.rss?limit=%d", c.baseURL, subreddit, limit)
	feed, err := c.fetchFeed(ctx, url)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			c.log.Warn("subreddit comments not accessible", "subreddit", subreddit)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch comments from r/%s: %w", subreddit, err)
	}

	var comments []Comment
	for _, entry := range feed.Items {
		id := strings.TrimPrefix(entry.GUID, "t1_")
		if id == "" {
			continue
		}
		comments = append(comments, Comment{
			ID:        id,
			Subreddit: subreddit,
			Body:      flattenHTML(entry.Content),
			Author:    entryAuthor(entry),
			Permalink: entry.Link,
			LinkTitle: entry.Title,
			Created:   entryTime(entry),
		})
	}
	return comments, nil
}

func (c *Client) fetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http get: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
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
		parsed, err := gofeed.NewParser().ParseString(string(body))
		if err != nil {
			return fmt.Errorf("parse feed: %w", err)
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func entryAuthor(entry *gofeed.Item) string {
	if entry.Author == nil || entry.Author.Name == "" {
		return "[deleted]"
	}
	return strings.TrimPrefix(entry.Author.Name, "/u/")
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}

// flattenHTML reduces an entry's HTML content to plain text for matching.
func flattenHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
