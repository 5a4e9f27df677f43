package hn

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"scout_bot/internal/model"
	"scout_bot/internal/upstream"
)

type mockHTTP struct {
	// responses maps a URL path suffix to a canned body.
	responses map[string]string
	status    int
	header    http.Header
	calls     atomic.Int64
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	body := ""
	for suffix, b := range m.responses {
		if strings.HasSuffix(req.URL.Path, suffix) {
			body = b
			break
		}
	}
	header := m.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastClient(httpClient HTTPClient) *Client {
	c := New(httpClient, "https://hn.test/v0", testLogger())
	c.SetRetryPolicy(upstream.Policy{Attempts: 2, BaseDelay: time.Millisecond})
	return c
}

func TestMaxItemID(t *testing.T) {
	c := fastClient(&mockHTTP{responses: map[string]string{"/maxitem.json": "1000"}})

	got, err := c.MaxItemID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(int64(1000), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestItem(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *model.ContentItem
	}{
		{
			name: "story",
			body: `{"id": 42, "type": "story", "by": "alice", "time": 1700000000,
				"title": "Show HN: a thing", "url": "https://example.com", "score": 5}`,
			want: &model.ContentItem{
				SourceItemID: 42,
				Kind:         model.KindStory,
				Title:        "Show HN: a thing",
				URL:          "https://example.com",
				Author:       "alice",
				Score:        5,
				CreatedAt:    time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			name: "comment",
			body: `{"id": 43, "type": "comment", "by": "bob", "time": 1700000000,
				"text": "nice work", "parent": 42}`,
			want: &model.ContentItem{
				SourceItemID: 43,
				Kind:         model.KindComment,
				Body:         "nice work",
				Author:       "bob",
				ParentID:     42,
				CreatedAt:    time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			name: "null body for unknown id",
			body: "null",
			want: nil,
		},
		{
			name: "deleted item skipped",
			body: `{"id": 44, "type": "story", "deleted": true, "by": "x", "time": 1}`,
			want: nil,
		},
		{
			name: "dead item skipped",
			body: `{"id": 45, "type": "story", "dead": true, "by": "x", "time": 1}`,
			want: nil,
		},
		{
			name: "job item skipped",
			body: `{"id": 46, "type": "job", "by": "x", "time": 1, "title": "Hiring"}`,
			want: nil,
		},
		{
			name: "missing author skipped",
			body: `{"id": 47, "type": "story", "time": 1, "title": "orphan"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fastClient(&mockHTTP{responses: map[string]string{".json": tt.body}})
			got, err := c.Item(context.Background(), 42)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("item mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestItemNotFound(t *testing.T) {
	c := fastClient(&mockHTTP{status: http.StatusNotFound})

	got, err := c.Item(context.Background(), 999)
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil item, got %+v", got)
	}
}

func TestItemRetriesServerErrors(t *testing.T) {
	transport := &mockHTTP{status: http.StatusInternalServerError}
	c := fastClient(transport)

	_, err := c.Item(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff(int64(2), transport.calls.Load()); diff != "" {
		t.Errorf("expected one retry (-want +got):\n%s", diff)
	}
}

func TestItemRateLimited(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "0")
	transport := &mockHTTP{status: http.StatusTooManyRequests, header: header}
	c := fastClient(transport)

	_, err := c.Item(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if transport.calls.Load() < 2 {
		t.Errorf("rate limits must be retried, got %d calls", transport.calls.Load())
	}
}

func TestItemsBatchDropsFailures(t *testing.T) {
	// Item 2 decodes to null and item 3 is deleted; only 1 and 4 survive.
	transport := &mockHTTP{responses: map[string]string{
		"/item/1.json": `{"id": 1, "type": "story", "by": "a", "time": 1, "title": "one"}`,
		"/item/2.json": "null",
		"/item/3.json": `{"id": 3, "type": "story", "deleted": true, "by": "c", "time": 1}`,
		"/item/4.json": `{"id": 4, "type": "comment", "by": "d", "time": 1, "text": "four"}`,
	}}
	c := fastClient(transport)

	items := c.ItemsBatch(context.Background(), []int64{1, 2, 3, 4}, 2)

	var ids []int64
	for _, item := range items {
		ids = append(ids, item.SourceItemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if diff := cmp.Diff([]int64{1, 4}, ids); diff != "" {
		t.Errorf("surviving IDs mismatch (-want +got):\n%s", diff)
	}
}
