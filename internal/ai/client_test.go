package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	openai "github.com/sashabaranov/go-openai"

	"scout_bot/internal/upstream"
)

// fakeAPI returns queued responses, one per call.
type fakeAPI struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	calls     int

	requests []openai.ChatCompletionRequest
}

func (f *fakeAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return openai.ChatCompletionResponse{}, errors.New("no more responses")
}

func completionResponse(content string, tokens int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
		Usage: openai.Usage{TotalTokens: tokens},
	}
}

func testClient(api completionAPI) *Client {
	c := &Client{
		api:    api,
		model:  "test/model",
		policy: upstream.Policy{Attempts: 2, BaseDelay: time.Millisecond},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return c
}

func TestChat(t *testing.T) {
	api := &fakeAPI{responses: []openai.ChatCompletionResponse{
		completionResponse("  A concise summary.  ", 87),
	}}
	c := testClient(api)

	got, err := c.Chat(context.Background(), "be brief", []string{"first", "second"}, 512)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	want := Completion{Content: "A concise summary.", TokensUsed: 87}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("completion mismatch (-want +got):\n%s", diff)
	}

	req := api.requests[0]
	if diff := cmp.Diff("test/model", req.Model); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(512, req.MaxTokens); diff != "" {
		t.Errorf("max tokens mismatch (-want +got):\n%s", diff)
	}
	roles := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]string{"system", "user", "user"}, roles); diff != "" {
		t.Errorf("message roles mismatch (-want +got):\n%s", diff)
	}
}

func TestChatRetriesServerErrors(t *testing.T) {
	api := &fakeAPI{
		errs: []error{&openai.APIError{HTTPStatusCode: http.StatusBadGateway}},
		responses: []openai.ChatCompletionResponse{
			{}, // consumed by the failing first call
			completionResponse("recovered", 10),
		},
	}
	c := testClient(api)

	got, err := c.Chat(context.Background(), "p", []string{"m"}, 100)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if diff := cmp.Diff("recovered", got.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	if api.calls != 2 {
		t.Errorf("expected one retry, got %d calls", api.calls)
	}
}

func TestChatAuthErrorFailsFast(t *testing.T) {
	api := &fakeAPI{errs: []error{
		&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"},
		&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"},
	}}
	c := testClient(api)

	_, err := c.Chat(context.Background(), "p", []string{"m"}, 100)
	var authErr *upstream.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if api.calls != 1 {
		t.Errorf("auth failures must not be retried, got %d calls", api.calls)
	}
}

func TestChatEmptyContent(t *testing.T) {
	api := &fakeAPI{responses: []openai.ChatCompletionResponse{
		completionResponse("   ", 5),
		completionResponse("   ", 5),
	}}
	c := testClient(api)

	if _, err := c.Chat(context.Background(), "p", []string{"m"}, 100); err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want any
	}{
		{
			name: "rate limit",
			in:   &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			want: &upstream.RateLimitError{},
		},
		{
			name: "forbidden",
			in:   &openai.APIError{HTTPStatusCode: http.StatusForbidden, Message: "denied"},
			want: &upstream.AuthError{},
		},
		{
			name: "server error",
			in:   &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable},
			want: &upstream.StatusError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			switch tt.want.(type) {
			case *upstream.RateLimitError:
				var e *upstream.RateLimitError
				if !errors.As(got, &e) {
					t.Errorf("got %T, want rate limit error", got)
				}
			case *upstream.AuthError:
				var e *upstream.AuthError
				if !errors.As(got, &e) {
					t.Errorf("got %T, want auth error", got)
				}
			case *upstream.StatusError:
				var e *upstream.StatusError
				if !errors.As(got, &e) {
					t.Errorf("got %T, want status error", got)
				}
			}
		})
	}

	t.Run("plain error passes through", func(t *testing.T) {
		in := errors.New("network down")
		if got := classify(in); got != in {
			t.Errorf("got %v, want the original error", got)
		}
	})
}
