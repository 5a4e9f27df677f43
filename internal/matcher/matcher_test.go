package matcher

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestFirstWordBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		wantKw   string
		wantOK   bool
	}{
		{
			name:     "single word matches",
			text:     "I love python programming",
			keywords: []string{"python"},
			wantKw:   "python",
			wantOK:   true,
		},
		{
			name:     "single word does not match inside larger word",
			text:     "this is very pythonic code",
			keywords: []string{"python"},
			wantOK:   false,
		},
		{
			name:     "case insensitive",
			text:     "Python is great",
			keywords: []string{"python"},
			wantKw:   "python",
			wantOK:   true,
		},
		{
			name:     "word at end of text",
			text:     "we migrated to python",
			keywords: []string{"python"},
			wantKw:   "python",
			wantOK:   true,
		},
		{
			name:     "phrase matches as substring",
			text:     "looking for machine learning engineers",
			keywords: []string{"machine learning"},
			wantKw:   "machine learning",
			wantOK:   true,
		},
		{
			name:     "phrase is case insensitive",
			text:     "Machine Learning is hot",
			keywords: []string{"machine learning"},
			wantKw:   "machine learning",
			wantOK:   true,
		},
		{
			name:     "first matching keyword wins",
			text:     "go and rust are both fine",
			keywords: []string{"zig", "rust", "go"},
			wantKw:   "rust",
			wantOK:   true,
		},
		{
			name:     "regex metacharacters are literal",
			text:     "we use c++ here",
			keywords: []string{"c++"},
			wantKw:   "c++",
			wantOK:   true,
		},
		{
			name:     "empty text",
			text:     "",
			keywords: []string{"python"},
			wantOK:   false,
		},
		{
			name:     "empty keyword list",
			text:     "some text",
			keywords: nil,
			wantOK:   false,
		},
		{
			name:     "blank keyword skipped",
			text:     "some text",
			keywords: []string{"  ", "text"},
			wantKw:   "text",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := First(tt.text, tt.keywords)
			if ok != tt.wantOK {
				t.Fatalf("First() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.wantKw, got.Keyword); diff != "" {
				t.Errorf("keyword mismatch (-want +got):\n%s", diff)
			}
			if got.Snippet == "" {
				t.Error("expected non-empty snippet")
			}
		})
	}
}

func TestAll(t *testing.T) {
	text := "rust and go make a good pair, but rust wins on safety"

	results := All(text, []string{"rust", "go", "zig"})

	var keywords []string
	for _, r := range results {
		keywords = append(keywords, r.Keyword)
	}
	want := []string{"rust", "go"}
	if diff := cmp.Diff(want, keywords); diff != "" {
		t.Errorf("All keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchPostTitleWins(t *testing.T) {
	title := "Migrating our stack to rust"
	body := "We also evaluated go but rust won."

	got, ok := MatchPost(title, body, []string{"rust"})
	if !ok {
		t.Fatal("expected a match")
	}
	if !strings.Contains(got.Snippet, "Migrating") {
		t.Errorf("expected snippet from title, got %q", got.Snippet)
	}
}

func TestMatchPostFallsBackToBody(t *testing.T) {
	got, ok := MatchPost("Weekly thread", "anyone tried rust for embedded?", []string{"rust"})
	if !ok {
		t.Fatal("expected a match")
	}
	if !strings.Contains(got.Snippet, "embedded") {
		t.Errorf("expected snippet from body, got %q", got.Snippet)
	}
}

func TestExtractContext(t *testing.T) {
	t.Run("short text has no ellipses", func(t *testing.T) {
		got, ok := First("just a rust mention", []string{"rust"})
		if !ok {
			t.Fatal("expected a match")
		}
		if diff := cmp.Diff("just a rust mention", got.Snippet); diff != "" {
			t.Errorf("snippet mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("long text is trimmed with ellipses", func(t *testing.T) {
		prefix := strings.Repeat("aaaa ", 60)
		suffix := strings.Repeat("bbbb ", 60)
		got, ok := First(prefix+"rust"+" "+suffix, []string{"rust"})
		if !ok {
			t.Fatal("expected a match")
		}
		if !strings.HasPrefix(got.Snippet, "...") {
			t.Errorf("expected leading ellipsis, got %q", got.Snippet)
		}
		if !strings.HasSuffix(got.Snippet, "...") {
			t.Errorf("expected trailing ellipsis, got %q", got.Snippet)
		}
		if !strings.Contains(got.Snippet, "rust") {
			t.Errorf("snippet lost the match: %q", got.Snippet)
		}
		// Each side keeps roughly contextChars characters plus the markers.
		if len(got.Snippet) > 2*contextChars+len("rust")+10 {
			t.Errorf("snippet too long: %d chars", len(got.Snippet))
		}
	})

	t.Run("snaps to word boundaries", func(t *testing.T) {
		prefix := strings.Repeat("longword ", 40)
		got, ok := First(prefix+"rust trailing", []string{"rust"})
		if !ok {
			t.Fatal("expected a match")
		}
		body := strings.TrimPrefix(got.Snippet, "...")
		if strings.HasPrefix(body, "ongword") || strings.HasPrefix(body, "ngword") {
			t.Errorf("snippet starts mid-word: %q", body[:20])
		}
	})

	t.Run("window edge inside a multi-byte rune", func(t *testing.T) {
		// The leading window edge lands in the middle of the three-byte
		// rune: no spaces to snap to, so only the rune walk keeps the
		// snippet valid.
		text := strings.Repeat("a", 9) + "日" + strings.Repeat("a", 148) + "-rust-" + strings.Repeat("b", 200)
		got, ok := First(text, []string{"rust"})
		if !ok {
			t.Fatal("expected a match")
		}
		if !utf8.ValidString(got.Snippet) {
			t.Fatalf("snippet is not valid UTF-8: %q", got.Snippet)
		}
	})

	t.Run("cjk text stays valid", func(t *testing.T) {
		text := strings.Repeat("日本語のテキスト", 40) + " rust " + strings.Repeat("絵文字🚀", 60)
		got, ok := First(text, []string{"rust"})
		if !ok {
			t.Fatal("expected a match")
		}
		if !utf8.ValidString(got.Snippet) {
			t.Fatalf("snippet is not valid UTF-8: %q", got.Snippet)
		}
		if !strings.Contains(got.Snippet, "rust") {
			t.Errorf("snippet lost the match: %q", got.Snippet)
		}
	})
}

func TestSearchableText(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		url   string
		want  string
	}{
		{
			name:  "all fields",
			title: "Title",
			body:  "Body",
			url:   "https://example.com",
			want:  "Title Body https://example.com",
		},
		{
			name: "comment has body only",
			body: "just a comment",
			want: "just a comment",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchableText(tt.title, tt.body, tt.url)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
