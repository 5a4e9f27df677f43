// Package matcher implements keyword and phrase matching over content text.
package matcher

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// contextChars is how much text is kept on each side of a match when
// building the snippet.
const contextChars = 150

// Result is a single keyword hit with its surrounding context.
type Result struct {
	Keyword string
	Snippet string
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// pattern compiles the case-insensitive pattern for a keyword: single words
// get word boundaries so "python" never matches "pythonic"; multi-word
// phrases are plain substring patterns. Keywords are matched literally.
func pattern(keyword string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()

	if re, ok := patternCache[keyword]; ok {
		return re
	}
	expr := regexp.QuoteMeta(strings.ToLower(keyword))
	if !strings.Contains(keyword, " ") {
		expr = `\b` + expr + `\b`
	}
	re := regexp.MustCompile(`(?i)` + expr)
	patternCache[keyword] = re
	return re
}

// First returns the first keyword that matches the text, testing keywords in
// the given order. Empty text or an empty keyword list never matches.
func First(text string, keywords []string) (Result, bool) {
	if text == "" {
		return Result{}, false
	}
	for _, keyword := range keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		if loc := pattern(trimmed).FindStringIndex(text); loc != nil {
			return Result{
				Keyword: keyword,
				Snippet: extractContext(text, loc[0], loc[1]),
			}, true
		}
	}
	return Result{}, false
}

// All evaluates every keyword against the text and returns every hit.
func All(text string, keywords []string) []Result {
	if text == "" {
		return nil
	}
	var results []Result
	for _, keyword := range keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		if loc := pattern(trimmed).FindStringIndex(text); loc != nil {
			results = append(results, Result{
				Keyword: keyword,
				Snippet: extractContext(text, loc[0], loc[1]),
			})
		}
	}
	return results
}

// MatchPost checks a post's title first, then its body; a title hit wins.
func MatchPost(title, body string, keywords []string) (Result, bool) {
	if r, ok := First(title, keywords); ok {
		return r, true
	}
	return First(body, keywords)
}

// MatchComment checks a comment's body.
func MatchComment(body string, keywords []string) (Result, bool) {
	return First(body, keywords)
}

// SearchableText combines the matchable fields of a linear-feed item:
// title, body and URL for stories, body only for comments.
func SearchableText(title, body, url string) string {
	var parts []string
	if title != "" {
		parts = append(parts, title)
	}
	if body != "" {
		parts = append(parts, body)
	}
	if url != "" {
		parts = append(parts, url)
	}
	return strings.Join(parts, " ")
}

// extractContext cuts up to contextChars characters either side of the match
// span, snapped outward to word boundaries so no word is cut in half, with
// ellipses only on the edges that were actually truncated. Window edges
// never split a multi-byte rune; the snippet is always valid UTF-8.
func extractContext(text string, matchStart, matchEnd int) string {
	start := matchStart - contextChars
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := matchEnd + contextChars
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	if start > 0 {
		if pos := strings.Index(text[start:], " "); pos != -1 && start+pos < matchStart {
			start += pos + 1
		}
	}
	if end < len(text) {
		if pos := strings.LastIndex(text[matchEnd:end], " "); pos != -1 {
			end = matchEnd + pos
		}
	}

	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet
}
