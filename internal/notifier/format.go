package notifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"scout_bot/internal/model"
)

const (
	snippetMaxChars = 500
	summaryMaxChars = 1000
)

// FormatAlert renders a match, with its latest summary when present, as a
// Telegram message.
func FormatAlert(match *model.Match, summary *model.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", sourceLabel(match.Source), kindLabel(match.Kind))
	if match.Title != "" {
		b.WriteString(match.Title)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "by %s, %s\n", match.Author, humanize.Time(match.ItemCreatedAt))
	fmt.Fprintf(&b, "Keyword: %s\n", match.MatchedKeyword)

	if match.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(truncate(match.Snippet, snippetMaxChars))
		b.WriteString("\n")
	}
	if summary != nil {
		b.WriteString("\nSummary:\n")
		b.WriteString(truncate(summary.Content, summaryMaxChars))
		b.WriteString("\n")
	}
	if match.Permalink != "" {
		b.WriteString("\n")
		b.WriteString(match.Permalink)
	}
	return b.String()
}

// FormatThreadHeader renders the pinned-style message that alerts for a
// source are threaded under.
func FormatThreadHeader(source, ownerName string) string {
	label := sourceLabel(source) + " alerts"
	if ownerName != "" {
		label += ": " + ownerName
	}
	return label
}

func sourceLabel(source string) string {
	switch source {
	case "hackernews":
		return "Hacker News"
	case "reddit":
		return "Reddit"
	default:
		return source
	}
}

func kindLabel(kind model.ItemKind) string {
	switch kind {
	case model.KindComment, model.KindRedditComment:
		return "comment"
	default:
		return "post"
	}
}

// truncate caps s at max bytes without splitting a multi-byte rune; the
// Bot API rejects messages that are not valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return strings.TrimSpace(s[:max]) + "..."
}
