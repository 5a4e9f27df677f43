package bot

import (
	"fmt"
	"strings"

	"scout_bot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

// FormatKeywordList formats a subscriber's keywords for display.
func FormatKeywordList(keywords []model.Keyword) string {
	if len(keywords) == 0 {
		return "You have no keywords yet. Use /watch <phrase> to add one."
	}
	var b strings.Builder
	b.WriteString("Your keywords:\n")
	for _, kw := range keywords {
		status := statusActive
		if !kw.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n#%d %s [%s]\n", kw.ID, kw.Phrase, status)
	}
	return b.String()
}

// FormatCampaignList formats a chat's campaigns for display.
func FormatCampaignList(campaigns []model.Campaign) string {
	if len(campaigns) == 0 {
		return "No campaigns are configured for this chat."
	}
	var b strings.Builder
	b.WriteString("Campaigns:\n")
	for _, c := range campaigns {
		status := statusActive
		if !c.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n#%d %s  (every %d min) [%s]\n", c.ID, c.Name, c.ScanInterval, status)

		if subs := c.ActiveSubreddits(); len(subs) > 0 {
			fmt.Fprintf(&b, "   subreddits: r/%s\n", strings.Join(subs, ", r/"))
		} else {
			b.WriteString("   no active subreddits\n")
		}
		if kws := c.ActiveKeywords(); len(kws) > 0 {
			fmt.Fprintf(&b, "   keywords: %s\n", strings.Join(kws, ", "))
		} else {
			b.WriteString("   no active keywords\n")
		}
		if c.LastScannedAt != nil {
			fmt.Fprintf(&b, "   last scan: %s\n", c.LastScannedAt.Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String()
}
