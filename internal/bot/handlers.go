package bot

import (
	"context"
	"fmt"
	"strings"

	"scout_bot/internal/model"
)

// maxPhraseLen bounds watched phrases so keyboard snippets stay readable.
const maxPhraseLen = 100

// defaultCampaignInterval is the scan cadence for newly created campaigns,
// in minutes.
const defaultCampaignInterval = 30

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if _, err := b.store.GetOrCreateSubscriber(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, `Welcome to Scout Bot!

Watch keywords on Hacker News and get an alert with an AI summary
whenever a new story or comment mentions one.

Quick start:
1. /watch <phrase> — watch a keyword or phrase
2. /keywords — show your watched keywords

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Keyword management:
/watch <phrase> — watch a keyword or phrase
/unwatch <id> — stop watching
/keywords — show your keywords
/pause <id> — pause a keyword
/resume <id> — resume a keyword

Campaigns:
/campaigns — show subreddit campaigns for this chat
/newcampaign <name> — create a campaign
/addsubreddit <id> <subreddit> — watch a subreddit
/addkeyword <id> <phrase> — watch a phrase on the campaign's subreddits

Single words match on word boundaries ("go" will not match "going").
Multi-word phrases match as substrings. Matching is case-insensitive.

Each alert has buttons: Done and Skip close it out, Regenerate rewrites
the summary, Dismiss removes the alert.`)
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) {
	phrase, err := ParsePhraseArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /watch <phrase>\n%v", err))
		return
	}

	sub, err := b.store.GetOrCreateSubscriber(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	existing, err := b.store.ListKeywords(ctx, sub.ID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	for _, kw := range existing {
		if kw.Phrase == phrase {
			b.reply(chatID, fmt.Sprintf("You already watch \"%s\" (#%d).", phrase, kw.ID))
			return
		}
	}

	kw := &model.Keyword{
		SubscriberID: sub.ID,
		Phrase:       phrase,
		IsActive:     true,
	}
	if err := b.store.CreateKeyword(ctx, kw); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save keyword: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Watching \"%s\" (#%d). You will get alerts for new mentions.", phrase, kw.ID))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unwatch <id>")
		return
	}

	kw, err := b.ownedKeyword(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Keyword #%d not found.", id))
		return
	}

	if err := b.store.DeleteKeyword(ctx, kw.ID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Stopped watching \"%s\" (#%d).", kw.Phrase, kw.ID))
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64) {
	sub, err := b.store.GetOrCreateSubscriber(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	keywords, err := b.store.ListKeywords(ctx, sub.ID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatKeywordList(keywords))
}

func (b *Bot) handlePause(ctx context.Context, chatID int64, args string) {
	b.setKeywordActive(ctx, chatID, args, false)
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, args string) {
	b.setKeywordActive(ctx, chatID, args, true)
}

func (b *Bot) setKeywordActive(ctx context.Context, chatID int64, args string, active bool) {
	verb := "paused"
	usage := "Usage: /pause <id>"
	if active {
		verb = "resumed"
		usage = "Usage: /resume <id>"
	}

	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, usage)
		return
	}

	kw, err := b.ownedKeyword(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Keyword #%d not found.", id))
		return
	}

	kw.IsActive = active
	if err := b.store.UpdateKeyword(ctx, kw); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Keyword #%d \"%s\" %s.", kw.ID, kw.Phrase, verb))
}

func (b *Bot) handleCampaigns(ctx context.Context, chatID int64) {
	campaigns, err := b.store.ListCampaigns(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	var mine []model.Campaign
	for _, c := range campaigns {
		if c.ChatID == chatID {
			mine = append(mine, c)
		}
	}
	b.reply(chatID, FormatCampaignList(mine))
}

func (b *Bot) handleNewCampaign(ctx context.Context, chatID int64, args string) {
	name, err := ParsePhraseArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /newcampaign <name>\n%v", err))
		return
	}

	campaign := &model.Campaign{
		Name:         name,
		ChatID:       chatID,
		ScanInterval: defaultCampaignInterval,
		IsActive:     true,
	}
	if err := b.store.CreateCampaign(ctx, campaign); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to create campaign: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf(`Campaign "%s" (#%d) created, scanning every %d minutes.

Add subreddits with /addsubreddit %d <name>
and keywords with /addkeyword %d <phrase>.
Scanning starts once it has at least one of each.`,
		campaign.Name, campaign.ID, campaign.ScanInterval, campaign.ID, campaign.ID))
}

func (b *Bot) handleAddSubreddit(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.reply(chatID, "Usage: /addsubreddit <campaign id> <subreddit>")
		return
	}
	id, err := ParseIDArg(fields[0])
	if err != nil {
		b.reply(chatID, "Usage: /addsubreddit <campaign id> <subreddit>")
		return
	}

	campaign, err := b.ownedCampaign(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Campaign #%d not found.", id))
		return
	}

	name := strings.TrimPrefix(strings.ToLower(fields[1]), "r/")
	for _, sub := range campaign.Subreddits {
		if sub.Name == name {
			b.reply(chatID, fmt.Sprintf("Campaign \"%s\" already watches r/%s.", campaign.Name, name))
			return
		}
	}

	sub := &model.CampaignSubreddit{CampaignID: campaign.ID, Name: name, IsActive: true}
	if err := b.store.AddCampaignSubreddit(ctx, sub); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to add subreddit: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Added r/%s to campaign \"%s\".", name, campaign.Name))
}

func (b *Bot) handleAddCampaignKeyword(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(chatID, "Usage: /addkeyword <campaign id> <phrase>")
		return
	}
	id, err := ParseIDArg(fields[0])
	if err != nil {
		b.reply(chatID, "Usage: /addkeyword <campaign id> <phrase>")
		return
	}
	phrase, err := ParsePhraseArg(strings.Join(fields[1:], " "))
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /addkeyword <campaign id> <phrase>\n%v", err))
		return
	}

	campaign, err := b.ownedCampaign(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Campaign #%d not found.", id))
		return
	}
	for _, kw := range campaign.Keywords {
		if kw.Phrase == phrase {
			b.reply(chatID, fmt.Sprintf("Campaign \"%s\" already watches \"%s\".", campaign.Name, phrase))
			return
		}
	}

	kw := &model.CampaignKeyword{CampaignID: campaign.ID, Phrase: phrase, IsActive: true}
	if err := b.store.AddCampaignKeyword(ctx, kw); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to add keyword: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Added \"%s\" to campaign \"%s\".", phrase, campaign.Name))
}

// ownedCampaign loads a campaign and verifies it belongs to the chat.
func (b *Bot) ownedCampaign(ctx context.Context, chatID, id int64) (*model.Campaign, error) {
	campaign, err := b.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.ChatID != chatID {
		return nil, fmt.Errorf("campaign %d not owned by chat %d", id, chatID)
	}
	return campaign, nil
}

// ownedKeyword loads a keyword and verifies it belongs to the chat's
// subscriber.
func (b *Bot) ownedKeyword(ctx context.Context, chatID, id int64) (*model.Keyword, error) {
	sub, err := b.store.GetOrCreateSubscriber(ctx, chatID)
	if err != nil {
		return nil, err
	}
	kw, err := b.store.GetKeyword(ctx, id)
	if err != nil {
		return nil, err
	}
	if kw.SubscriberID != sub.ID {
		return nil, fmt.Errorf("keyword %d not owned by subscriber %d", id, sub.ID)
	}
	return kw, nil
}
