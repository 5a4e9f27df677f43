package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scout_bot/internal/config"
	"scout_bot/internal/model"
	"scout_bot/internal/notifier"
	"scout_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Regenerator produces a fresh summary version for a match.
type Regenerator interface {
	Regenerate(ctx context.Context, match *model.Match, systemPrompt, feedback string) (*model.Summary, error)
}

// Bot is the Telegram bot that handles subscriber commands and alert
// button actions.
type Bot struct {
	api   telegramAPI
	store storage.Storage
	cfg   *config.Config
	regen Regenerator
	log   *slog.Logger
}

// New creates a Bot with the given Telegram token.
func New(token string, store storage.Storage, cfg *config.Config, regen Regenerator, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		store: store,
		cfg:   cfg,
		regen: regen,
		log:   log,
	}, nil
}

// Sender returns the underlying Telegram client for the notifier.
func (b *Bot) Sender() notifier.Sender {
	return b.api
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "unwatch":
		b.handleUnwatch(ctx, chatID, args)
	case "keywords":
		b.handleKeywords(ctx, chatID)
	case "pause":
		b.handlePause(ctx, chatID, args)
	case "resume":
		b.handleResume(ctx, chatID, args)
	case "campaigns":
		b.handleCampaigns(ctx, chatID)
	case "newcampaign":
		b.handleNewCampaign(ctx, chatID, args)
	case "addsubreddit":
		b.handleAddSubreddit(ctx, chatID, args)
	case "addkeyword":
		b.handleAddCampaignKeyword(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
