// Package notifier delivers pending matches to Telegram. Each (owner,
// source) pair gets a header message once; alerts are sent as replies to
// it, which groups them visually without needing forum topics.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scout_bot/internal/model"
	"scout_bot/internal/storage"
)

// Callback actions carried in the alert keyboard. The bot's callback
// handler dispatches on these.
const (
	ActionDone       = "alert_done"
	ActionSkip       = "alert_skip"
	ActionRegenerate = "alert_regen"
	ActionDismiss    = "alert_dismiss"
)

// Sender sends Telegram messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends alert messages and records delivery on the match.
type Notifier struct {
	api   Sender
	store storage.Storage
	log   *slog.Logger
}

// New creates a Notifier.
func New(api Sender, store storage.Storage, log *slog.Logger) *Notifier {
	return &Notifier{api: api, store: store, log: log}
}

// Deliver sends one match to its owner's chat and marks it sent. On
// failure the match keeps its pending status, so the next pipeline pass
// retries it.
func (n *Notifier) Deliver(ctx context.Context, match *model.Match, summary *model.Summary) error {
	chatID, ownerName, err := n.resolveOwner(ctx, match)
	if err != nil {
		return fmt.Errorf("resolve owner for match %d: %w", match.ID, err)
	}

	thread, err := n.ensureThread(ctx, match, chatID, ownerName)
	if err != nil {
		return fmt.Errorf("ensure thread for match %d: %w", match.ID, err)
	}

	msg := tgbotapi.NewMessage(chatID, FormatAlert(match, summary))
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = int(thread.MessageID)
	msg.ReplyMarkup = AlertKeyboard(match.ID)

	sent, err := n.api.Send(msg)
	if err != nil {
		return fmt.Errorf("send alert for match %d: %w", match.ID, err)
	}

	if err := n.store.MarkMatchSent(ctx, match.ID, int64(sent.MessageID)); err != nil {
		return fmt.Errorf("mark match %d sent: %w", match.ID, err)
	}
	n.log.Info("alert delivered",
		"match_id", match.ID,
		"chat_id", chatID,
		"message_id", sent.MessageID)
	return nil
}

// AlertKeyboard builds the inline action buttons attached to an alert.
func AlertKeyboard(matchID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Done", fmt.Sprintf("%s:%d", ActionDone, matchID)),
			tgbotapi.NewInlineKeyboardButtonData("Skip", fmt.Sprintf("%s:%d", ActionSkip, matchID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Regenerate", fmt.Sprintf("%s:%d", ActionRegenerate, matchID)),
			tgbotapi.NewInlineKeyboardButtonData("Dismiss", fmt.Sprintf("%s:%d", ActionDismiss, matchID)),
		),
	)
}

// resolveOwner maps a match to the chat it is delivered to.
func (n *Notifier) resolveOwner(ctx context.Context, match *model.Match) (chatID int64, ownerName string, err error) {
	switch match.OwnerKind {
	case model.OwnerUser:
		sub, err := n.store.GetSubscriber(ctx, match.OwnerID)
		if err != nil {
			return 0, "", err
		}
		return sub.ChatID, "", nil
	case model.OwnerCampaign:
		campaign, err := n.store.GetCampaign(ctx, match.OwnerID)
		if err != nil {
			return 0, "", err
		}
		return campaign.ChatID, campaign.Name, nil
	default:
		return 0, "", fmt.Errorf("unknown owner kind %q", match.OwnerKind)
	}
}

// ensureThread returns the existing header thread or creates one by
// sending the header message. Creation is idempotent in storage, so a
// concurrent create returns the surviving thread.
func (n *Notifier) ensureThread(ctx context.Context, match *model.Match, chatID int64, ownerName string) (*model.Thread, error) {
	thread, err := n.store.GetThread(ctx, match.OwnerKind, match.OwnerID, match.Source)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	header := tgbotapi.NewMessage(chatID, FormatThreadHeader(match.Source, ownerName))
	header.DisableWebPagePreview = true
	sent, err := n.api.Send(header)
	if err != nil {
		return nil, fmt.Errorf("send thread header: %w", err)
	}

	return n.store.CreateThread(ctx, &model.Thread{
		OwnerKind: match.OwnerKind,
		OwnerID:   match.OwnerID,
		Source:    match.Source,
		MessageID: int64(sent.MessageID),
	})
}
