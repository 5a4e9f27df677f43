package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scout_bot/internal/model"
	"scout_bot/internal/notifier"
	"scout_bot/internal/storage"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	action, id, err := ParseCallbackData(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, "")
		return
	}

	b.log.Info("callback",
		"action", action,
		"match_id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
	)

	switch action {
	case notifier.ActionDone:
		b.resolveAlert(ctx, cb, chatID, messageID, id, model.StatusDone, "Marked done.")
	case notifier.ActionSkip:
		b.resolveAlert(ctx, cb, chatID, messageID, id, model.StatusSkipped, "Skipped.")
	case notifier.ActionDismiss:
		b.dismissAlert(ctx, cb, chatID, messageID, id)
	case notifier.ActionRegenerate:
		b.regenerateAlert(ctx, cb, chatID, messageID, id)
	default:
		b.answerCallback(cb.ID, "")
	}
}

// resolveAlert moves a match to a terminal status and strips the buttons
// off the alert message.
func (b *Bot) resolveAlert(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, messageID int, matchID int64, next model.MatchStatus, ack string) {
	if err := b.store.UpdateMatchStatus(ctx, matchID, next); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			b.answerCallback(cb.ID, "Already handled.")
			return
		}
		b.log.Error("update match status", "match_id", matchID, "status", next, "error", err)
		b.answerCallback(cb.ID, "Something went wrong.")
		return
	}

	b.removeButtons(chatID, messageID)
	b.answerCallback(cb.ID, ack)
}

// dismissAlert moves the match to dismissed and deletes the alert message
// from the chat.
func (b *Bot) dismissAlert(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, messageID int, matchID int64) {
	if err := b.store.UpdateMatchStatus(ctx, matchID, model.StatusDismissed); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			b.answerCallback(cb.ID, "Already handled.")
			return
		}
		b.log.Error("dismiss match", "match_id", matchID, "error", err)
		b.answerCallback(cb.ID, "Something went wrong.")
		return
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Error("delete alert message", "chat_id", chatID, "message_id", messageID, "error", err)
	}
	b.answerCallback(cb.ID, "Dismissed.")
}

// regenerateAlert produces a new summary version and rewrites the alert
// message in place, keeping the buttons.
func (b *Bot) regenerateAlert(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, messageID int, matchID int64) {
	match, err := b.store.GetMatch(ctx, matchID)
	if err != nil {
		b.answerCallback(cb.ID, "Alert not found.")
		return
	}
	if match.Status.Terminal() {
		b.answerCallback(cb.ID, "Already handled.")
		return
	}

	prompt := ""
	if match.OwnerKind == model.OwnerCampaign {
		campaign, err := b.store.GetCampaign(ctx, match.OwnerID)
		if err != nil {
			b.log.Error("load campaign for regenerate", "match_id", matchID, "error", err)
			b.answerCallback(cb.ID, "Something went wrong.")
			return
		}
		prompt = campaign.SystemPrompt
	}

	b.answerCallback(cb.ID, "Regenerating...")

	newSummary, err := b.regen.Regenerate(ctx, match, prompt, "")
	if err != nil {
		b.log.Error("regenerate summary", "match_id", matchID, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to regenerate summary for alert #%d.", matchID))
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, notifier.FormatAlert(match, newSummary))
	edit.DisableWebPagePreview = true
	keyboard := notifier.AlertKeyboard(matchID)
	edit.ReplyMarkup = &keyboard
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("edit alert message", "match_id", matchID, "error", err)
	}
}

func (b *Bot) removeButtons(chatID int64, messageID int) {
	empty := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(empty); err != nil {
		b.log.Error("remove alert buttons", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}
