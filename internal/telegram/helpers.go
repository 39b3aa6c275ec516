package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// sendMessage sends an HTML message, optionally with an inline keyboard
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	msg, err := b.api.SendMessage(ctx, params)
	if err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
	return msg, err
}

// editMessage replaces the text and keyboard of a message
func (b *Bot) editMessage(ctx context.Context, chatID int64, msgID int, text string, keyboard *models.InlineKeyboardMarkup) error {
	_, err := b.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
	return err
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	_, err := b.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}
}
