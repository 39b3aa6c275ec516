package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/replywatch/internal/formatter"
	appmodels "github.com/mixelka/replywatch/pkg/models"
)

const helpText = `<b>Reply watch</b>

Sends a reminder on a schedule until the recipient replies.

<b>Commands:</b>
/status - show automation status
/stop - stop sending reminders`

// handleHelp handles /start and /help commands
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.authorized(msg) {
		return
	}
	b.sendMessage(ctx, msg.Chat.ID, helpText, nil)
}

// handleStatus handles /status command
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.authorized(msg) {
		return
	}
	if b.controller == nil {
		b.sendMessage(ctx, msg.Chat.ID, "Automation is not running", nil)
		return
	}

	status := b.controller.Status()
	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatStatus(status), formatter.BuildStatusKeyboard(status.State))
}

// handleStop handles /stop command
func (b *Bot) handleStop(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.authorized(msg) {
		return
	}
	if b.controller == nil {
		b.sendMessage(ctx, msg.Chat.ID, "Automation is not running", nil)
		return
	}

	if msg.From != nil {
		b.logger.Info("stop requested from chat", "user_id", msg.From.ID)
	}
	b.controller.Stop()
	b.sendMessage(ctx, msg.Chat.ID, "Stopping automation", nil)
}

// handleCallback handles inline button callbacks
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	msg := callback.Message.Message
	if msg == nil || msg.Chat.ID != b.chatID {
		b.answerCallback(ctx, callback.ID, "Not allowed")
		return
	}
	if b.controller == nil {
		b.answerCallback(ctx, callback.ID, "Automation is not running")
		return
	}

	data, err := formatter.DecodeCallback(callback.Data)
	if err != nil {
		b.logger.Error("failed to decode callback", "error", err, "data", callback.Data)
		b.answerCallback(ctx, callback.ID, "Error")
		return
	}

	switch data.Action {
	case appmodels.CallbackStop:
		b.logger.Info("stop requested from chat", "user_id", callback.From.ID)
		b.controller.Stop()
		b.answerCallback(ctx, callback.ID, "Stopping automation")
	case appmodels.CallbackRefresh:
		b.answerCallback(ctx, callback.ID, "")
	default:
		b.answerCallback(ctx, callback.ID, "Unknown action")
		return
	}

	status := b.controller.Status()
	if err := b.editMessage(ctx, msg.Chat.ID, msg.ID, b.formatter.FormatStatus(status), formatter.BuildStatusKeyboard(status.State)); err != nil {
		b.logger.Warn("failed to refresh status message", "error", err)
	}
}

// authorized reports whether msg comes from the configured chat
func (b *Bot) authorized(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Chat.ID != b.chatID {
		b.logger.Warn("ignoring command from foreign chat", "chat_id", msg.Chat.ID)
		return false
	}
	return true
}
