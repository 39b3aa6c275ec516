package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/replywatch/internal/formatter"
	appmodels "github.com/mixelka/replywatch/pkg/models"
)

// botAPI is the subset of *bot.Bot used for outgoing calls
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

// Controller exposes the automation to chat commands
type Controller interface {
	Status() appmodels.Status
	Stop()
}

// Bot notifies a single chat about replies and answers /status there
type Bot struct {
	bot        *bot.Bot
	api        botAPI
	chatID     int64
	formatter  *formatter.TelegramFormatter
	logger     *slog.Logger
	controller Controller
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token     string
	ChatID    int64
	Formatter *formatter.TelegramFormatter
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot. No request is made until Start or a
// notification.
func NewBot(deps BotDeps) (*Bot, error) {
	if deps.Token == "" || deps.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	if deps.Formatter == nil {
		deps.Formatter = formatter.NewTelegramFormatter()
	}

	b := &Bot{
		chatID:    deps.ChatID,
		formatter: deps.Formatter,
		logger:    deps.Logger.With("component", "telegram_bot"),
	}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.api = tgBot
	b.registerHandlers()

	return b, nil
}

// SetController connects chat commands to the automation
func (b *Bot) SetController(c Controller) {
	b.controller = c
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, b.handleStatus)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypePrefix, b.handleStop)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleCallback)
}

// Start polls for updates until ctx is done
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// NotifyReply reports a detected reply to the configured chat
func (b *Bot) NotifyReply(ctx context.Context, reply appmodels.Reply) error {
	if _, err := b.sendMessage(ctx, b.chatID, b.formatter.FormatReply(reply), nil); err != nil {
		return fmt.Errorf("failed to send reply notification: %w", err)
	}
	b.logger.Info("reply notification sent", "chat_id", b.chatID)
	return nil
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	// Ignore non-message updates and messages without text
	if update.Message == nil {
		return
	}

	// Log unknown commands
	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}
