package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/mixelka/replywatch/internal/config"
	"github.com/mixelka/replywatch/internal/database"
	"github.com/mixelka/replywatch/internal/email"
	"github.com/mixelka/replywatch/internal/formatter"
	"github.com/mixelka/replywatch/internal/message"
	"github.com/mixelka/replywatch/internal/reply"
	"github.com/mixelka/replywatch/internal/scheduler"
	"github.com/mixelka/replywatch/internal/telegram"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	// Setup logger
	logger, closeLog, err := setupLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		slog.Error("failed to open log file", "path", cfg.LogFile, "error", err)
		return 1
	}
	defer closeLog()

	automation, err := loadAutomation(cfg.ConfigFile, logger)
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := email.NewResolver().Fill(ctx, automation); err != nil {
		logger.Error("failed to resolve mail servers", "error", err)
		return 1
	}

	schedule, err := automation.CronSchedule()
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		return 1
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithPollResolution(cfg.PollResolution),
		scheduler.WithRecipient(automation.Recipient),
	}

	// Journal (optional)
	if cfg.JournalEnabled {
		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			return 1
		}
		logJournalSummary(ctx, logger, db, automation.Recipient)
		opts = append(opts, scheduler.WithJournal(db))
	}

	// Telegram notifications (optional)
	var tgBot *telegram.Bot
	if cfg.TelegramEnabled() {
		tgBot, err = telegram.NewBot(telegram.BotDeps{
			Token:     cfg.TelegramToken,
			ChatID:    cfg.TelegramChatID,
			Formatter: formatter.NewTelegramFormatter(),
			Logger:    logger,
		})
		if err != nil {
			logger.Error("failed to create bot", "error", err)
			return 1
		}
		opts = append(opts, scheduler.WithNotifier(tgBot))
	}

	// Create components
	sender := email.NewSender(email.SenderConfig{
		Username:       automation.Username,
		Password:       automation.Password,
		Server:         automation.SMTPAddr(),
		Recipient:      automation.Recipient,
		Subject:        automation.Subject,
		DialTimeout:    cfg.DialTimeout,
		CommandTimeout: cfg.CommandTimeout,
	}, logger)

	mailbox := email.NewMailbox(email.MailboxConfig{
		Username:       automation.Username,
		Password:       automation.Password,
		Server:         automation.IMAPAddr(),
		Recipient:      automation.Recipient,
		DialTimeout:    cfg.DialTimeout,
		CommandTimeout: cfg.CommandTimeout,
	}, logger)

	sched := scheduler.New(
		sender,
		mailbox,
		reply.NewDetector(logger),
		message.NewTemplate(automation.MessageFile, logger),
		schedule,
		opts...,
	)

	if tgBot != nil {
		tgBot.SetController(sched)
		go tgBot.Start(ctx)
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("email automation configured",
		"recipient", automation.Recipient,
		"interval", describeSchedule(automation),
		"smtp", automation.SMTPAddr(),
		"imap", automation.IMAPAddr(),
	)

	if err := sched.Run(ctx); err != nil {
		logger.Error("automation failed", "error", err)
		return 1
	}

	logger.Info("automation finished", "checks", sched.Ticks())
	return 0
}

var errDefaultConfigCreated = errors.New("default config file created")

// loadAutomation reads and validates the automation file. Every failure is
// logged here so the caller only has to exit.
func loadAutomation(path string, logger *slog.Logger) (*config.Automation, error) {
	automation, created, err := config.LoadAutomation(path)
	if err != nil {
		logger.Error("failed to load automation config", "error", err)
		return nil, err
	}
	if created {
		logger.Warn("created default config file, please update it with your settings", "path", path)
		return nil, errDefaultConfigCreated
	}
	if err := automation.Validate(); err != nil {
		logger.Error("invalid automation config", "path", path, "error", err)
		if errors.Is(err, config.ErrPlaceholderCredentials) {
			logger.Error("please update config.json with your email credentials; for Gmail use an App Password, not your regular password")
		}
		return nil, err
	}
	return automation, nil
}

func describeSchedule(a *config.Automation) string {
	if a.Schedule != "" {
		return a.Schedule
	}
	return fmt.Sprintf("%d minutes", a.CheckIntervalMinutes)
}

func logJournalSummary(ctx context.Context, logger *slog.Logger, db *database.DB, recipient string) {
	count, err := db.CountSent(ctx, recipient)
	if err != nil {
		logger.Warn("failed to read journal", "error", err)
		return
	}

	args := []any{"sent_to_recipient", count}
	if last, err := db.LastSent(ctx); err == nil {
		args = append(args, "last_sent", last.SentAt.Format(time.DateTime))
	}
	if r, err := db.LatestReply(ctx); err == nil {
		args = append(args, "last_reply_from", r.FromAddr, "last_reply_at", r.ReceivedAt.Format(time.DateTime))
	}
	logger.Info("journal opened", args...)
}

// setupLogger writes to stdout and, when path is set, appends to a log file
// without colors.
func setupLogger(level, format, path string) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	noColor := false

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
		noColor = true
	}

	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    noColor,
		})
	}

	return slog.New(handler), closeFn, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
