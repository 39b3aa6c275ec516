package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config process configuration
type Config struct {
	// Automation file
	ConfigFile string `env:"CONFIG_FILE" envDefault:"config.json"`

	// Scheduling
	PollResolution time.Duration `env:"POLL_RESOLUTION" envDefault:"60s"`

	// Network
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" envDefault:"30s"`
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" envDefault:"30s"`

	// Journal
	JournalEnabled bool   `env:"JOURNAL_ENABLED" envDefault:"true"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./data/replywatch.db"`

	// Telegram notifications (optional)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
	LogFile   string `env:"LOG_FILE" envDefault:"replywatch.log"`
}

// TelegramEnabled returns true if reply notifications are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollResolution <= 0 {
		return nil, fmt.Errorf("POLL_RESOLUTION must be positive, got %s", cfg.PollResolution)
	}

	return cfg, nil
}
