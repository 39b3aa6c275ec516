// Package message loads the body template that is sent on every cycle.
package message

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTemplate is written when the template file does not exist
const DefaultTemplate = `Hello,

This is an automated message. I'm reaching out regarding an important matter and wanted to ensure you received this communication.

Please reply to this email to confirm receipt and stop receiving these automated reminders.

Thank you for your time and attention.

Best regards`

// FallbackBody is used when the template file cannot be read or created
const FallbackBody = "This is an automated message. Please reply to stop receiving these emails."

// SentAtLayout formats the timestamp appended to every body
const SentAtLayout = time.DateTime

// Template reads the message body from a file on every Load, so edits
// between sends are picked up without a restart.
type Template struct {
	path   string
	logger *slog.Logger
}

// NewTemplate creates a template backed by path
func NewTemplate(path string, logger *slog.Logger) *Template {
	if path == "" {
		path = "message_template.txt"
	}
	return &Template{
		path:   path,
		logger: logger.With("component", "template", "path", path),
	}
}

// Path returns the template file path
func (t *Template) Path() string {
	return t.path
}

// Load returns the current template text. A missing file is created with
// DefaultTemplate; any other failure is logged and FallbackBody is returned.
func (t *Template) Load() string {
	text, err := t.read()
	if err != nil {
		t.logger.Error("failed to load message template", "error", err)
		return FallbackBody
	}
	return text
}

func (t *Template) read() (string, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := t.createDefault(); err != nil {
			return "", err
		}
		t.logger.Info("created default message template")
		return DefaultTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *Template) createDefault() error {
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create template directory: %w", err)
		}
	}
	if err := os.WriteFile(t.path, []byte(DefaultTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write default template: %w", err)
	}
	return nil
}

// ComposeBody appends the human-readable send time to the template text
func ComposeBody(text string, sentAt time.Time) string {
	return fmt.Sprintf("%s\n\nSent at: %s", text, sentAt.Format(SentAtLayout))
}
