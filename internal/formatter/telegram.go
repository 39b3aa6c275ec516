package formatter

import (
	"fmt"
	"strings"

	"github.com/mixelka/replywatch/pkg/models"
)

const dateLayout = "02.01.2006 15:04"

// TelegramFormatter formats notifications for Telegram
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // Leave room for markup
	}
}

// FormatReply formats a detected reply
func (f *TelegramFormatter) FormatReply(reply models.Reply) string {
	var sb strings.Builder

	sb.WriteString("<b>Reply received, automation stopped</b>\n\n")
	sb.WriteString(fmt.Sprintf("<b>From:</b> %s\n", f.escapeHTML(reply.FromAddr)))
	sb.WriteString(fmt.Sprintf("<b>Subject:</b> %s\n", f.escapeHTML(reply.Subject)))
	sb.WriteString(fmt.Sprintf("<b>Date:</b> %s\n", reply.ReceivedAt.Format(dateLayout)))

	if reply.Snippet != "" {
		sb.WriteString("\n<b>Message:</b>\n")
		body := f.truncate(reply.Snippet, f.maxLength-sb.Len()-50)
		sb.WriteString(f.escapeHTML(body))
	}

	return sb.String()
}

// FormatStatus formats the automation status
func (f *TelegramFormatter) FormatStatus(status models.Status) string {
	var sb strings.Builder

	statusEmoji := "🔴"
	switch status.State {
	case models.StateRunning:
		statusEmoji = "🟢"
	case models.StateIdle:
		statusEmoji = "🟡"
	}

	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", statusEmoji, f.escapeHTML(status.Recipient)))
	sb.WriteString(fmt.Sprintf("   State: %s\n", status.State))
	sb.WriteString(fmt.Sprintf("   Checks: %d\n", status.Ticks))
	if status.LastSent != nil {
		sb.WriteString(fmt.Sprintf("   Last sent: %s\n", status.LastSent.Format(dateLayout)))
	} else {
		sb.WriteString("   Last sent: never\n")
	}

	return sb.String()
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
