package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/replywatch/pkg/models"
)

func TestFormatReplyEscapesHTML(t *testing.T) {
	f := NewTelegramFormatter()

	text := f.FormatReply(models.Reply{
		FromAddr:   "boss@example.com",
		Subject:    "Re: <urgent> & stuff",
		Snippet:    "1 < 2",
		ReceivedAt: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
	})

	assert.Contains(t, text, "<b>From:</b> boss@example.com")
	assert.Contains(t, text, "Re: &lt;urgent&gt; &amp; stuff")
	assert.Contains(t, text, "<b>Date:</b> 01.01.2024 11:00")
	assert.Contains(t, text, "1 &lt; 2")
}

func TestFormatReplyWithoutSnippet(t *testing.T) {
	text := NewTelegramFormatter().FormatReply(models.Reply{FromAddr: "a@b.c"})
	assert.NotContains(t, text, "Message:")
}

func TestFormatReplyTruncatesLongSnippet(t *testing.T) {
	text := NewTelegramFormatter().FormatReply(models.Reply{Snippet: strings.Repeat("x", 5000)})
	assert.Less(t, len([]rune(text)), 4000)
	assert.True(t, strings.HasSuffix(text, "..."))
}

func TestFormatStatus(t *testing.T) {
	f := NewTelegramFormatter()
	sent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	running := f.FormatStatus(models.Status{Recipient: "boss@example.com", State: models.StateRunning, Ticks: 3, LastSent: &sent})
	assert.Contains(t, running, "🟢")
	assert.Contains(t, running, "State: running")
	assert.Contains(t, running, "Checks: 3")
	assert.Contains(t, running, "Last sent: 01.01.2024 10:00")

	idle := f.FormatStatus(models.Status{Recipient: "boss@example.com", State: models.StateIdle})
	assert.Contains(t, idle, "Last sent: never")
}

func TestBuildStatusKeyboard(t *testing.T) {
	running := BuildStatusKeyboard(models.StateRunning)
	require.Len(t, running.InlineKeyboard, 1)
	require.Len(t, running.InlineKeyboard[0], 2)

	data, err := DecodeCallback(running.InlineKeyboard[0][1].CallbackData)
	require.NoError(t, err)
	assert.Equal(t, models.CallbackStop, data.Action)

	stopped := BuildStatusKeyboard(models.StateStopped)
	require.Len(t, stopped.InlineKeyboard[0], 1)
	data, err = DecodeCallback(stopped.InlineKeyboard[0][0].CallbackData)
	require.NoError(t, err)
	assert.Equal(t, models.CallbackRefresh, data.Action)
}

func TestDecodeCallbackRejectsGarbage(t *testing.T) {
	_, err := DecodeCallback("not json")
	assert.Error(t, err)
}
