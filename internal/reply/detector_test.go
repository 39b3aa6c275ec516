package reply

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/replywatch/internal/apperr"
	"github.com/mixelka/replywatch/internal/email"
	"github.com/mixelka/replywatch/pkg/models"
)

func newDetector() *Detector {
	return NewDetector(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func candidate(uid uint32, date string) models.CandidateMessage {
	return models.CandidateMessage{UID: uid, From: "boss@example.com", Subject: "Re: reminder", RawDate: date}
}

func TestIsReplyLaterCandidateQualifies(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cands := []models.CandidateMessage{
		candidate(1, "Mon, 01 Jan 2024 09:00:00 +0000"),
		candidate(2, "Mon, 01 Jan 2024 11:00:00 +0000"),
	}

	assert.True(t, newDetector().IsReply(cands, &lastSent))
}

func TestIsReplyWithoutLastSent(t *testing.T) {
	cands := []models.CandidateMessage{candidate(1, "Mon, 01 Jan 2024 11:00:00 +0000")}

	assert.False(t, newDetector().IsReply(cands, nil))
}

func TestIsReplyEmptyCandidates(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.False(t, newDetector().IsReply(nil, &lastSent))
}

func TestIsReplyStrictlyAfter(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cands := []models.CandidateMessage{candidate(1, "Mon, 01 Jan 2024 10:00:00 +0000")}

	assert.False(t, newDetector().IsReply(cands, &lastSent))
}

func TestIsReplyComparesAcrossZones(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	// 12:30 +0300 is 09:30 UTC
	early := candidate(1, "Mon, 01 Jan 2024 12:30:00 +0300")
	// 06:30 -0500 is 11:30 UTC
	late := candidate(2, "Mon, 01 Jan 2024 06:30:00 -0500")

	d := newDetector()
	assert.False(t, d.IsReply([]models.CandidateMessage{early}, &lastSent))
	assert.True(t, d.IsReply([]models.CandidateMessage{late}, &lastSent))
}

func TestIsReplySkipsUnparsableDates(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d := newDetector()

	assert.False(t, d.IsReply([]models.CandidateMessage{
		candidate(1, "yesterday"),
		candidate(2, ""),
	}, &lastSent))

	assert.True(t, d.IsReply([]models.CandidateMessage{
		candidate(1, "not a date"),
		candidate(2, "Mon, 01 Jan 2024 11:00:00 +0000"),
	}, &lastSent))
}

func TestDetectReturnsFirstQualifying(t *testing.T) {
	lastSent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cands := []models.CandidateMessage{
		candidate(1, "Mon, 01 Jan 2024 09:00:00 +0000"),
		candidate(2, "Mon, 01 Jan 2024 12:00:00 +0000"),
		candidate(3, "Mon, 01 Jan 2024 11:00:00 +0000"),
	}

	got, date, ok := newDetector().Detect(cands, &lastSent)
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.UID)
	assert.True(t, date.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}

// The mailbox search is day-granular, so a same-day message from before the
// send is returned as a candidate but must not count as a reply.
func TestSameDayEarlierMessageIsNotReply(t *testing.T) {
	lastSent := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	since := email.SearchSince(lastSent)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), since)

	morning := candidate(1, "Tue, 05 Mar 2024 08:15:00 +0000")
	date, err := ParseDate(morning.RawDate)
	require.NoError(t, err)
	require.False(t, date.Before(since))

	assert.False(t, newDetector().IsReply([]models.CandidateMessage{morning}, &lastSent))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("Mon, 1 Jan 2024 11:00:00 +0000 (UTC)")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))

	_, err = ParseDate("garbage")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDateParse))
}
