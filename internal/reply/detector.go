// Package reply decides whether messages found in the mailbox answer the
// last reminder.
package reply

import (
	"log/slog"
	"net/mail"
	"time"

	"github.com/mixelka/replywatch/internal/apperr"
	"github.com/mixelka/replywatch/pkg/models"
)

// Detector compares candidate messages against the last send time
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a new reply detector
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{logger: logger.With("component", "detector")}
}

// IsReply reports whether any candidate is dated strictly after lastSent.
// Without a lastSent nothing qualifies.
func (d *Detector) IsReply(candidates []models.CandidateMessage, lastSent *time.Time) bool {
	_, _, ok := d.Detect(candidates, lastSent)
	return ok
}

// Detect returns the first candidate dated strictly after lastSent together
// with its parsed date. Candidates with an unparsable Date header are skipped.
func (d *Detector) Detect(candidates []models.CandidateMessage, lastSent *time.Time) (models.CandidateMessage, time.Time, bool) {
	if lastSent == nil {
		return models.CandidateMessage{}, time.Time{}, false
	}

	for _, cand := range candidates {
		date, err := ParseDate(cand.RawDate)
		if err != nil {
			d.logger.Warn("skipping message with unparsable date",
				"uid", cand.UID,
				"date", cand.RawDate,
				"error", err,
			)
			continue
		}

		if date.After(*lastSent) {
			d.logger.Info("reply detected",
				"uid", cand.UID,
				"from", cand.From,
				"subject", cand.Subject,
				"date", date,
			)
			return cand, date, true
		}
	}

	return models.CandidateMessage{}, time.Time{}, false
}

// ParseDate parses an RFC 5322 Date header
func ParseDate(raw string) (time.Time, error) {
	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.New(apperr.KindDateParse, "parse date", err)
	}
	return t, nil
}
