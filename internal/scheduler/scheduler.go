// Package scheduler drives the send-until-replied cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mixelka/replywatch/internal/apperr"
	"github.com/mixelka/replywatch/pkg/models"
)

var (
	// ErrInitialSend is returned by Run when the first email could not be sent
	ErrInitialSend = errors.New("initial email could not be sent")
	// ErrNotIdle is returned by Run on a scheduler that was already started or stopped
	ErrNotIdle = errors.New("scheduler is not idle")
	// ErrNoNextTick is returned by Run when the schedule has no future activation
	ErrNoNextTick = errors.New("schedule has no next activation")
)

// Sender delivers one reminder
type Sender interface {
	Send(ctx context.Context, body string) (models.SentMessage, error)
	Close() error
}

// Mailbox lists messages from the recipient
type Mailbox interface {
	FindRepliesSince(ctx context.Context, since *time.Time) ([]models.CandidateMessage, error)
	Close() error
}

// Detector picks the reply among candidates
type Detector interface {
	Detect(candidates []models.CandidateMessage, lastSent *time.Time) (models.CandidateMessage, time.Time, bool)
}

// BodySource supplies the reminder text, read before every send
type BodySource interface {
	Load() string
}

// Journal persists sends and replies
type Journal interface {
	RecordSent(ctx context.Context, msg *models.SentMessage) error
	RecordReply(ctx context.Context, reply *models.Reply) error
}

// Notifier is told about a detected reply
type Notifier interface {
	NotifyReply(ctx context.Context, reply models.Reply) error
}

// Clock abstracts time so the loop can run on a virtual clock
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scheduler sends the reminder on a schedule until the recipient replies.
// It owns both adapters and closes them when it stops.
type Scheduler struct {
	sender   Sender
	mailbox  Mailbox
	detector Detector
	body     BodySource
	schedule cron.Schedule

	logger         *slog.Logger
	clock          Clock
	pollResolution time.Duration
	journal        Journal
	notifier       Notifier
	recipient      string

	mu       sync.Mutex
	state    models.RunState
	lastSent *time.Time
	ticks    int
	reply    *models.Reply

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler in the Idle state
func New(sender Sender, mailbox Mailbox, detector Detector, body BodySource, schedule cron.Schedule, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.PollResolution <= 0 {
		o.PollResolution = DefaultPollResolution
	}

	return &Scheduler{
		sender:         sender,
		mailbox:        mailbox,
		detector:       detector,
		body:           body,
		schedule:       schedule,
		logger:         o.Logger.With("component", "scheduler"),
		clock:          o.Clock,
		pollResolution: o.PollResolution,
		journal:        o.Journal,
		notifier:       o.Notifier,
		recipient:      o.Recipient,
		state:          models.StateIdle,
		stop:           make(chan struct{}),
	}
}

// Run sends the first email immediately and then checks and sends on every
// tick until a reply arrives, ctx is cancelled or Stop is called. A failed
// first send stops the scheduler and returns ErrInitialSend. A schedule that
// runs out of activations stops it with ErrNoNextTick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != models.StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = models.StateRunning
	s.mu.Unlock()

	defer s.shutdown()

	s.logger.Info("starting email automation", "recipient", s.recipient)

	if err := s.send(ctx); err != nil {
		s.logger.Error("failed to send initial email", "error", err)
		return fmt.Errorf("%w: %w", ErrInitialSend, err)
	}

	s.logger.Info("automation running, press Ctrl+C to stop")

	next := s.schedule.Next(s.clock.Now())
	for {
		if next.IsZero() {
			s.logger.Error("schedule has no next activation, stopping automation")
			return ErrNoNextTick
		}

		wait := next.Sub(s.clock.Now())
		if wait > s.pollResolution {
			wait = s.pollResolution
		}

		if wait > 0 {
			select {
			case <-ctx.Done():
				s.logger.Info("automation stopped by user")
				return nil
			case <-s.stop:
				s.logger.Info("automation stopped")
				return nil
			case <-s.clock.After(wait):
			}
		}

		// Cancellation wins over a timer that fired at the same moment
		if ctx.Err() != nil {
			s.logger.Info("automation stopped by user")
			return nil
		}
		if s.stopRequested() {
			s.logger.Info("automation stopped")
			return nil
		}

		if s.clock.Now().Before(next) {
			continue
		}

		if replied := s.tick(ctx); replied {
			return nil
		}
		next = s.schedule.Next(s.clock.Now())
		if !next.IsZero() {
			s.logger.Info("next check scheduled", "at", next.Format(time.DateTime))
		}
	}
}

// tick checks for a reply and sends otherwise, unless the loop was told to
// stop during the check. It returns true when a reply was found.
func (s *Scheduler) tick(ctx context.Context) bool {
	s.mu.Lock()
	s.ticks++
	n := s.ticks
	lastSent := s.lastSent
	s.mu.Unlock()

	s.logger.Info("checking for replies", "tick", n)

	candidates, err := s.mailbox.FindRepliesSince(ctx, lastSent)
	if err != nil {
		s.logger.Warn("failed to check for replies", "kind", apperr.KindOf(err), "error", err)
	} else if cand, date, ok := s.detector.Detect(candidates, lastSent); ok {
		s.handleReply(ctx, cand, date)
		return true
	}

	if ctx.Err() != nil || s.stopRequested() {
		return false
	}

	s.logger.Info("no reply found, sending email")
	if err := s.send(ctx); err != nil {
		level := slog.LevelError
		if apperr.Recoverable(err) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "failed to send email, retrying on next tick", "tick", n, "kind", apperr.KindOf(err), "error", err)
	}
	return false
}

func (s *Scheduler) send(ctx context.Context) error {
	sent, err := s.sender.Send(ctx, s.body.Load())
	if err != nil {
		return err
	}

	sentAt := sent.SentAt
	s.mu.Lock()
	s.lastSent = &sentAt
	s.mu.Unlock()

	s.logger.Info("email sent", "to", sent.Recipient, "at", sentAt.Format(time.DateTime))

	if s.journal != nil {
		if err := s.journal.RecordSent(ctx, &sent); err != nil {
			s.logger.Warn("failed to record sent email", "error", err)
		}
	}
	return nil
}

func (s *Scheduler) handleReply(ctx context.Context, cand models.CandidateMessage, date time.Time) {
	reply := models.Reply{
		FromAddr:   cand.From,
		Subject:    cand.Subject,
		Snippet:    cand.Snippet,
		ReceivedAt: date,
		DetectedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.reply = &reply
	s.mu.Unlock()

	s.logger.Info("reply received, stopping automation",
		"subject", reply.Subject,
		"date", reply.ReceivedAt.Format(time.DateTime),
		"from", reply.FromAddr,
	)

	if s.journal != nil {
		if err := s.journal.RecordReply(ctx, &reply); err != nil {
			s.logger.Warn("failed to record reply", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyReply(ctx, reply); err != nil {
			s.logger.Warn("failed to send reply notification", "error", err)
		}
	}
}

// shutdown enters the terminal state and releases both adapters
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.state = models.StateStopped
	s.mu.Unlock()

	var errs []error
	if err := s.sender.Close(); err != nil {
		errs = append(errs, fmt.Errorf("smtp: %w", err))
	}
	if err := s.mailbox.Close(); err != nil {
		errs = append(errs, fmt.Errorf("imap: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed to clean up connections", "error", err)
		return
	}
	s.logger.Info("connections cleaned up")
}

// Stop asks a running loop to finish. Stopping an idle scheduler moves it
// straight to Stopped.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.StateIdle {
		s.state = models.StateStopped
	}
}

func (s *Scheduler) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// State returns the current lifecycle state
func (s *Scheduler) State() models.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot for status reports
func (s *Scheduler) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.Status{
		Recipient: s.recipient,
		State:     s.state,
		Ticks:     s.ticks,
	}
	if s.lastSent != nil {
		t := *s.lastSent
		status.LastSent = &t
	}
	return status
}

// Ticks returns how many check-then-send iterations have run
func (s *Scheduler) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// LastSent returns the time of the last successful send, if any
func (s *Scheduler) LastSent() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSent == nil {
		return nil
	}
	t := *s.lastSent
	return &t
}

// Reply returns the detected reply, if the loop stopped because of one
func (s *Scheduler) Reply() *models.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply == nil {
		return nil
	}
	r := *s.reply
	return &r
}
