package scheduler

import (
	"log/slog"
	"time"
)

// DefaultPollResolution is how often the loop wakes to look for a due tick
const DefaultPollResolution = time.Minute

type options struct {
	Logger         *slog.Logger
	Clock          Clock
	PollResolution time.Duration
	Journal        Journal
	Notifier       Notifier
	Recipient      string
}

// Option applies configuration to the scheduler.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:         slog.Default(),
		Clock:          systemClock{},
		PollResolution: DefaultPollResolution,
	}
}

// WithLogger injects a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.Clock = c
	}
}

// WithPollResolution sets how often the loop wakes up.
func WithPollResolution(d time.Duration) Option {
	return func(o *options) {
		o.PollResolution = d
	}
}

// WithJournal records sends and replies.
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.Journal = j
	}
}

// WithNotifier reports detected replies.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.Notifier = n
	}
}

// WithRecipient names the recipient in logs and status reports.
func WithRecipient(addr string) Option {
	return func(o *options) {
		o.Recipient = addr
	}
}
