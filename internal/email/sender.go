package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mixelka/replywatch/internal/apperr"
	"github.com/mixelka/replywatch/internal/message"
	"github.com/mixelka/replywatch/pkg/models"
)

// implicitTLSPort is the SMTPS submission port; any other port upgrades with STARTTLS
const implicitTLSPort = 465

// smtpSession is the subset of *smtp.Client the sender uses
type smtpSession interface {
	Mail(from string, opts *smtp.MailOptions) error
	Rcpt(to string, opts *smtp.RcptOptions) error
	Data() (io.WriteCloser, error)
	Reset() error
	Noop() error
	Quit() error
	Close() error
}

// smtpConn adapts *smtp.Client so Data satisfies smtpSession
type smtpConn struct {
	*smtp.Client
}

func (c smtpConn) Data() (io.WriteCloser, error) {
	w, err := c.Client.Data()
	if err != nil {
		return nil, err
	}
	return w, nil
}

// SenderConfig configuration for the SMTP adapter
type SenderConfig struct {
	Username       string
	Password       string
	Server         string // host:port
	Recipient      string
	Subject        string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// Sender delivers the reminder to the recipient over one reusable SMTP connection
type Sender struct {
	config SenderConfig
	logger *slog.Logger
	now    func() time.Time
	dial   func(ctx context.Context) (smtpSession, error)

	mu      sync.Mutex
	session smtpSession
}

// SenderOption customizes the sender
type SenderOption func(*Sender)

// WithSenderClock overrides the time source used for the Date header and the footer
func WithSenderClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		s.now = now
	}
}

func withSMTPDialer(dial func(ctx context.Context) (smtpSession, error)) SenderOption {
	return func(s *Sender) {
		s.dial = dial
	}
}

// NewSender creates a new SMTP sender
func NewSender(cfg SenderConfig, logger *slog.Logger, opts ...SenderOption) *Sender {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}

	s := &Sender{
		config: cfg,
		logger: logger.With("component", "smtp", "server", cfg.Server),
		now:    time.Now,
	}
	s.dial = s.dialServer
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers one reminder with the given body. A "Sent at" footer with the
// current local time is appended before encoding.
func (s *Sender) Send(ctx context.Context, body string) (models.SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.ensureConnected(ctx)
	if err != nil {
		return models.SentMessage{}, err
	}

	sentAt := s.now()
	raw, messageID, err := buildMessage(outgoing{
		From:    s.config.Username,
		To:      s.config.Recipient,
		Subject: s.config.Subject,
		Body:    message.ComposeBody(body, sentAt),
		Date:    sentAt,
	})
	if err != nil {
		return models.SentMessage{}, apperr.New(apperr.KindSend, "build message", err)
	}

	if err := s.transmit(raw); err != nil {
		s.handleDisconnect()
		if state == connReused {
			err = errors.Join(apperr.ErrConnectionLost, err)
		}
		return models.SentMessage{}, apperr.New(apperr.KindSend, "send message", err)
	}

	s.logger.Info("email sent", "to", s.config.Recipient, "message_id", messageID)

	return models.SentMessage{
		MessageID: messageID,
		Recipient: s.config.Recipient,
		Subject:   s.config.Subject,
		SentAt:    sentAt,
	}, nil
}

func (s *Sender) transmit(raw []byte) error {
	if s.session == nil {
		return apperr.ErrNotConnected
	}
	if err := s.session.Mail(s.config.Username, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := s.session.Rcpt(s.config.Recipient, nil); err != nil {
		_ = s.session.Reset()
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := s.session.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("server rejected message: %w", err)
	}
	return nil
}

// ensureConnected reuses a live connection or dials a new one
func (s *Sender) ensureConnected(ctx context.Context) (connState, error) {
	if s.session != nil {
		err := s.session.Noop()
		if err == nil {
			return connReused, nil
		}
		s.logger.Warn("SMTP connection lost, reconnecting", "error", err)
		s.handleDisconnect()
	}

	if err := ctx.Err(); err != nil {
		return 0, apperr.New(apperr.KindConnection, "smtp connect", err)
	}

	s.logger.Info("connecting to SMTP server")

	session, err := s.dial(ctx)
	if err != nil {
		s.logger.Error("failed to establish SMTP connection", "error", err)
		return 0, apperr.New(apperr.KindConnection, "smtp connect", err)
	}

	s.session = session
	s.logger.Info("SMTP connection established successfully")
	return connEstablished, nil
}

func (s *Sender) dialServer(ctx context.Context) (smtpSession, error) {
	host, portStr, err := net.SplitHostPort(s.config.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", s.config.Server, err)
	}
	port, _ := strconv.Atoi(portStr)
	tlsConfig := &tls.Config{ServerName: host}
	netDialer := &net.Dialer{Timeout: s.config.DialTimeout}

	var conn net.Conn
	if port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsConfig}).DialContext(ctx, "tcp", s.config.Server)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", s.config.Server)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := smtp.NewClient(conn)
	c.CommandTimeout = s.config.CommandTimeout
	c.SubmissionTimeout = s.config.CommandTimeout

	if port != implicitTLSPort {
		if err := c.StartTLS(tlsConfig); err != nil {
			c.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if err := c.Auth(sasl.NewPlainClient("", s.config.Username, s.config.Password)); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return smtpConn{Client: c}, nil
}

// handleDisconnect drops the connection slot; the next call reconnects
func (s *Sender) handleDisconnect() {
	if s.session != nil {
		_ = s.session.Close()
		s.session = nil
	}
}

// IsConnected returns whether a connection is currently held
func (s *Sender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Close quits and releases the connection. Closing an idle sender is a no-op.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	session := s.session
	s.session = nil

	if err := session.Quit(); err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to quit: %w", err)
	}
	return nil
}
