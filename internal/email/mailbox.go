package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/mixelka/replywatch/internal/apperr"
	"github.com/mixelka/replywatch/internal/parser"
	"github.com/mixelka/replywatch/pkg/models"
)

// imapSession is the subset of *client.Client the mailbox uses
type imapSession interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Noop() error
	Logout() error
	Terminate() error
}

// connState tells whether ensureConnected dialled or reused the slot
type connState int

const (
	connEstablished connState = iota + 1
	connReused
)

// MailboxConfig configuration for the IMAP adapter
type MailboxConfig struct {
	Username       string
	Password       string
	Server         string // host:port, implicit TLS
	Recipient      string // sender address to search for
	Folder         string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// Mailbox queries the inbox for messages from the recipient. It owns a
// single IMAP connection which is established lazily and dropped on failure.
type Mailbox struct {
	config     MailboxConfig
	logger     *slog.Logger
	htmlParser *parser.HTMLParser
	dial       func(ctx context.Context) (imapSession, error)

	mu      sync.Mutex
	session imapSession
}

// MailboxOption customizes the mailbox adapter
type MailboxOption func(*Mailbox)

func withIMAPDialer(dial func(ctx context.Context) (imapSession, error)) MailboxOption {
	return func(m *Mailbox) {
		m.dial = dial
	}
}

// NewMailbox creates a new IMAP mailbox adapter
func NewMailbox(cfg MailboxConfig, logger *slog.Logger, opts ...MailboxOption) *Mailbox {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}

	m := &Mailbox{
		config:     cfg,
		logger:     logger.With("component", "imap", "server", cfg.Server),
		htmlParser: parser.NewHTMLParser(),
	}
	m.dial = m.dialTLS
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindRepliesSince returns messages from the recipient. When since is set the
// search is narrowed to messages received on or after since's calendar day;
// IMAP SEARCH has no finer granularity.
func (m *Mailbox) FindRepliesSince(ctx context.Context, since *time.Time) ([]models.CandidateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := m.search(since)
	if err != nil {
		m.handleDisconnect()
		if state == connReused {
			err = errors.Join(apperr.ErrConnectionLost, err)
		}
		return nil, apperr.New(apperr.KindSearch, "find replies", err)
	}

	m.logger.Debug("mailbox searched", "matches", len(candidates), "since", since)
	return candidates, nil
}

func (m *Mailbox) search(since *time.Time) ([]models.CandidateMessage, error) {
	if m.session == nil {
		return nil, apperr.ErrNotConnected
	}
	if _, err := m.session.Select(m.config.Folder, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", m.config.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", m.config.Recipient)
	if since != nil {
		criteria.Since = SearchSince(*since)
	}

	uids, err := m.session.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(uids) == 0 {
		return []models.CandidateMessage{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps \Seen untouched so repeated checks see the same mailbox
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids)+1)
	done := make(chan error, 1)
	go func() {
		done <- m.session.UidFetch(seqSet, items, messages)
	}()

	candidates := make([]models.CandidateMessage, 0, len(uids))
	for msg := range messages {
		cand, err := parseCandidate(msg, section, m.htmlParser)
		if err != nil {
			m.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}
		candidates = append(candidates, cand)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UID < candidates[j].UID
	})
	return candidates, nil
}

// SearchSince truncates t to the start of its calendar day, the value the
// SINCE search key actually compares against.
func SearchSince(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// ensureConnected reuses a live connection or dials a new one
func (m *Mailbox) ensureConnected(ctx context.Context) (connState, error) {
	if m.session != nil {
		err := m.session.Noop()
		if err == nil {
			return connReused, nil
		}
		m.logger.Warn("IMAP connection lost, reconnecting", "error", err)
		m.handleDisconnect()
	}

	if err := ctx.Err(); err != nil {
		return 0, apperr.New(apperr.KindConnection, "imap connect", err)
	}

	m.logger.Info("connecting to IMAP server")

	session, err := m.dial(ctx)
	if err != nil {
		m.logger.Error("failed to establish IMAP connection", "error", err)
		return 0, apperr.New(apperr.KindConnection, "imap connect", fmt.Errorf("failed to connect: %w", err))
	}

	if err := session.Login(m.config.Username, m.config.Password); err != nil {
		_ = session.Terminate()
		m.logger.Error("failed to establish IMAP connection", "error", err)
		return 0, apperr.New(apperr.KindConnection, "imap login", fmt.Errorf("failed to login: %w", err))
	}

	m.session = session
	m.logger.Info("IMAP connection established successfully")
	return connEstablished, nil
}

func (m *Mailbox) dialTLS(ctx context.Context) (imapSession, error) {
	host, _, err := net.SplitHostPort(m.config.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", m.config.Server, err)
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: m.config.DialTimeout},
		Config:    &tls.Config{ServerName: host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", m.config.Server)
	if err != nil {
		return nil, err
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}
	imapClient.Timeout = m.config.CommandTimeout

	return imapClient, nil
}

// handleDisconnect drops the connection slot; the next call reconnects
func (m *Mailbox) handleDisconnect() {
	if m.session != nil {
		_ = m.session.Terminate()
		m.session = nil
	}
}

// IsConnected returns whether a connection is currently held
func (m *Mailbox) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Close logs out and releases the connection. Closing an idle mailbox is a no-op.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	session := m.session
	m.session = nil

	if err := session.Logout(); err != nil {
		_ = session.Terminate()
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}
