package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/replywatch/internal/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIMAP struct {
	messages map[uint32]string

	loginErr  error
	selectErr error
	searchErr error
	noopErr   error

	selectedReadOnly bool
	criteria         []*imap.SearchCriteria
	noops            int
	terminated       int
	loggedOut        int
}

func (f *fakeIMAP) Login(username, password string) error { return f.loginErr }

func (f *fakeIMAP) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	f.selectedReadOnly = readOnly
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return imap.NewMailboxStatus(name, nil), nil
}

func (f *fakeIMAP) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	f.criteria = append(f.criteria, criteria)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	uids := make([]uint32, 0, len(f.messages))
	for uid := range f.messages {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (f *fakeIMAP) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	for uid, raw := range f.messages {
		if !seqset.Contains(uid) {
			continue
		}
		msg := imap.NewMessage(uid, items)
		msg.Uid = uid
		msg.Body = map[*imap.BodySectionName]imap.Literal{}
		if raw != "" {
			msg.Body[&imap.BodySectionName{}] = bytes.NewBufferString(raw)
		}
		ch <- msg
	}
	return nil
}

func (f *fakeIMAP) Noop() error      { f.noops++; return f.noopErr }
func (f *fakeIMAP) Logout() error    { f.loggedOut++; return nil }
func (f *fakeIMAP) Terminate() error { f.terminated++; return nil }

func rawMessage(from, date, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: me@example.org\r\n" +
		"Date: " + date + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}

func newTestMailbox(t *testing.T, sessions ...*fakeIMAP) (*Mailbox, *int) {
	t.Helper()
	dials := 0
	mb := NewMailbox(MailboxConfig{
		Username:  "me@example.org",
		Password:  "secret",
		Server:    "imap.example.org:993",
		Recipient: "boss@example.com",
	}, discardLogger(), withIMAPDialer(func(ctx context.Context) (imapSession, error) {
		if dials >= len(sessions) {
			return nil, errors.New("no more sessions")
		}
		s := sessions[dials]
		dials++
		return s, nil
	}))
	return mb, &dials
}

func TestFindRepliesSinceBuildsCriteria(t *testing.T) {
	session := &fakeIMAP{}
	mb, _ := newTestMailbox(t, session)

	since := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cands, err := mb.FindRepliesSince(context.Background(), &since)
	require.NoError(t, err)
	assert.Empty(t, cands)

	require.Len(t, session.criteria, 1)
	criteria := session.criteria[0]
	assert.Equal(t, "boss@example.com", criteria.Header.Get("From"))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), criteria.Since)
	assert.True(t, session.selectedReadOnly)
}

func TestFindRepliesSinceWithoutDate(t *testing.T) {
	session := &fakeIMAP{}
	mb, _ := newTestMailbox(t, session)

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, session.criteria, 1)
	assert.True(t, session.criteria[0].Since.IsZero())
}

func TestFindRepliesSinceParsesCandidates(t *testing.T) {
	session := &fakeIMAP{messages: map[uint32]string{
		7: rawMessage("Boss <boss@example.com>", "Mon, 01 Jan 2024 11:00:00 +0000", "Re: Reminder", "Done, stop it."),
		3: rawMessage("boss@example.com", "Mon, 01 Jan 2024 08:00:00 +0000", "Earlier", "Old one"),
	}}
	mb, _ := newTestMailbox(t, session)

	cands, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, uint32(3), cands[0].UID)
	assert.Equal(t, uint32(7), cands[1].UID)

	assert.Equal(t, "boss@example.com", cands[1].From)
	assert.Equal(t, "Re: Reminder", cands[1].Subject)
	assert.Equal(t, "Mon, 01 Jan 2024 11:00:00 +0000", cands[1].RawDate)
	assert.Equal(t, "Done, stop it.", cands[1].Snippet)
}

func TestFindRepliesSinceSkipsMessagesWithoutBody(t *testing.T) {
	session := &fakeIMAP{messages: map[uint32]string{
		1: "",
		2: rawMessage("boss@example.com", "Mon, 01 Jan 2024 11:00:00 +0000", "Re", "ok"),
	}}
	mb, _ := newTestMailbox(t, session)

	cands, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, uint32(2), cands[0].UID)
}

func TestFindRepliesSinceIsRepeatable(t *testing.T) {
	session := &fakeIMAP{messages: map[uint32]string{
		5: rawMessage("boss@example.com", "Mon, 01 Jan 2024 11:00:00 +0000", "Re", "ok"),
	}}
	mb, dials := newTestMailbox(t, session)

	first, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)
	second, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, *dials)
	assert.Equal(t, 1, session.noops)
}

func TestFindRepliesSinceReconnectsAfterFailedProbe(t *testing.T) {
	stale := &fakeIMAP{}
	fresh := &fakeIMAP{}
	mb, dials := newTestMailbox(t, stale, fresh)

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)

	stale.noopErr = errors.New("connection reset")
	_, err = mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, *dials)
	assert.Equal(t, 1, stale.terminated)
	assert.Len(t, fresh.criteria, 1)
}

func TestFindRepliesSinceSearchFailureDropsConnection(t *testing.T) {
	first := &fakeIMAP{}
	second := &fakeIMAP{}
	mb, dials := newTestMailbox(t, first, second)

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)

	first.searchErr = errors.New("BAD command")
	_, err = mb.FindRepliesSince(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindSearch))
	assert.ErrorIs(t, err, apperr.ErrConnectionLost)
	assert.False(t, mb.IsConnected())
	assert.Equal(t, 1, first.terminated)

	_, err = mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, *dials)
}

func TestFindRepliesSinceFreshConnectionFailure(t *testing.T) {
	session := &fakeIMAP{selectErr: errors.New("NO mailbox")}
	mb, _ := newTestMailbox(t, session)

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindSearch))
	assert.NotErrorIs(t, err, apperr.ErrConnectionLost)
}

func TestFindRepliesSinceLoginFailure(t *testing.T) {
	session := &fakeIMAP{loginErr: errors.New("invalid credentials")}
	mb, _ := newTestMailbox(t, session)

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConnection))
	assert.Equal(t, 1, session.terminated)
	assert.False(t, mb.IsConnected())
}

func TestMailboxClose(t *testing.T) {
	session := &fakeIMAP{}
	mb, _ := newTestMailbox(t, session)

	require.NoError(t, mb.Close())

	_, err := mb.FindRepliesSince(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mb.Close())
	assert.Equal(t, 1, session.loggedOut)
	assert.False(t, mb.IsConnected())
}

func TestSearchSince(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	got := SearchSince(time.Date(2024, 1, 1, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, loc), got)
}
