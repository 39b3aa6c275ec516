package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/mixelka/replywatch/internal/parser"
	"github.com/mixelka/replywatch/pkg/models"
)

// outgoing is one plain-text message ready to be encoded
type outgoing struct {
	From    string
	To      string
	Subject string
	Body    string
	Date    time.Time
}

// buildMessage encodes msg as an RFC 5322 message and returns it with its Message-ID
func buildMessage(msg outgoing) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(msg.Date)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)

	messageID := generateMessageID(msg.From)
	h.SetMessageID(messageID)
	h.Set("MIME-Version", "1.0")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize message: %w", err)
	}

	return buf.Bytes(), messageID, nil
}

// generateMessageID returns an id without angle brackets, scoped to the sender's domain
func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("%s.%d@%s", uuid.NewString(), time.Now().UnixNano(), domain)
}

// parseCandidate extracts the reply-relevant fields from a fetched message.
// The Date header is kept raw; parsing it is the reply detector's job.
func parseCandidate(msg *imap.Message, section *imap.BodySectionName, htmlParser *parser.HTMLParser) (models.CandidateMessage, error) {
	cand := models.CandidateMessage{UID: msg.Uid}

	body := msg.GetBody(section)
	if body == nil {
		return cand, errors.New("server returned no message body")
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return cand, fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	cand.RawDate = strings.TrimSpace(mr.Header.Get("Date"))

	if subject, err := mr.Header.Subject(); err == nil {
		cand.Subject = subject
	} else {
		cand.Subject = mr.Header.Get("Subject")
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		cand.From = from[0].Address
	} else {
		cand.From = mr.Header.Get("From")
	}

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Headers are all the detector needs
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(ct, "text/plain") && textBody == "":
			textBody = string(data)
		case strings.HasPrefix(ct, "text/html") && htmlBody == "":
			htmlBody = string(data)
		}
	}
	cand.Snippet = htmlParser.Snippet(textBody, htmlBody, parser.DefaultSnippetLength)

	return cand, nil
}
