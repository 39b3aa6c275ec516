package models

import "time"

// CandidateMessage is a message from the recipient found by a mailbox search.
// It lives for a single check.
type CandidateMessage struct {
	UID     uint32
	From    string
	Subject string
	RawDate string // Date header as received, parsed by the reply detector
	Snippet string
}

// SentMessage represents an outbound email recorded in the journal
type SentMessage struct {
	ID        int64     `db:"id"`
	MessageID string    `db:"message_id"` // Message-ID header
	Recipient string    `db:"recipient"`
	Subject   string    `db:"subject"`
	SentAt    time.Time `db:"sent_at"`
}

// Reply represents a detected reply to the last sent email
type Reply struct {
	ID         int64     `db:"id"`
	FromAddr   string    `db:"from_addr"`
	Subject    string    `db:"subject"`
	Snippet    string    `db:"snippet"`
	ReceivedAt time.Time `db:"received_at"` // parsed Date header
	DetectedAt time.Time `db:"detected_at"`
}
