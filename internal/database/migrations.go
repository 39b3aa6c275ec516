package database

const schema = `
CREATE TABLE IF NOT EXISTS sent_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL,
    recipient TEXT NOT NULL,
    subject TEXT,
    sent_at DATETIME NOT NULL,
    UNIQUE(message_id)
);

CREATE TABLE IF NOT EXISTS replies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    from_addr TEXT NOT NULL,
    subject TEXT,
    snippet TEXT,
    received_at DATETIME NOT NULL,
    detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_recipient ON sent_messages(recipient);
CREATE INDEX IF NOT EXISTS idx_sent_at ON sent_messages(sent_at);
CREATE INDEX IF NOT EXISTS idx_replies_detected ON replies(detected_at);
`
