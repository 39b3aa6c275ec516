package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mixelka/replywatch/pkg/models"
)

// RecordSent stores an outbound email
func (db *DB) RecordSent(ctx context.Context, msg *models.SentMessage) error {
	query := `
		INSERT OR IGNORE INTO sent_messages (message_id, recipient, subject, sent_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		msg.MessageID,
		msg.Recipient,
		msg.Subject,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sent message: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// LastSent returns the most recent outbound email
func (db *DB) LastSent(ctx context.Context) (*models.SentMessage, error) {
	var msg models.SentMessage
	query := `SELECT * FROM sent_messages ORDER BY sent_at DESC, id DESC LIMIT 1`
	err := db.GetContext(ctx, &msg, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sent message: %w", err)
	}
	return &msg, nil
}

// CountSent returns how many emails were sent to recipient
func (db *DB) CountSent(ctx context.Context, recipient string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sent_messages WHERE recipient = ?`
	if err := db.GetContext(ctx, &count, query, recipient); err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}
	return count, nil
}
