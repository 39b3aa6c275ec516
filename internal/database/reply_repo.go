package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mixelka/replywatch/pkg/models"
)

// RecordReply stores a detected reply
func (db *DB) RecordReply(ctx context.Context, reply *models.Reply) error {
	query := `
		INSERT INTO replies (from_addr, subject, snippet, received_at, detected_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		reply.FromAddr,
		reply.Subject,
		reply.Snippet,
		reply.ReceivedAt,
		reply.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	reply.ID = id
	return nil
}

// LatestReply returns the most recently detected reply
func (db *DB) LatestReply(ctx context.Context) (*models.Reply, error) {
	var reply models.Reply
	query := `SELECT * FROM replies ORDER BY detected_at DESC, id DESC LIMIT 1`
	err := db.GetContext(ctx, &reply, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reply: %w", err)
	}
	return &reply, nil
}
