package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hubrelay/internal/models"
)

func (d *Database) SaveOriginal(ctx context.Context, msg *models.OriginalMessage) error {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = models.ReactionTally{}
	}
	tally, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to marshal reactions: %w", err)
	}

	query := `
		INSERT INTO messages (id, author_id, author_tag, author_avatar, hub_id, channel_id, server_id, content, timestamp, reactions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, reactions = excluded.reactions
	`
	return withRetry(ctx, "save original message", func() error {
		_, err := d.db.ExecContext(ctx, query,
			msg.ID, msg.AuthorID, msg.AuthorTag, msg.AvatarURL, msg.HubID,
			msg.ChannelID, msg.ServerID, msg.Content, msg.Timestamp, string(tally))
		return err
	})
}

func (d *Database) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	query := `
		SELECT id, author_id, author_tag, author_avatar, hub_id, channel_id, server_id, content, timestamp, reactions
		FROM messages WHERE id = ?
	`

	msg := &models.OriginalMessage{}
	var tally string
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.AuthorID, &msg.AuthorTag, &msg.AvatarURL, &msg.HubID,
		&msg.ChannelID, &msg.ServerID, &msg.Content, &msg.Timestamp, &tally)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get original message: %w", err)
	}
	if err := json.Unmarshal([]byte(tally), &msg.Reactions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reactions: %w", err)
	}
	return msg, nil
}

func (d *Database) UpdateReactions(ctx context.Context, id string, reactions models.ReactionTally) error {
	tally, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to marshal reactions: %w", err)
	}
	query := `UPDATE messages SET reactions = ? WHERE id = ?`
	return withRetry(ctx, "update reactions", func() error {
		_, err := d.db.ExecContext(ctx, query, string(tally), id)
		return err
	})
}

func (d *Database) UpdateContent(ctx context.Context, id, content string) error {
	query := `UPDATE messages SET content = ? WHERE id = ?`
	return withRetry(ctx, "update content", func() error {
		_, err := d.db.ExecContext(ctx, query, content, id)
		return err
	})
}

// SaveBroadcast records one delivered copy. The (original, channel) primary
// key enforces at-most-once per target; a replayed insert is ignored.
func (d *Database) SaveBroadcast(ctx context.Context, b *models.Broadcast) error {
	query := `
		INSERT OR IGNORE INTO broadcasts (original_id, channel_id, message_id, thread_id)
		VALUES (?, ?, ?, ?)
	`
	return withRetry(ctx, "save broadcast", func() error {
		_, err := d.db.ExecContext(ctx, query, b.OriginalID, b.ChannelID, b.MessageID, b.ThreadID)
		return err
	})
}

func (d *Database) GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error) {
	query := `SELECT original_id, channel_id, message_id, thread_id FROM broadcasts WHERE original_id = ?`
	rows, err := d.db.QueryContext(ctx, query, originalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcasts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var broadcasts []models.Broadcast
	for rows.Next() {
		var b models.Broadcast
		if err := rows.Scan(&b.OriginalID, &b.ChannelID, &b.MessageID, &b.ThreadID); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}

// GetOriginalByBroadcastID resolves the original message from the remote id
// of any relayed copy. Moderation actions can start from any channel in the
// hub, not just the source.
func (d *Database) GetOriginalByBroadcastID(ctx context.Context, remoteMsgID string) (*models.OriginalMessage, error) {
	query := `SELECT original_id FROM broadcasts WHERE message_id = ? LIMIT 1`
	var originalID string
	err := d.db.QueryRowContext(ctx, query, remoteMsgID).Scan(&originalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broadcast: %w", err)
	}
	return d.GetOriginal(ctx, originalID)
}

// DeleteOriginal removes a message and its broadcasts in one transaction.
func (d *Database) DeleteOriginal(ctx context.Context, originalID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin message delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM broadcasts WHERE original_id = ?`, originalID); err != nil {
		return fmt.Errorf("failed to delete broadcasts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, originalID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return tx.Commit()
}

// PurgeMessagesBefore garbage-collects originals older than the retention
// window together with their broadcasts.
func (d *Database) PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM broadcasts WHERE original_id IN (SELECT id FROM messages WHERE timestamp < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to purge broadcasts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, tx.Commit()
}
