package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hubrelay/internal/models"
)

func (d *Database) AddInfraction(ctx context.Context, inf *models.Infraction) error {
	query := `
		INSERT INTO infractions (id, hub_id, target_id, target_type, reason, status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	status := inf.Status
	if status == "" {
		status = models.InfractionActive
	}
	return withRetry(ctx, "add infraction", func() error {
		_, err := d.db.ExecContext(ctx, query,
			inf.ID, inf.HubID, inf.TargetID, inf.TargetType, inf.Reason, status, inf.ExpiresAt)
		return err
	})
}

// GetActiveInfraction returns the active infraction for a target in a hub,
// or nil when the target is unrestricted. Callers still check the expiry:
// rows are expired lazily here and proactively by the maintenance sweep.
func (d *Database) GetActiveInfraction(ctx context.Context, hubID, targetID string, targetType models.InfractionTarget) (*models.Infraction, error) {
	query := `
		SELECT id, hub_id, target_id, target_type, reason, status, expires_at, created_at
		FROM infractions
		WHERE hub_id = ? AND target_id = ? AND target_type = ? AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	inf := &models.Infraction{}
	var expiresAt sql.NullTime
	err := d.db.QueryRowContext(ctx, query, hubID, targetID, targetType).Scan(
		&inf.ID, &inf.HubID, &inf.TargetID, &inf.TargetType,
		&inf.Reason, &inf.Status, &expiresAt, &inf.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get infraction: %w", err)
	}
	if expiresAt.Valid {
		inf.ExpiresAt = &expiresAt.Time
	}
	return inf, nil
}

func (d *Database) ExpireInfraction(ctx context.Context, infractionID string) error {
	query := `UPDATE infractions SET status = 'expired' WHERE id = ?`
	return withRetry(ctx, "expire infraction", func() error {
		_, err := d.db.ExecContext(ctx, query, infractionID)
		return err
	})
}

// ExpireInfractionsBefore flips every active infraction whose expiry has
// passed and returns how many rows changed.
func (d *Database) ExpireInfractionsBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE infractions SET status = 'expired'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < ?
	`
	var affected int64
	err := withRetry(ctx, "expire infractions", func() error {
		res, err := d.db.ExecContext(ctx, query, now)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (d *Database) RemoveInfraction(ctx context.Context, hubID, targetID string, targetType models.InfractionTarget) error {
	query := `DELETE FROM infractions WHERE hub_id = ? AND target_id = ? AND target_type = ?`
	return withRetry(ctx, "remove infraction", func() error {
		_, err := d.db.ExecContext(ctx, query, hubID, targetID, targetType)
		return err
	})
}
