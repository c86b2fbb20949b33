package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hubrelay/internal/migrations"
	"hubrelay/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the durable store for hubs, connections, infractions and
// relayed message records. It is the single source of truth; the Redis
// layer in internal/cache is strictly a rebuildable front.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports store reachability for readiness checks.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Hubs

func (d *Database) CreateHub(ctx context.Context, hub *models.Hub) error {
	query := `
		INSERT INTO hubs (id, name, owner_id, icon_url, settings, log_channel_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return withRetry(ctx, "create hub", func() error {
		_, err := d.db.ExecContext(ctx, query,
			hub.ID, hub.Name, hub.OwnerID, hub.IconURL, int64(hub.Settings), hub.LogChannelID)
		return err
	})
}

func (d *Database) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	query := `
		SELECT id, name, owner_id, icon_url, settings, log_channel_id, created_at, updated_at
		FROM hubs WHERE id = ?
	`

	hub := &models.Hub{}
	var settings int64
	err := d.db.QueryRowContext(ctx, query, hubID).Scan(
		&hub.ID, &hub.Name, &hub.OwnerID, &hub.IconURL, &settings,
		&hub.LogChannelID, &hub.CreatedAt, &hub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hub: %w", err)
	}
	hub.Settings = models.HubSettings(settings)

	hub.Moderators, err = d.getHubModerators(ctx, hubID)
	if err != nil {
		return nil, err
	}
	hub.BlockRules, err = d.GetBlockRules(ctx, hubID)
	if err != nil {
		return nil, err
	}

	return hub, nil
}

func (d *Database) UpdateHubSettings(ctx context.Context, hubID string, settings models.HubSettings) error {
	query := `UPDATE hubs SET settings = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return withRetry(ctx, "update hub settings", func() error {
		_, err := d.db.ExecContext(ctx, query, int64(settings), hubID)
		return err
	})
}

func (d *Database) SetHubLogChannel(ctx context.Context, hubID string, channelID *string) error {
	query := `UPDATE hubs SET log_channel_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return withRetry(ctx, "set hub log channel", func() error {
		_, err := d.db.ExecContext(ctx, query, channelID, hubID)
		return err
	})
}

// DeleteHub removes a hub and everything referencing it in one transaction.
func (d *Database) DeleteHub(ctx context.Context, hubID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin hub delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM connections WHERE hub_id = ?`,
		`DELETE FROM block_rules WHERE hub_id = ?`,
		`DELETE FROM infractions WHERE hub_id = ?`,
		`DELETE FROM hub_moderators WHERE hub_id = ?`,
		`DELETE FROM broadcasts WHERE original_id IN (SELECT id FROM messages WHERE hub_id = ?)`,
		`DELETE FROM messages WHERE hub_id = ?`,
		`DELETE FROM hubs WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, hubID); err != nil {
			return fmt.Errorf("failed to cascade hub delete: %w", err)
		}
	}

	return tx.Commit()
}

func (d *Database) getHubModerators(ctx context.Context, hubID string) ([]models.HubModerator, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, hub_id, role FROM hub_moderators WHERE hub_id = ?`, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hub moderators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mods []models.HubModerator
	for rows.Next() {
		var m models.HubModerator
		if err := rows.Scan(&m.UserID, &m.HubID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan moderator: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

func (d *Database) AddHubModerator(ctx context.Context, mod models.HubModerator) error {
	query := `INSERT OR REPLACE INTO hub_moderators (user_id, hub_id, role) VALUES (?, ?, ?)`
	return withRetry(ctx, "add hub moderator", func() error {
		_, err := d.db.ExecContext(ctx, query, mod.UserID, mod.HubID, mod.Role)
		return err
	})
}

// Block-word rules

func (d *Database) AddBlockRule(ctx context.Context, rule *models.BlockRule) error {
	words, err := json.Marshal(rule.Words)
	if err != nil {
		return fmt.Errorf("failed to marshal rule words: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule actions: %w", err)
	}

	query := `INSERT INTO block_rules (id, hub_id, name, words, actions) VALUES (?, ?, ?, ?, ?)`
	return withRetry(ctx, "add block rule", func() error {
		_, err := d.db.ExecContext(ctx, query, rule.ID, rule.HubID, rule.Name, string(words), string(actions))
		return err
	})
}

func (d *Database) RemoveBlockRule(ctx context.Context, hubID, ruleID string) error {
	query := `DELETE FROM block_rules WHERE hub_id = ? AND id = ?`
	return withRetry(ctx, "remove block rule", func() error {
		_, err := d.db.ExecContext(ctx, query, hubID, ruleID)
		return err
	})
}

func (d *Database) GetBlockRules(ctx context.Context, hubID string) ([]models.BlockRule, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, hub_id, name, words, actions, created_at FROM block_rules WHERE hub_id = ?`, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get block rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []models.BlockRule
	for rows.Next() {
		var rule models.BlockRule
		var words, actions string
		if err := rows.Scan(&rule.ID, &rule.HubID, &rule.Name, &words, &actions, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block rule: %w", err)
		}
		if err := json.Unmarshal([]byte(words), &rule.Words); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule words: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule actions: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Connections

func (d *Database) SaveConnection(ctx context.Context, conn *models.Connection) error {
	encryptedURL, err := d.encryptor.EncryptIfEnabled(conn.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to encrypt webhook URL: %w", err)
	}

	query := `
		INSERT INTO connections (
			channel_id, server_id, parent_id, hub_id, webhook_url,
			connected, compact, profanity_filter, invite_code, last_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			server_id = excluded.server_id,
			parent_id = excluded.parent_id,
			hub_id = excluded.hub_id,
			webhook_url = excluded.webhook_url,
			connected = excluded.connected,
			compact = excluded.compact,
			profanity_filter = excluded.profanity_filter,
			invite_code = excluded.invite_code,
			last_active = excluded.last_active,
			updated_at = CURRENT_TIMESTAMP
	`
	lastActive := conn.LastActive
	if lastActive.IsZero() {
		lastActive = time.Now().UTC()
	}
	return withRetry(ctx, "save connection", func() error {
		_, err := d.db.ExecContext(ctx, query,
			conn.ChannelID, conn.ServerID, conn.ParentID, conn.HubID, encryptedURL,
			conn.Connected, conn.Compact, conn.ProfanityFilter, conn.InviteCode, lastActive)
		return err
	})
}

const connectionColumns = `
	channel_id, server_id, parent_id, hub_id, webhook_url,
	connected, compact, profanity_filter, invite_code, last_active, created_at, updated_at
`

func (d *Database) scanConnection(row interface{ Scan(...interface{}) error }) (*models.Connection, error) {
	conn := &models.Connection{}
	var encryptedURL string
	err := row.Scan(
		&conn.ChannelID, &conn.ServerID, &conn.ParentID, &conn.HubID, &encryptedURL,
		&conn.Connected, &conn.Compact, &conn.ProfanityFilter, &conn.InviteCode,
		&conn.LastActive, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conn.WebhookURL, err = d.encryptor.DecryptIfEnabled(encryptedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt webhook URL: %w", err)
	}
	return conn, nil
}

func (d *Database) GetConnection(ctx context.Context, channelID string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE channel_id = ?`
	conn, err := d.scanConnection(d.db.QueryRowContext(ctx, query, channelID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

func (d *Database) GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE hub_id = ?`
	rows, err := d.db.QueryContext(ctx, query, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hub connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conns []models.Connection
	for rows.Next() {
		conn, err := d.scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

func (d *Database) SetConnected(ctx context.Context, channelID string, connected bool) error {
	query := `UPDATE connections SET connected = ?, updated_at = CURRENT_TIMESTAMP WHERE channel_id = ?`
	return withRetry(ctx, "set connected", func() error {
		_, err := d.db.ExecContext(ctx, query, connected, channelID)
		return err
	})
}

func (d *Database) TouchConnection(ctx context.Context, channelID string, at time.Time) error {
	query := `UPDATE connections SET last_active = ? WHERE channel_id = ?`
	return withRetry(ctx, "touch connection", func() error {
		_, err := d.db.ExecContext(ctx, query, at, channelID)
		return err
	})
}

func (d *Database) DeleteConnection(ctx context.Context, channelID string) error {
	query := `DELETE FROM connections WHERE channel_id = ?`
	return withRetry(ctx, "delete connection", func() error {
		_, err := d.db.ExecContext(ctx, query, channelID)
		return err
	})
}
