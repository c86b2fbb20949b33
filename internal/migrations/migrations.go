package migrations

// GetInitialSchema returns the SQLite schema applied at startup. Statements
// are idempotent so re-running on an existing database is safe.
func GetInitialSchema() (string, error) {
	return initialSchema, nil
}

const initialSchema = `
CREATE TABLE IF NOT EXISTS hubs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    icon_url TEXT NOT NULL DEFAULT '',
    settings INTEGER NOT NULL DEFAULT 0,
    log_channel_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hub_moderators (
    user_id TEXT NOT NULL,
    hub_id TEXT NOT NULL,
    role TEXT NOT NULL,
    PRIMARY KEY (user_id, hub_id)
);

CREATE TABLE IF NOT EXISTS block_rules (
    id TEXT PRIMARY KEY,
    hub_id TEXT NOT NULL,
    name TEXT NOT NULL,
    words TEXT NOT NULL,
    actions TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_block_rules_hub ON block_rules(hub_id);

CREATE TABLE IF NOT EXISTS connections (
    channel_id TEXT PRIMARY KEY,
    server_id TEXT NOT NULL,
    parent_id TEXT,
    hub_id TEXT NOT NULL,
    webhook_url TEXT NOT NULL,
    connected INTEGER NOT NULL DEFAULT 1,
    compact INTEGER NOT NULL DEFAULT 0,
    profanity_filter INTEGER NOT NULL DEFAULT 1,
    invite_code TEXT,
    last_active TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_connections_hub ON connections(hub_id);

CREATE TABLE IF NOT EXISTS infractions (
    id TEXT PRIMARY KEY,
    hub_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    target_type TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_infractions_lookup ON infractions(hub_id, target_id, status);
CREATE INDEX IF NOT EXISTS idx_infractions_expiry ON infractions(status, expires_at);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    author_id TEXT NOT NULL,
    author_tag TEXT NOT NULL,
    author_avatar TEXT NOT NULL DEFAULT '',
    hub_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    server_id TEXT NOT NULL,
    content TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    reactions TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);

CREATE TABLE IF NOT EXISTS broadcasts (
    original_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    thread_id TEXT,
    PRIMARY KEY (original_id, channel_id)
);

CREATE INDEX IF NOT EXISTS idx_broadcasts_message ON broadcasts(message_id);
`
