package models

import "time"

// Connection is one channel's membership in a hub. A channel belongs to at
// most one hub at a time; the channel id is the primary key.
type Connection struct {
	ChannelID       string     `db:"channel_id"`
	ServerID        string     `db:"server_id"`
	ParentID        *string    `db:"parent_id"` // set when the connection lives in a thread
	HubID           string     `db:"hub_id"`
	WebhookURL      string     `db:"webhook_url"`
	Connected       bool       `db:"connected"`
	Compact         bool       `db:"compact"`
	ProfanityFilter bool       `db:"profanity_filter"`
	InviteCode      *string    `db:"invite_code"`
	LastActive      time.Time  `db:"last_active"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// ThreadID returns the thread a relayed copy must be posted into, or ""
// when the connection targets a plain channel.
func (c *Connection) ThreadID() string {
	if c.ParentID == nil {
		// not a thread connection
		return ""
	}
	return c.ChannelID
}

// TargetChannelID returns the id webhook calls are addressed to. Webhooks
// hang off the parent channel when the connection lives in a thread.
func (c *Connection) TargetChannelID() string {
	if c.ParentID != nil {
		return *c.ParentID
	}
	return c.ChannelID
}
