package transport

import (
	"context"
	"errors"
)

// ErrEndpointGone indicates the webhook endpoint no longer exists or is no
// longer usable (deleted webhook, revoked permissions). Callers mark the
// owning connection disconnected instead of retrying.
var ErrEndpointGone = errors.New("webhook endpoint gone")

// IsEndpointGone reports whether err means the webhook endpoint is
// permanently unusable.
func IsEndpointGone(err error) bool {
	return errors.Is(err, ErrEndpointGone)
}

// EmbedField is one name/value pair in a structured payload.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a platform-neutral structured payload body.
type Embed struct {
	AuthorName    string
	AuthorIconURL string
	AuthorURL     string
	Description   string
	Color         int
	ImageURL      string
	FooterText    string
	FooterIconURL string
	Fields        []EmbedField
}

// Payload is one formatted message ready for a webhook endpoint. Either
// Content or Embed (or both) may be set.
type Payload struct {
	Content   string
	Username  string
	AvatarURL string
	Embed     *Embed
}

// Client sends, edits and deletes messages through per-connection webhook
// endpoints. Send returns the remote message id of the delivered copy.
type Client interface {
	Send(ctx context.Context, webhookURL, threadID string, p *Payload) (string, error)
	Edit(ctx context.Context, webhookURL, threadID, messageID string, p *Payload) error
	Delete(ctx context.Context, webhookURL, threadID, messageID string) error
}

// Notifier posts plain notices and embeds directly into a channel, outside
// the webhook path. Used for alerts and one-time user notices.
type Notifier interface {
	ChannelNotice(ctx context.Context, channelID, content string) error
	EmbedNotice(ctx context.Context, channelID string, e *Embed) error
}
