package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/bwmarrin/discordgo"
)

var webhookURLPattern = regexp.MustCompile(`/webhooks/(\d+)/([A-Za-z0-9_.-]+)`)

// ParseWebhookURL extracts the webhook id and token from an endpoint URL.
func ParseWebhookURL(url string) (id, token string, err error) {
	m := webhookURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("malformed webhook URL")
	}
	return m[1], m[2], nil
}

// DiscordClient implements Client against Discord's webhook API.
type DiscordClient struct {
	session *discordgo.Session
}

func NewDiscordClient(session *discordgo.Session) *DiscordClient {
	return &DiscordClient{session: session}
}

func (c *DiscordClient) Send(ctx context.Context, webhookURL, threadID string, p *Payload) (string, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEndpointGone, err)
	}

	params := &discordgo.WebhookParams{
		Content:   p.Content,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		// Relayed content must never ping through to target servers.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if p.Embed != nil {
		params.Embeds = []*discordgo.MessageEmbed{toMessageEmbed(p.Embed)}
	}

	var msg *discordgo.Message
	if threadID != "" {
		msg, err = c.session.WebhookThreadExecute(id, token, true, threadID, params, discordgo.WithContext(ctx))
	} else {
		msg, err = c.session.WebhookExecute(id, token, true, params, discordgo.WithContext(ctx))
	}
	if err != nil {
		return "", classifyWebhookError(err)
	}
	if msg == nil {
		return "", fmt.Errorf("webhook send returned no message")
	}
	return msg.ID, nil
}

func (c *DiscordClient) Edit(ctx context.Context, webhookURL, threadID, messageID string, p *Payload) error {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointGone, err)
	}

	content := p.Content
	data := &discordgo.WebhookEdit{Content: &content}
	if p.Embed != nil {
		embeds := []*discordgo.MessageEmbed{toMessageEmbed(p.Embed)}
		data.Embeds = &embeds
	}

	if threadID == "" {
		_, err = c.session.WebhookMessageEdit(id, token, messageID, data, discordgo.WithContext(ctx))
	} else {
		// Thread targets need the thread_id query parameter, which the
		// high-level helper does not expose.
		uri := discordgo.EndpointWebhookMessage(id, token, messageID) + "?thread_id=" + threadID
		_, err = c.session.RequestWithBucketID(http.MethodPatch, uri, data,
			discordgo.EndpointWebhookMessage(id, token, ""), discordgo.WithContext(ctx))
	}
	if err != nil {
		return classifyWebhookError(err)
	}
	return nil
}

func (c *DiscordClient) Delete(ctx context.Context, webhookURL, threadID, messageID string) error {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointGone, err)
	}

	if threadID == "" {
		err = c.session.WebhookMessageDelete(id, token, messageID, discordgo.WithContext(ctx))
	} else {
		uri := discordgo.EndpointWebhookMessage(id, token, messageID) + "?thread_id=" + threadID
		_, err = c.session.RequestWithBucketID(http.MethodDelete, uri, nil,
			discordgo.EndpointWebhookMessage(id, token, ""), discordgo.WithContext(ctx))
	}
	if err != nil {
		if isUnknownMessage(err) {
			// The copy is already gone; deletion is idempotent.
			return nil
		}
		return classifyWebhookError(err)
	}
	return nil
}

// classifyWebhookError maps platform error codes onto the transport
// taxonomy. Unknown webhook and lost access are permanent.
func classifyWebhookError(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownWebhook, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %v", ErrEndpointGone, err)
		}
	}
	return err
}

func isUnknownMessage(err error) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownMessage
}

func toMessageEmbed(e *Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: e.Description,
		Color:       e.Color,
	}
	if e.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    e.AuthorName,
			IconURL: e.AuthorIconURL,
			URL:     e.AuthorURL,
		}
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.FooterText != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    e.FooterText,
			IconURL: e.FooterIconURL,
		}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

// BotNotifier implements Notifier through the bot's own session, for
// channels where the webhook path is unavailable or inappropriate.
type BotNotifier struct {
	session *discordgo.Session
}

func NewBotNotifier(session *discordgo.Session) *BotNotifier {
	return &BotNotifier{session: session}
}

func (n *BotNotifier) ChannelNotice(ctx context.Context, channelID, content string) error {
	_, err := n.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

func (n *BotNotifier) EmbedNotice(ctx context.Context, channelID string, e *Embed) error {
	_, err := n.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(e), discordgo.WithContext(ctx))
	return err
}
