package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"hubrelay/internal/constants"
	"hubrelay/internal/models"
	"hubrelay/pkg/transport"
)

// ReplyRef describes the tracked network message a relayed message replies
// to, resolved per target channel.
type ReplyRef struct {
	AuthorTag string
	Excerpt   string
	JumpLink  string
}

// FormatContext carries the per-broadcast inputs shared by all targets.
// Per-target selection (compact vs embed, censored vs raw) happens inside
// Format based on the connection's own flags.
type FormatContext struct {
	Hub             *models.Hub
	DisplayName     string
	Censored        string
	AttachmentURL   string
	ReactionSummary string

	// ReplyFor resolves the reply reference for one target connection; nil
	// when the message is not a reply to a tracked message.
	ReplyFor func(conn *models.Connection) *ReplyRef
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// RedactLinks replaces every URL in content with a placeholder. Applied
// when the hub's hide-links setting is on.
func RedactLinks(content string) string {
	return linkPattern.ReplaceAllString(content, "`[link hidden]`")
}

// Formatter converts a source message into a platform payload for one
// target connection. It never fails on missing optional fields; defaults
// are substituted instead.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Format(msg *models.OriginalMessage, conn *models.Connection, fc FormatContext) *transport.Payload {
	content := msg.Content
	if conn.ProfanityFilter && fc.Censored != "" {
		content = fc.Censored
	}

	name := fc.DisplayName
	if name == "" {
		name = msg.AuthorTag
	}
	if name == "" {
		name = "Unknown User"
	}

	avatar := msg.AvatarURL
	if avatar == "" {
		avatar = constants.DefaultAvatarURL
	}

	if conn.Compact {
		return f.formatCompact(name, avatar, content, fc)
	}
	return f.formatEmbed(msg, conn, name, avatar, content, fc)
}

// formatCompact renders the plain-text variant. Only the first attachment
// is forwarded; the relay informs the author once per source message when
// more were present.
func (f *Formatter) formatCompact(name, avatar, content string, fc FormatContext) *transport.Payload {
	text := fmt.Sprintf("**%s:** %s", name, content)
	if fc.AttachmentURL != "" {
		text = strings.TrimRight(text+"\n"+fc.AttachmentURL, "\n")
	}
	return &transport.Payload{
		Content:   text,
		Username:  name,
		AvatarURL: avatar,
	}
}

func (f *Formatter) formatEmbed(msg *models.OriginalMessage, conn *models.Connection, name, avatar, content string, fc FormatContext) *transport.Payload {
	embed := &transport.Embed{
		AuthorName:    name,
		AuthorIconURL: avatar,
		Description:   content,
		Color:         constants.EmbedColorRelay,
		ImageURL:      fc.AttachmentURL,
	}

	hubName := ""
	hubIcon := ""
	if fc.Hub != nil {
		hubName = fc.Hub.Name
		hubIcon = fc.Hub.IconURL
	}
	if hubName != "" {
		embed.FooterText = hubName
		embed.FooterIconURL = hubIcon
	}

	if fc.ReplyFor != nil {
		if ref := fc.ReplyFor(conn); ref != nil {
			value := ref.Excerpt
			if ref.JumpLink != "" {
				value = fmt.Sprintf("[%s](%s)", ref.Excerpt, ref.JumpLink)
			}
			embed.Fields = append(embed.Fields, transport.EmbedField{
				Name:  "Replying to " + ref.AuthorTag,
				Value: value,
			})
		}
	}

	if fc.ReactionSummary != "" {
		embed.Fields = append(embed.Fields, transport.EmbedField{
			Name:   "Reactions",
			Value:  fc.ReactionSummary,
			Inline: true,
		})
	}

	payload := &transport.Payload{
		AvatarURL: hubIcon,
		Embed:     embed,
	}
	if hubName != "" {
		payload.Username = hubName
	} else {
		payload.Username = name
		payload.AvatarURL = avatar
	}
	if payload.AvatarURL == "" {
		payload.AvatarURL = constants.DefaultAvatarURL
	}
	return payload
}

// RenderReactionSummary renders a stable one-line tally, e.g. "👍 3 · 😆 1".
func RenderReactionSummary(tally models.ReactionTally) string {
	if len(tally) == 0 {
		return ""
	}
	emojis := make([]string, 0, len(tally))
	for emoji := range tally {
		emojis = append(emojis, emoji)
	}
	sort.Strings(emojis)

	parts := make([]string, 0, len(emojis))
	for _, emoji := range emojis {
		parts = append(parts, fmt.Sprintf("%s %d", emoji, len(tally[emoji])))
	}
	return strings.Join(parts, " · ")
}

// Excerpt shortens content for reply references and alerts.
func Excerpt(content string, max int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
