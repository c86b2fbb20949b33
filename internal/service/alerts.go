package service

import (
	"context"
	"fmt"

	"hubrelay/internal/constants"
	"hubrelay/internal/models"
	"hubrelay/pkg/transport"

	"github.com/sirupsen/logrus"
)

// AlertNotifier posts moderation alerts to a hub's configured log channel.
// Alerts are best-effort: failures are logged and swallowed so a broken log
// channel never affects relaying.
type AlertNotifier struct {
	notifier transport.Notifier
	logger   *logrus.Logger
}

func NewAlertNotifier(notifier transport.Notifier, logger *logrus.Logger) *AlertNotifier {
	return &AlertNotifier{notifier: notifier, logger: logger}
}

func (a *AlertNotifier) RuleAlert(ctx context.Context, hub *models.Hub, rule *models.BlockRule, msg *models.OriginalMessage, excerpt string) {
	embed := &transport.Embed{
		AuthorName:  "Block-word rule triggered",
		Color:       constants.EmbedColorAlert,
		Description: fmt.Sprintf("Rule **%s** matched a message and it was not relayed.", rule.Name),
		Fields: []transport.EmbedField{
			{Name: "Author", Value: fmt.Sprintf("%s (%s)", msg.AuthorTag, msg.AuthorID), Inline: true},
			{Name: "Channel", Value: msg.ChannelID, Inline: true},
			{Name: "Matched excerpt", Value: Excerpt(excerpt, constants.MaxExcerptLength)},
		},
		FooterText: hub.Name,
	}
	a.post(ctx, hub, embed)
}

func (a *AlertNotifier) NSFWAlert(ctx context.Context, hub *models.Hub, msg *models.OriginalMessage, imageURL string, score float64) {
	embed := &transport.Embed{
		AuthorName:  "NSFW attachment blocked",
		Color:       constants.EmbedColorAlert,
		Description: fmt.Sprintf("An attachment was classified as NSFW (%.0f%% confidence) and the message was not relayed.", score*100),
		Fields: []transport.EmbedField{
			{Name: "Author", Value: fmt.Sprintf("%s (%s)", msg.AuthorTag, msg.AuthorID), Inline: true},
			{Name: "Channel", Value: msg.ChannelID, Inline: true},
		},
		FooterText: hub.Name,
	}
	a.post(ctx, hub, embed)
}

func (a *AlertNotifier) post(ctx context.Context, hub *models.Hub, embed *transport.Embed) {
	if hub.LogChannelID == nil || *hub.LogChannelID == "" {
		return
	}
	if err := a.notifier.EmbedNotice(ctx, *hub.LogChannelID, embed); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"hubId":        hub.ID,
			"logChannelId": *hub.LogChannelID,
		}).Warn("Failed to deliver moderation alert")
	}
}
