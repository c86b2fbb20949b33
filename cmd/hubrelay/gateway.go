package main

import (
	"context"
	"time"

	"hubrelay/internal/constants"
	apperrors "hubrelay/internal/errors"
	"hubrelay/internal/models"
	"hubrelay/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// registerGatewayHandlers connects gateway events to the relay. Each
// handler runs with its own deadline so a stuck downstream cannot pile
// up gateway goroutines forever.
func registerGatewayHandlers(session *discordgo.Session, relay *service.Relay, logger *logrus.Logger) {
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Relayed copies arrive as webhook messages; skip those along
		// with anything else not authored by a person.
		if m.Author == nil || m.Author.Bot || m.WebhookID != "" {
			return
		}
		if m.Content == "" && len(m.Attachments) == 0 {
			return
		}

		in := &models.InboundMessage{
			MessageID: m.ID,
			ChannelID: m.ChannelID,
			ServerID:  m.GuildID,
			AuthorID:  m.Author.ID,
			AuthorTag: m.Author.String(),
			AvatarURL: m.Author.AvatarURL(""),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		if m.Member != nil {
			in.AuthorNick = m.Member.Nick
		}
		for _, a := range m.Attachments {
			in.Attachments = append(in.Attachments, a.URL)
		}
		if m.MessageReference != nil {
			in.RepliedToID = m.MessageReference.MessageID
		}

		ctx, cancel := handlerContext()
		defer cancel()
		if err := relay.HandleInbound(ctx, in); err != nil {
			logger.WithError(err).WithField("messageId", m.ID).Error("Inbound message failed")
		}
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		handleReaction(relay, logger, r.MessageReaction, true)
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		handleReaction(relay, logger, r.MessageReaction, false)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Author == nil || m.Author.Bot || m.WebhookID != "" {
			return
		}
		// Embed-only updates (link unfurls) carry no content change.
		if m.Content == "" {
			return
		}

		ctx, cancel := handlerContext()
		defer cancel()
		err := relay.HandleEditEvent(ctx, m.ID, m.Content)
		if err != nil && !ignorableEventError(err) {
			logger.WithError(err).WithField("messageId", m.ID).Error("Edit propagation failed")
		}
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		ctx, cancel := handlerContext()
		defer cancel()
		err := relay.HandleDeleteEvent(ctx, m.ID)
		if err != nil && !ignorableEventError(err) {
			logger.WithError(err).WithField("messageId", m.ID).Error("Delete propagation failed")
		}
	})
}

func handleReaction(relay *service.Relay, logger *logrus.Logger, r *discordgo.MessageReaction, add bool) {
	ctx, cancel := handlerContext()
	defer cancel()
	err := relay.HandleReactionEvent(ctx, r.MessageID, r.Emoji.APIName(), r.UserID, add)
	if err != nil && !ignorableEventError(err) {
		logger.WithError(err).WithField("messageId", r.MessageID).Error("Reaction propagation failed")
	}
}

func handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), constants.DefaultHTTPTimeoutSec*time.Second)
}

// ignorableEventError reports errors that are expected in normal
// operation: events for messages the relay never tracked, and
// duplicate deletes racing an in-flight purge.
func ignorableEventError(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeNotFound) ||
		apperrors.HasCode(err, apperrors.ErrCodeDeleteInProgress)
}
