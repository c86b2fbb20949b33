package service

import (
	"context"
	"fmt"
	"time"

	"hubrelay/internal/constants"
	"hubrelay/internal/filter"
	"hubrelay/internal/models"
	"hubrelay/internal/tracing"
	"hubrelay/pkg/transport"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Relay is the orchestrator: an inbound message flows through connection
// resolution, the moderation gate, the content filter, per-target
// formatting and the broadcast dispatcher, and its delivery results are
// recorded for later mutation replay.
type Relay struct {
	registry   *Registry
	hubs       HubStore
	gate       *Gate
	filter     *filter.Filter
	formatter  *Formatter
	dispatcher *Dispatcher
	store      *MessageStore
	propagator *Propagator
	notifier   transport.Notifier
	logger     *logrus.Logger
}

func NewRelay(registry *Registry, hubs HubStore, gate *Gate, f *filter.Filter, formatter *Formatter, dispatcher *Dispatcher, store *MessageStore, propagator *Propagator, notifier transport.Notifier, logger *logrus.Logger) *Relay {
	return &Relay{
		registry:   registry,
		hubs:       hubs,
		gate:       gate,
		filter:     f,
		formatter:  formatter,
		dispatcher: dispatcher,
		store:      store,
		propagator: propagator,
		notifier:   notifier,
		logger:     logger,
	}
}

// HandleInbound relays one message event. A nil return with no broadcast
// means the message simply wasn't eligible (unconnected channel, policy
// block); errors are reserved for infrastructure failures that abort the
// whole operation.
func (r *Relay) HandleInbound(ctx context.Context, in *models.InboundMessage) error {
	ctx, span := tracing.StartSpan(ctx, "relay.inbound",
		attribute.String("channel_id", in.ChannelID))
	defer span.End()

	conn, err := r.registry.GetConnection(ctx, in.ChannelID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if conn == nil || !conn.Connected {
		return nil
	}

	hub, err := r.hubs.GetHub(ctx, conn.HubID)
	if err != nil {
		return err
	}
	if hub == nil {
		r.logger.WithField("hubId", conn.HubID).Warn("Connection references missing hub")
		return nil
	}

	msg := &models.OriginalMessage{
		ID:        in.MessageID,
		AuthorID:  in.AuthorID,
		AuthorTag: in.AuthorTag,
		AvatarURL: in.AvatarURL,
		HubID:     hub.ID,
		ChannelID: in.ChannelID,
		ServerID:  in.ServerID,
		Content:   in.Content,
		Timestamp: in.Timestamp,
		Reactions: models.ReactionTally{},
	}

	attachmentURL := ""
	if len(in.Attachments) > 0 {
		attachmentURL = in.Attachments[0]
	}

	verdict, err := r.gate.Evaluate(ctx, msg, hub, attachmentURL)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if !verdict.Allowed {
		span.SetAttributes(attribute.String("blocked", verdict.Reason))
		r.notice(ctx, in.ChannelID, fmt.Sprintf("<@%s> your message was not relayed: %s.", in.AuthorID, verdict.Reason))
		return nil
	}

	if hub.Settings.Has(models.SettingHideLinks) {
		msg.Content = RedactLinks(msg.Content)
	}

	displayName := in.AuthorTag
	if hub.Settings.Has(models.SettingUseNicknames) && in.AuthorNick != "" {
		displayName = in.AuthorNick
	}

	// Record the original before fan-out so every broadcast has a parent.
	if err := r.store.RecordOriginal(ctx, msg); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	fc := FormatContext{
		Hub:           hub,
		DisplayName:   displayName,
		Censored:      r.filter.Censor(msg.Content, constants.CensorSymbol),
		AttachmentURL: attachmentURL,
		ReplyFor:      r.resolveReply(ctx, in),
	}
	build := func(conn *models.Connection) (*transport.Payload, error) {
		return r.formatter.Format(msg, conn, fc), nil
	}

	results, err := r.dispatcher.Broadcast(ctx, conn, msg.ID, build)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if len(in.Attachments) > 1 {
		r.notice(ctx, in.ChannelID, fmt.Sprintf("<@%s> only your first attachment was relayed.", in.AuthorID))
	}

	r.registry.Touch(ctx, conn.ChannelID, time.Now().UTC())

	delivered := Delivered(results)
	span.SetAttributes(attribute.Int("delivered", delivered), attribute.Int("targets", len(results)))
	r.logger.WithFields(logrus.Fields{
		"hubId":     hub.ID,
		"messageId": msg.ID,
		"delivered": delivered,
		"targets":   len(results),
	}).Info("Message relayed")

	return nil
}

// resolveReply builds the per-target reply reference resolver for a message
// that replies to a tracked network message. Returns nil when the reply
// target is unknown to the network.
func (r *Relay) resolveReply(ctx context.Context, in *models.InboundMessage) func(conn *models.Connection) *ReplyRef {
	if in.RepliedToID == "" {
		return nil
	}

	ref, err := r.store.GetOriginal(ctx, in.RepliedToID)
	if err != nil || ref == nil {
		if ref, err = r.store.FindOriginalByBroadcastID(ctx, in.RepliedToID); err != nil || ref == nil {
			return nil
		}
	}

	copies, err := r.store.GetBroadcasts(ctx, ref.ID)
	if err != nil {
		copies = nil
	}
	byChannel := make(map[string]models.Broadcast, len(copies))
	for _, b := range copies {
		byChannel[b.ChannelID] = b
	}

	excerpt := Excerpt(ref.Content, constants.MaxExcerptLength)
	return func(conn *models.Connection) *ReplyRef {
		rr := &ReplyRef{AuthorTag: ref.AuthorTag, Excerpt: excerpt}
		if b, ok := byChannel[conn.ChannelID]; ok {
			rr.JumpLink = jumpLink(conn.ServerID, conn.ChannelID, b.MessageID)
		}
		return rr
	}
}

// HandleReactionEvent resolves the network message behind a reaction event
// in any channel and replays the toggle. Untracked messages are ignored.
func (r *Relay) HandleReactionEvent(ctx context.Context, messageID, emoji, userID string, add bool) error {
	original, err := r.resolveTracked(ctx, messageID)
	if err != nil || original == nil {
		return err
	}
	return r.propagator.PropagateReaction(ctx, original.ID, emoji, userID, add)
}

// HandleEditEvent replays an author's edit of the source message.
func (r *Relay) HandleEditEvent(ctx context.Context, messageID, newContent string) error {
	original, err := r.store.GetOriginal(ctx, messageID)
	if err != nil || original == nil {
		// Only source messages are editable by their author; copies are
		// webhook-owned.
		return err
	}
	return r.propagator.PropagateEdit(ctx, original.ID, newContent)
}

// HandleDeleteEvent replays a deletion starting from the source message or
// any relayed copy.
func (r *Relay) HandleDeleteEvent(ctx context.Context, messageID string) error {
	original, err := r.resolveTracked(ctx, messageID)
	if err != nil || original == nil {
		return err
	}
	return r.propagator.PropagateDelete(ctx, original.ID)
}

func (r *Relay) resolveTracked(ctx context.Context, messageID string) (*models.OriginalMessage, error) {
	original, err := r.store.GetOriginal(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if original != nil {
		return original, nil
	}
	return r.store.FindOriginalByBroadcastID(ctx, messageID)
}

func (r *Relay) notice(ctx context.Context, channelID, content string) {
	if err := r.notifier.ChannelNotice(ctx, channelID, content); err != nil {
		r.logger.WithError(err).WithField("channelId", channelID).Debug("Notice undeliverable")
	}
}

func jumpLink(serverID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", serverID, channelID, messageID)
}
