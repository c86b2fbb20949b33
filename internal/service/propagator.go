package service

import (
	"context"
	"time"

	"hubrelay/internal/constants"
	"hubrelay/internal/errors"
	"hubrelay/internal/filter"
	"hubrelay/internal/models"
	"hubrelay/internal/tracing"
	"hubrelay/pkg/transport"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// HubStore resolves hubs for moderation and formatting.
type HubStore interface {
	GetHub(ctx context.Context, hubID string) (*models.Hub, error)
}

// LockCache holds the short-lived delete-in-progress locks. The lock TTL
// bounds how long a crashed process can wedge a message in Deleting; after
// expiry the lock is implicitly released and a retry is permitted.
type LockCache interface {
	AcquireDeleteLock(ctx context.Context, originalID string, ttl time.Duration) (bool, error)
	ReleaseDeleteLock(ctx context.Context, originalID string) error
	IsDeleteLocked(ctx context.Context, originalID string) (bool, error)
}

// Propagator replays reaction, edit and delete mutations across all
// previously delivered copies of an original message.
//
// Per original message the lifecycle is Active -> Deleting -> Purged;
// reaction and edit replays are rejected while Deleting.
type Propagator struct {
	store      *MessageStore
	dispatcher *Dispatcher
	locks      LockCache
	gate       *Gate
	filter     *filter.Filter
	formatter  *Formatter
	hubs       HubStore
	logger     *logrus.Logger
}

func NewPropagator(store *MessageStore, dispatcher *Dispatcher, locks LockCache, gate *Gate, f *filter.Filter, formatter *Formatter, hubs HubStore, logger *logrus.Logger) *Propagator {
	return &Propagator{
		store:      store,
		dispatcher: dispatcher,
		locks:      locks,
		gate:       gate,
		filter:     f,
		formatter:  formatter,
		hubs:       hubs,
		logger:     logger,
	}
}

// PropagateReaction toggles a user's membership in an emoji's tally,
// persists it, and re-renders the reaction line on every delivered copy.
// Per-copy edit failures are logged and ignored.
func (p *Propagator) PropagateReaction(ctx context.Context, originalID, emoji, userID string, add bool) error {
	ctx, span := tracing.StartSpan(ctx, "propagator.reaction",
		attribute.String("original_id", originalID))
	defer span.End()

	if err := p.rejectWhileDeleting(ctx, originalID); err != nil {
		return err
	}

	msg, err := p.store.GetOriginal(ctx, originalID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.NewUnknownMessageError(originalID)
	}

	if msg.Reactions == nil {
		msg.Reactions = models.ReactionTally{}
	}
	if !msg.Reactions.Toggle(emoji, userID, add) {
		// No-op toggle (double add or remove of an absent reaction).
		return nil
	}

	if err := p.store.UpdateReactions(ctx, msg); err != nil {
		return err
	}

	hub, err := p.hubs.GetHub(ctx, msg.HubID)
	if err != nil {
		return errors.NewStoreError("get hub", err)
	}
	if hub == nil || !hub.Settings.Has(models.SettingReactions) {
		// Tally persisted, but this hub does not mirror reactions on copies.
		return nil
	}

	p.rerenderCopies(ctx, msg, hub)
	return nil
}

// PropagateDelete removes the message network-wide: every delivered copy is
// deleted concurrently, then the original and its broadcasts are purged.
func (p *Propagator) PropagateDelete(ctx context.Context, originalID string) error {
	ctx, span := tracing.StartSpan(ctx, "propagator.delete",
		attribute.String("original_id", originalID))
	defer span.End()

	acquired, err := p.locks.AcquireDeleteLock(ctx, originalID, constants.DeleteLockTTL)
	if err != nil {
		return errors.NewCacheError("acquire delete lock", err)
	}
	if !acquired {
		return errors.NewDeleteInProgressError(originalID)
	}
	defer func() {
		if err := p.locks.ReleaseDeleteLock(ctx, originalID); err != nil {
			p.logger.WithError(err).WithField("originalId", originalID).Warn("Failed to release delete lock")
		}
	}()

	broadcasts, err := p.store.GetBroadcasts(ctx, originalID)
	if err != nil {
		return err
	}

	results := p.dispatcher.DeleteBroadcasts(ctx, broadcasts)
	failed := len(results) - Delivered(results)
	if failed > 0 {
		p.logger.WithFields(logrus.Fields{
			"originalId": originalID,
			"failed":     failed,
			"total":      len(results),
		}).Warn("Some copies could not be deleted")
	}

	return p.store.Delete(ctx, originalID)
}

// PropagateEdit re-moderates the new content and applies it to every
// delivered copy. An edit must not bypass moderation that would have vetoed
// the original message.
func (p *Propagator) PropagateEdit(ctx context.Context, originalID, newContent string) error {
	ctx, span := tracing.StartSpan(ctx, "propagator.edit",
		attribute.String("original_id", originalID))
	defer span.End()

	if err := p.rejectWhileDeleting(ctx, originalID); err != nil {
		return err
	}

	msg, err := p.store.GetOriginal(ctx, originalID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.NewUnknownMessageError(originalID)
	}

	hub, err := p.hubs.GetHub(ctx, msg.HubID)
	if err != nil {
		return errors.NewStoreError("get hub", err)
	}
	if hub == nil {
		return errors.NewNotFoundError("hub", msg.HubID)
	}

	candidate := *msg
	candidate.Content = newContent
	verdict, err := p.gate.EvaluateContent(ctx, &candidate, hub)
	if err != nil {
		return err
	}
	if !verdict.Allowed {
		return errors.New(errors.ErrCodePolicyBlocked, verdict.Reason)
	}

	if hub.Settings.Has(models.SettingHideLinks) {
		newContent = RedactLinks(newContent)
	}

	msg.Content = newContent
	if err := p.store.UpdateContent(ctx, msg); err != nil {
		return err
	}

	p.rerenderCopies(ctx, msg, hub)
	return nil
}

// rerenderCopies re-formats the message for every delivered copy and issues
// best-effort webhook edits.
func (p *Propagator) rerenderCopies(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub) {
	broadcasts, err := p.store.GetBroadcasts(ctx, msg.ID)
	if err != nil {
		p.logger.WithError(err).WithField("originalId", msg.ID).Warn("Could not list copies for re-render")
		return
	}
	if len(broadcasts) == 0 {
		return
	}

	fc := FormatContext{
		Hub:             hub,
		Censored:        p.filter.Censor(msg.Content, constants.CensorSymbol),
		ReactionSummary: RenderReactionSummary(msg.Reactions),
	}
	build := func(conn *models.Connection) (*transport.Payload, error) {
		return p.formatter.Format(msg, conn, fc), nil
	}

	results := p.dispatcher.EditBroadcasts(ctx, broadcasts, build)
	failed := len(results) - Delivered(results)
	if failed > 0 {
		p.logger.WithFields(logrus.Fields{
			"originalId": msg.ID,
			"failed":     failed,
			"total":      len(results),
		}).Warn("Some copies could not be re-rendered")
	}
}

func (p *Propagator) rejectWhileDeleting(ctx context.Context, originalID string) error {
	locked, err := p.locks.IsDeleteLocked(ctx, originalID)
	if err != nil {
		return errors.NewCacheError("check delete lock", err)
	}
	if locked {
		return errors.NewDeleteInProgressError(originalID)
	}
	return nil
}
