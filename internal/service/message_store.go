package service

import (
	"context"

	"hubrelay/internal/errors"
	"hubrelay/internal/models"

	"github.com/sirupsen/logrus"
)

// MessageDB is the durable side of the message store.
type MessageDB interface {
	SaveOriginal(ctx context.Context, msg *models.OriginalMessage) error
	GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error)
	UpdateReactions(ctx context.Context, id string, reactions models.ReactionTally) error
	UpdateContent(ctx context.Context, id, content string) error
	SaveBroadcast(ctx context.Context, b *models.Broadcast) error
	GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error)
	GetOriginalByBroadcastID(ctx context.Context, remoteMsgID string) (*models.OriginalMessage, error)
	DeleteOriginal(ctx context.Context, originalID string) error
}

// MessageCache is the fast front layer of the message store. Entries expire
// with the retention window; the store is the durable fallback, most
// importantly for the reverse lookup after eviction.
type MessageCache interface {
	SetOriginal(ctx context.Context, msg *models.OriginalMessage) error
	GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error)
	DeleteOriginal(ctx context.Context, id string) error
	SetBroadcasts(ctx context.Context, originalID string, broadcasts []models.Broadcast) error
	GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error)
	InvalidateBroadcasts(ctx context.Context, originalID string) error
	SetBroadcastIndex(ctx context.Context, remoteMsgID, originalID string) error
	GetBroadcastIndex(ctx context.Context, remoteMsgID string) (string, error)
	DeleteBroadcastIndex(ctx context.Context, remoteMsgIDs ...string) error
}

// MessageStore maps an original message to its delivered copies for later
// edit/delete/reaction propagation.
type MessageStore struct {
	db     MessageDB
	cache  MessageCache
	logger *logrus.Logger
}

func NewMessageStore(db MessageDB, cache MessageCache, logger *logrus.Logger) *MessageStore {
	return &MessageStore{db: db, cache: cache, logger: logger}
}

func (s *MessageStore) RecordOriginal(ctx context.Context, msg *models.OriginalMessage) error {
	if err := s.db.SaveOriginal(ctx, msg); err != nil {
		return errors.NewStoreError("save original", err)
	}
	if err := s.cache.SetOriginal(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("messageId", msg.ID).Warn("Failed to cache original message")
	}
	return nil
}

// RecordBroadcast persists one delivered copy and indexes its remote id for
// the reverse lookup. Called concurrently during fan-out; every cache write
// is a single atomic key operation.
func (s *MessageStore) RecordBroadcast(ctx context.Context, b *models.Broadcast) error {
	if err := s.db.SaveBroadcast(ctx, b); err != nil {
		return errors.NewStoreError("save broadcast", err)
	}
	if err := s.cache.SetBroadcastIndex(ctx, b.MessageID, b.OriginalID); err != nil {
		s.logger.WithError(err).WithField("messageId", b.MessageID).Warn("Failed to index broadcast")
	}
	// Drop the cached list; the next read rebuilds it from the store.
	if err := s.cache.InvalidateBroadcasts(ctx, b.OriginalID); err != nil {
		s.logger.WithError(err).WithField("originalId", b.OriginalID).Warn("Failed to invalidate broadcast list")
	}
	return nil
}

func (s *MessageStore) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	msg, err := s.cache.GetOriginal(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("messageId", id).Warn("Message cache read failed")
	} else if msg != nil {
		return msg, nil
	}

	msg, err = s.db.GetOriginal(ctx, id)
	if err != nil {
		return nil, errors.NewStoreError("get original", err)
	}
	if msg == nil {
		return nil, nil
	}
	if err := s.cache.SetOriginal(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("messageId", id).Warn("Failed to repopulate message cache")
	}
	return msg, nil
}

func (s *MessageStore) GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error) {
	broadcasts, err := s.cache.GetBroadcasts(ctx, originalID)
	if err != nil {
		s.logger.WithError(err).WithField("originalId", originalID).Warn("Broadcast cache read failed")
	} else if broadcasts != nil {
		return broadcasts, nil
	}

	broadcasts, err = s.db.GetBroadcasts(ctx, originalID)
	if err != nil {
		return nil, errors.NewStoreError("get broadcasts", err)
	}
	if err := s.cache.SetBroadcasts(ctx, originalID, broadcasts); err != nil {
		s.logger.WithError(err).WithField("originalId", originalID).Warn("Failed to repopulate broadcast cache")
	}
	return broadcasts, nil
}

// FindOriginalByBroadcastID resolves an original from the remote id of any
// relayed copy. Needed when a moderation action starts in a channel that
// only holds a copy.
func (s *MessageStore) FindOriginalByBroadcastID(ctx context.Context, remoteMsgID string) (*models.OriginalMessage, error) {
	originalID, err := s.cache.GetBroadcastIndex(ctx, remoteMsgID)
	if err != nil {
		s.logger.WithError(err).WithField("messageId", remoteMsgID).Warn("Broadcast index read failed")
	}
	if originalID != "" {
		return s.GetOriginal(ctx, originalID)
	}

	msg, err := s.db.GetOriginalByBroadcastID(ctx, remoteMsgID)
	if err != nil {
		return nil, errors.NewStoreError("reverse lookup", err)
	}
	if msg == nil {
		return nil, nil
	}
	if err := s.cache.SetBroadcastIndex(ctx, remoteMsgID, msg.ID); err != nil {
		s.logger.WithError(err).WithField("messageId", remoteMsgID).Warn("Failed to repopulate broadcast index")
	}
	return msg, nil
}

func (s *MessageStore) UpdateReactions(ctx context.Context, msg *models.OriginalMessage) error {
	if err := s.db.UpdateReactions(ctx, msg.ID, msg.Reactions); err != nil {
		return errors.NewStoreError("update reactions", err)
	}
	if err := s.cache.SetOriginal(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("messageId", msg.ID).Warn("Failed to refresh cached message")
	}
	return nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, msg *models.OriginalMessage) error {
	if err := s.db.UpdateContent(ctx, msg.ID, msg.Content); err != nil {
		return errors.NewStoreError("update content", err)
	}
	if err := s.cache.SetOriginal(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("messageId", msg.ID).Warn("Failed to refresh cached message")
	}
	return nil
}

// Delete removes the original and its broadcasts from both layers.
func (s *MessageStore) Delete(ctx context.Context, originalID string) error {
	broadcasts, err := s.GetBroadcasts(ctx, originalID)
	if err != nil {
		s.logger.WithError(err).WithField("originalId", originalID).Warn("Could not list broadcasts for index cleanup")
	}

	if err := s.db.DeleteOriginal(ctx, originalID); err != nil {
		return errors.NewStoreError("delete original", err)
	}

	if err := s.cache.DeleteOriginal(ctx, originalID); err != nil {
		s.logger.WithError(err).WithField("originalId", originalID).Warn("Failed to drop cached message")
	}
	if err := s.cache.InvalidateBroadcasts(ctx, originalID); err != nil {
		s.logger.WithError(err).WithField("originalId", originalID).Warn("Failed to drop cached broadcast list")
	}
	if len(broadcasts) > 0 {
		ids := make([]string, len(broadcasts))
		for i, b := range broadcasts {
			ids[i] = b.MessageID
		}
		if err := s.cache.DeleteBroadcastIndex(ctx, ids...); err != nil {
			s.logger.WithError(err).WithField("originalId", originalID).Warn("Failed to drop broadcast index entries")
		}
	}
	return nil
}
