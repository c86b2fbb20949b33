package service

import (
	"context"
	"time"

	"hubrelay/internal/errors"
	"hubrelay/internal/models"

	"github.com/sirupsen/logrus"
)

// ConnectionStore is the durable side of the registry.
type ConnectionStore interface {
	GetConnection(ctx context.Context, channelID string) (*models.Connection, error)
	GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error)
	SaveConnection(ctx context.Context, conn *models.Connection) error
	SetConnected(ctx context.Context, channelID string, connected bool) error
	TouchConnection(ctx context.Context, channelID string, at time.Time) error
	DeleteConnection(ctx context.Context, channelID string) error
}

// ConnectionCache is the rebuildable front layer of the registry.
type ConnectionCache interface {
	GetConnection(ctx context.Context, channelID string) (*models.Connection, error)
	SetConnection(ctx context.Context, conn *models.Connection) error
	DeleteConnection(ctx context.Context, channelID string) error
	GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error)
	SetHubConnections(ctx context.Context, hubID string, conns []models.Connection) error
	InvalidateHubConnections(ctx context.Context, hubID string) error
}

// Registry resolves connections cache-first with store fallback. Writes go
// through the store first and then refresh the cache synchronously, so a
// stale-read window never outlives one round trip. A store failure is
// surfaced as retryable: "cannot relay right now", never "not connected".
type Registry struct {
	store  ConnectionStore
	cache  ConnectionCache
	logger *logrus.Logger
}

func NewRegistry(store ConnectionStore, cache ConnectionCache, logger *logrus.Logger) *Registry {
	return &Registry{store: store, cache: cache, logger: logger}
}

// GetConnection returns the connection for a channel, or nil when the
// channel is not part of any hub.
func (r *Registry) GetConnection(ctx context.Context, channelID string) (*models.Connection, error) {
	conn, err := r.cache.GetConnection(ctx, channelID)
	if err != nil {
		// Cache reads degrade to the store; the cache is a performance layer.
		r.logger.WithError(err).WithField("channelId", channelID).Warn("Connection cache read failed")
	} else if conn != nil {
		return conn, nil
	}

	conn, err = r.store.GetConnection(ctx, channelID)
	if err != nil {
		return nil, errors.NewStoreError("get connection", err)
	}
	if conn == nil {
		return nil, nil
	}

	if err := r.cache.SetConnection(ctx, conn); err != nil {
		r.logger.WithError(err).WithField("channelId", channelID).Warn("Failed to populate connection cache")
	}
	return conn, nil
}

// GetHubConnections returns every connection belonging to a hub.
func (r *Registry) GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error) {
	conns, err := r.cache.GetHubConnections(ctx, hubID)
	if err != nil {
		r.logger.WithError(err).WithField("hubId", hubID).Warn("Hub connections cache read failed")
	} else if conns != nil {
		return conns, nil
	}

	conns, err = r.store.GetHubConnections(ctx, hubID)
	if err != nil {
		return nil, errors.NewStoreError("get hub connections", err)
	}

	if err := r.cache.SetHubConnections(ctx, hubID, conns); err != nil {
		r.logger.WithError(err).WithField("hubId", hubID).Warn("Failed to populate hub connections cache")
	}
	return conns, nil
}

// SetConnected toggles a connection's connected flag, store first.
func (r *Registry) SetConnected(ctx context.Context, channelID string, connected bool) error {
	if err := r.store.SetConnected(ctx, channelID, connected); err != nil {
		return errors.NewStoreError("set connected", err)
	}
	r.refresh(ctx, channelID)
	return nil
}

// UpdateConnection upserts a connection, store first.
func (r *Registry) UpdateConnection(ctx context.Context, conn *models.Connection) error {
	if err := r.store.SaveConnection(ctx, conn); err != nil {
		return errors.NewStoreError("save connection", err)
	}
	if err := r.cache.SetConnection(ctx, conn); err != nil {
		r.logger.WithError(err).WithField("channelId", conn.ChannelID).Warn("Failed to refresh connection cache")
	}
	if err := r.cache.InvalidateHubConnections(ctx, conn.HubID); err != nil {
		r.logger.WithError(err).WithField("hubId", conn.HubID).Warn("Failed to invalidate hub connections cache")
	}
	return nil
}

// RemoveConnection deletes a connection entirely (leave action or bot
// removal from the server).
func (r *Registry) RemoveConnection(ctx context.Context, channelID string) error {
	conn, err := r.GetConnection(ctx, channelID)
	if err != nil {
		return err
	}
	if conn == nil {
		return nil
	}
	if err := r.store.DeleteConnection(ctx, channelID); err != nil {
		return errors.NewStoreError("delete connection", err)
	}
	if err := r.cache.DeleteConnection(ctx, channelID); err != nil {
		r.logger.WithError(err).WithField("channelId", channelID).Warn("Failed to drop cached connection")
	}
	if err := r.cache.InvalidateHubConnections(ctx, conn.HubID); err != nil {
		r.logger.WithError(err).WithField("hubId", conn.HubID).Warn("Failed to invalidate hub connections cache")
	}
	return nil
}

// Touch records relay activity on a connection, best-effort.
func (r *Registry) Touch(ctx context.Context, channelID string, at time.Time) {
	if err := r.store.TouchConnection(ctx, channelID, at); err != nil {
		r.logger.WithError(err).WithField("channelId", channelID).Warn("Failed to touch connection")
	}
}

// refresh re-reads a connection from the store and rewrites the cache entry
// so reads observe the write after at most one round trip.
func (r *Registry) refresh(ctx context.Context, channelID string) {
	conn, err := r.store.GetConnection(ctx, channelID)
	if err != nil || conn == nil {
		if cacheErr := r.cache.DeleteConnection(ctx, channelID); cacheErr != nil {
			r.logger.WithError(cacheErr).WithField("channelId", channelID).Warn("Failed to drop cached connection")
		}
		return
	}
	if err := r.cache.SetConnection(ctx, conn); err != nil {
		r.logger.WithError(err).WithField("channelId", channelID).Warn("Failed to refresh connection cache")
	}
	if err := r.cache.InvalidateHubConnections(ctx, conn.HubID); err != nil {
		r.logger.WithError(err).WithField("hubId", conn.HubID).Warn("Failed to invalidate hub connections cache")
	}
}
