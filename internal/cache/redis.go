package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hubrelay/internal/constants"
	"hubrelay/internal/models"

	"github.com/redis/go-redis/v9"
)

// Client is the Redis front layer for connection lookups, the message
// index and delete locks. Every mutation is a single atomic key operation;
// the durable store remains the source of truth and the cache can be
// flushed at any time without correctness loss.
type Client struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping reports cache reachability for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func connectionKey(channelID string) string { return "conn:" + channelID }
func hubConnectionsKey(hubID string) string { return "hub:conns:" + hubID }
func originalKey(id string) string { return "msg:" + id }
func broadcastsKey(originalID string) string { return "msg:bcasts:" + originalID }
func broadcastIndexKey(remoteID string) string { return "msg:idx:" + remoteID }
func deleteLockKey(originalID string) string { return "msg:dlock:" + originalID }

// Connections

func (c *Client) SetConnection(ctx context.Context, conn *models.Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, connectionKey(conn.ChannelID), data, constants.ConnectionCacheTTL).Err()
}

// GetConnection returns (nil, nil) on a cache miss.
func (c *Client) GetConnection(ctx context.Context, channelID string) (*models.Connection, error) {
	data, err := c.client.Get(ctx, connectionKey(channelID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conn models.Connection
	if err := json.Unmarshal([]byte(data), &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (c *Client) DeleteConnection(ctx context.Context, channelID string) error {
	return c.client.Del(ctx, connectionKey(channelID)).Err()
}

func (c *Client) SetHubConnections(ctx context.Context, hubID string, conns []models.Connection) error {
	data, err := json.Marshal(conns)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, hubConnectionsKey(hubID), data, constants.HubCacheTTL).Err()
}

func (c *Client) GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error) {
	data, err := c.client.Get(ctx, hubConnectionsKey(hubID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conns []models.Connection
	if err := json.Unmarshal([]byte(data), &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (c *Client) InvalidateHubConnections(ctx context.Context, hubID string) error {
	return c.client.Del(ctx, hubConnectionsKey(hubID)).Err()
}

// Message index

func (c *Client) SetOriginal(ctx context.Context, msg *models.OriginalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, originalKey(msg.ID), data, constants.MessageCacheTTL).Err()
}

func (c *Client) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	data, err := c.client.Get(ctx, originalKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg models.OriginalMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteOriginal(ctx context.Context, id string) error {
	return c.client.Del(ctx, originalKey(id), broadcastsKey(id)).Err()
}

func (c *Client) SetBroadcasts(ctx context.Context, originalID string, broadcasts []models.Broadcast) error {
	data, err := json.Marshal(broadcasts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, broadcastsKey(originalID), data, constants.MessageCacheTTL).Err()
}

func (c *Client) GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error) {
	data, err := c.client.Get(ctx, broadcastsKey(originalID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var broadcasts []models.Broadcast
	if err := json.Unmarshal([]byte(data), &broadcasts); err != nil {
		return nil, err
	}
	return broadcasts, nil
}

func (c *Client) InvalidateBroadcasts(ctx context.Context, originalID string) error {
	return c.client.Del(ctx, broadcastsKey(originalID)).Err()
}

// SetBroadcastIndex records the reverse mapping from a relayed copy's remote
// message id back to its original.
func (c *Client) SetBroadcastIndex(ctx context.Context, remoteMsgID, originalID string) error {
	return c.client.Set(ctx, broadcastIndexKey(remoteMsgID), originalID, constants.MessageCacheTTL).Err()
}

// GetBroadcastIndex returns "" on a cache miss.
func (c *Client) GetBroadcastIndex(ctx context.Context, remoteMsgID string) (string, error) {
	originalID, err := c.client.Get(ctx, broadcastIndexKey(remoteMsgID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return originalID, nil
}

func (c *Client) DeleteBroadcastIndex(ctx context.Context, remoteMsgIDs ...string) error {
	if len(remoteMsgIDs) == 0 {
		return nil
	}
	keys := make([]string, len(remoteMsgIDs))
	for i, id := range remoteMsgIDs {
		keys[i] = broadcastIndexKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Delete locks

// AcquireDeleteLock takes the short-lived delete-in-progress lock for an
// original message. The TTL bounds how long a crashed process can wedge a
// message in Deleting.
func (c *Client) AcquireDeleteLock(ctx context.Context, originalID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = constants.DeleteLockTTL
	}
	return c.client.SetNX(ctx, deleteLockKey(originalID), 1, ttl).Result()
}

func (c *Client) ReleaseDeleteLock(ctx context.Context, originalID string) error {
	return c.client.Del(ctx, deleteLockKey(originalID)).Err()
}

func (c *Client) IsDeleteLocked(ctx context.Context, originalID string) (bool, error) {
	n, err := c.client.Exists(ctx, deleteLockKey(originalID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
