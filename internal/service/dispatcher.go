package service

import (
	"context"
	"sync"

	"hubrelay/internal/models"
	"hubrelay/internal/tracing"
	"hubrelay/pkg/transport"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// PayloadBuilder builds the payload for one target connection. Payloads are
// per-connection because compact and filter flags differ between targets.
type PayloadBuilder func(conn *models.Connection) (*transport.Payload, error)

// BroadcastResult is the per-target outcome of one fan-out operation.
type BroadcastResult struct {
	ChannelID    string
	MessageID    string
	EndpointGone bool
	Err          error
}

// Delivered counts successful targets in a result set.
func Delivered(results []BroadcastResult) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// BroadcastRecorder persists one delivered copy.
type BroadcastRecorder interface {
	RecordBroadcast(ctx context.Context, b *models.Broadcast) error
}

// Dispatcher fans a message out to every other connection in a hub. All
// sends for one batch are issued concurrently and their outcomes collected
// once all have settled; one target's failure never cancels or delays the
// siblings.
type Dispatcher struct {
	registry *Registry
	client   transport.Client
	recorder BroadcastRecorder
	notifier transport.Notifier
	logger   *logrus.Logger
}

func NewDispatcher(registry *Registry, client transport.Client, recorder BroadcastRecorder, notifier transport.Notifier, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		client:   client,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// Broadcast resolves the hub's sibling connections and delivers one payload
// per target. The connection list is snapshotted once; connect/disconnect
// changes land on the next broadcast. An error return means the whole
// operation aborted before any send (registry failure); per-target failures
// live in the results.
func (d *Dispatcher) Broadcast(ctx context.Context, source *models.Connection, originalID string, build PayloadBuilder) ([]BroadcastResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatcher.broadcast",
		attribute.String("hub_id", source.HubID),
		attribute.String("original_id", originalID),
	)
	defer span.End()

	conns, err := d.registry.GetHubConnections(ctx, source.HubID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	targets := make([]models.Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.ChannelID == source.ChannelID || !conn.Connected {
			continue
		}
		targets = append(targets, conn)
	}
	span.SetAttributes(attribute.Int("targets", len(targets)))

	results := make([]BroadcastResult, len(targets))
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int, conn models.Connection) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, &conn, originalID, build)
		}(i, targets[i])
	}
	wg.Wait()

	return results, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, conn *models.Connection, originalID string, build PayloadBuilder) BroadcastResult {
	result := BroadcastResult{ChannelID: conn.ChannelID}

	payload, err := build(conn)
	if err != nil {
		d.logger.WithError(err).WithField("channelId", conn.ChannelID).Error("Failed to build payload")
		result.Err = err
		return result
	}

	remoteID, err := d.client.Send(ctx, conn.WebhookURL, conn.ThreadID(), payload)
	if err != nil {
		result.Err = err
		if transport.IsEndpointGone(err) {
			result.EndpointGone = true
			d.handleEndpointGone(ctx, conn)
		} else {
			// Transient failure: log and skip this target only.
			d.logger.WithError(err).WithFields(logrus.Fields{
				"channelId":  conn.ChannelID,
				"originalId": originalID,
			}).Warn("Webhook send failed, skipping target")
		}
		return result
	}

	result.MessageID = remoteID

	broadcast := &models.Broadcast{
		OriginalID: originalID,
		ChannelID:  conn.ChannelID,
		MessageID:  remoteID,
	}
	if conn.ParentID != nil {
		threadID := conn.ThreadID()
		broadcast.ThreadID = &threadID
	}
	if err := d.recorder.RecordBroadcast(ctx, broadcast); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"channelId":  conn.ChannelID,
			"originalId": originalID,
		}).Error("Delivered copy could not be recorded")
		result.Err = err
	}
	return result
}

// handleEndpointGone marks the connection disconnected and posts a one-time
// notice. The notice is naturally one-time: a disconnected connection is
// dropped from every later broadcast snapshot.
func (d *Dispatcher) handleEndpointGone(ctx context.Context, conn *models.Connection) {
	d.logger.WithField("channelId", conn.ChannelID).Info("Webhook endpoint gone, disconnecting channel")

	if err := d.registry.SetConnected(ctx, conn.ChannelID, false); err != nil {
		d.logger.WithError(err).WithField("channelId", conn.ChannelID).Error("Failed to mark connection disconnected")
	}
	// For thread connections the notice goes to the parent channel; the
	// thread itself may be archived or gone along with the webhook.
	if err := d.notifier.ChannelNotice(ctx, conn.TargetChannelID(),
		"This channel's relay webhook is missing, so the hub connection was paused. Reconnect to resume."); err != nil {
		d.logger.WithError(err).WithField("channelId", conn.ChannelID).Debug("Disconnect notice undeliverable")
	}
}

// EditBroadcasts applies a per-connection edit to previously delivered
// copies. Failures are independent; the loop never aborts.
func (d *Dispatcher) EditBroadcasts(ctx context.Context, broadcasts []models.Broadcast, build PayloadBuilder) []BroadcastResult {
	results := make([]BroadcastResult, len(broadcasts))
	var wg sync.WaitGroup
	for i := range broadcasts {
		wg.Add(1)
		go func(i int, b models.Broadcast) {
			defer wg.Done()
			results[i] = d.editOne(ctx, &b, build)
		}(i, broadcasts[i])
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) editOne(ctx context.Context, b *models.Broadcast, build PayloadBuilder) BroadcastResult {
	result := BroadcastResult{ChannelID: b.ChannelID, MessageID: b.MessageID}

	conn, err := d.registry.GetConnection(ctx, b.ChannelID)
	if err != nil {
		result.Err = err
		return result
	}
	if conn == nil {
		d.logger.WithField("channelId", b.ChannelID).Debug("Skipping edit for removed connection")
		return result
	}

	payload, err := build(conn)
	if err != nil {
		result.Err = err
		return result
	}

	if err := d.client.Edit(ctx, conn.WebhookURL, threadIDOf(b), b.MessageID, payload); err != nil {
		result.Err = err
		if transport.IsEndpointGone(err) {
			result.EndpointGone = true
			d.handleEndpointGone(ctx, conn)
		} else {
			d.logger.WithError(err).WithField("channelId", b.ChannelID).Warn("Webhook edit failed")
		}
	}
	return result
}

// DeleteBroadcasts removes delivered copies, with the same partial-failure
// tolerance as Broadcast.
func (d *Dispatcher) DeleteBroadcasts(ctx context.Context, broadcasts []models.Broadcast) []BroadcastResult {
	results := make([]BroadcastResult, len(broadcasts))
	var wg sync.WaitGroup
	for i := range broadcasts {
		wg.Add(1)
		go func(i int, b models.Broadcast) {
			defer wg.Done()
			results[i] = d.deleteOne(ctx, &b)
		}(i, broadcasts[i])
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) deleteOne(ctx context.Context, b *models.Broadcast) BroadcastResult {
	result := BroadcastResult{ChannelID: b.ChannelID, MessageID: b.MessageID}

	conn, err := d.registry.GetConnection(ctx, b.ChannelID)
	if err != nil {
		result.Err = err
		return result
	}
	if conn == nil {
		return result
	}

	if err := d.client.Delete(ctx, conn.WebhookURL, threadIDOf(b), b.MessageID); err != nil {
		result.Err = err
		if transport.IsEndpointGone(err) {
			result.EndpointGone = true
			d.handleEndpointGone(ctx, conn)
		} else {
			d.logger.WithError(err).WithField("channelId", b.ChannelID).Warn("Webhook delete failed")
		}
	}
	return result
}

func threadIDOf(b *models.Broadcast) string {
	if b.ThreadID == nil {
		return ""
	}
	return *b.ThreadID
}
