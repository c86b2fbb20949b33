package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"hubrelay/internal/tracing"
)

// MaintenanceStore is the subset of the database used by the periodic sweep.
type MaintenanceStore interface {
	ExpireInfractionsBefore(ctx context.Context, now time.Time) (int64, error)
	PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the periodic maintenance sweep: expiring lapsed
// infractions and purging tracked messages older than the retention
// window.
type Scheduler struct {
	store     MaintenanceStore
	retention time.Duration
	cron      *cron.Cron
	logger    *logrus.Logger
}

func NewScheduler(store MaintenanceStore, retention time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the sweep at the given cron spec and begins the
// scheduler. The sweep also runs once immediately so a restart does not
// postpone overdue cleanup by a full interval.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	go s.Sweep(context.Background())
	s.logger.WithField("spec", spec).Info("Maintenance scheduler started")
	return nil
}

// Stop halts the scheduler and waits for any running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler stopped")
}

// Sweep performs one maintenance pass. Failures are logged and do not
// abort the remaining steps; the next tick retries everything.
func (s *Scheduler) Sweep(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.sweep")
	defer span.End()

	now := time.Now()

	expired, err := s.store.ExpireInfractionsBefore(ctx, now)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithError(err).Error("Failed to expire infractions")
	} else if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired lapsed infractions")
	}

	cutoff := now.Add(-s.retention)
	purged, err := s.store.PurgeMessagesBefore(ctx, cutoff)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithError(err).Error("Failed to purge old messages")
	} else if purged > 0 {
		s.logger.WithFields(logrus.Fields{
			"count":  purged,
			"cutoff": cutoff.Format(time.RFC3339),
		}).Info("Purged messages past retention")
	}
}
