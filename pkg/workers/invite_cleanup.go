// Package workers runs scheduled background maintenance jobs.
package workers

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// InviteSweeper removes expired invite tokens. Implemented by
// communities.Service.
type InviteSweeper interface {
	CleanupExpiredInvites() (int64, error)
}

// ExpiredCounter records how many invites a sweep removed. Implemented by
// prometheus counters.
type ExpiredCounter interface {
	Add(float64)
}

// InviteCleanupWorker sweeps expired invites on a cron schedule.
type InviteCleanupWorker struct {
	sweeper InviteSweeper
	counter ExpiredCounter
	logger  logrus.FieldLogger
	cron    *cron.Cron
}

// NewInviteCleanupWorker builds a worker that runs on the given cron
// schedule, e.g. "@hourly" or "*/10 * * * *".
func NewInviteCleanupWorker(sweeper InviteSweeper, counter ExpiredCounter, logger logrus.FieldLogger, schedule string) (*InviteCleanupWorker, error) {
	w := &InviteCleanupWorker{
		sweeper: sweeper,
		counter: counter,
		logger:  logger,
		cron:    cron.New(),
	}
	if _, err := w.cron.AddFunc(schedule, w.sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start begins the schedule in its own goroutine.
func (w *InviteCleanupWorker) Start() {
	w.cron.Start()
	w.logger.Info("invite cleanup worker started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *InviteCleanupWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("invite cleanup worker stopped")
}

func (w *InviteCleanupWorker) sweep() {
	removed, err := w.sweeper.CleanupExpiredInvites()
	if err != nil {
		w.logger.WithError(err).Error("invite sweep failed")
		return
	}
	if w.counter != nil {
		w.counter.Add(float64(removed))
	}
	if removed > 0 {
		w.logger.WithField("removed", removed).Info("expired invites removed")
	}
}
