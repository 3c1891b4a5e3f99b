package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

// Reconciler periodically puts back jobs for future pending reminders that are missing
// from the queue, e.g. after the due index was flushed. Past reminders are left to the
// startup recovery.
type Reconciler struct {
	store    ReminderStore
	queue    Scheduler
	clock    Clock
	logger   logrus.FieldLogger
	pageSize int

	cron *cron.Cron
}

func NewReconciler(store ReminderStore, queue Scheduler, logger logrus.FieldLogger, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = defaultRecoveryPageSize
	}
	return &Reconciler{
		store:    store,
		queue:    queue,
		clock:    SystemClock(),
		logger:   logger.WithField("component", "reconciler"),
		pageSize: pageSize,
	}
}

// Reconcile runs one pass and returns the number of restored jobs
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	now := r.clock.Now()
	restored := 0
	afterID := ""
	for {
		page, err := r.store.ListByStatus(ctx, models.StatusPending, afterID, r.pageSize)
		if err != nil {
			return restored, persistenceErr("list pending", err)
		}
		for i := range page {
			rem := &page[i]
			if !rem.IsDueAfter(now) {
				continue
			}
			job, err := r.queue.Get(ctx, rem.ID)
			if err != nil {
				return restored, err
			}
			if job != nil {
				continue
			}
			if err := r.queue.ScheduleAt(ctx, rem.ID, *rem.ScheduledTime, rem.Payload()); err != nil {
				return restored, err
			}
			r.logger.WithField("task_id", rem.ID).Warn("restored missing job")
			restored++
		}
		if len(page) < r.pageSize {
			return restored, nil
		}
		afterID = page[len(page)-1].ID
	}
}

// Start runs Reconcile on the cron spec, e.g. "@every 15m"
func (r *Reconciler) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := r.Reconcile(ctx)
		if err != nil {
			r.logger.WithError(err).Error("reconcile failed")
			return
		}
		r.logger.WithField("restored", n).Debug("reconcile done")
	})
	if err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.logger.WithField("schedule", spec).Info("reconciler started")
	return nil
}

// Stop waits for a running pass to finish
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
