package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

// Scheduler is the part of the task queue used to re-arm reminders
type Scheduler interface {
	ScheduleAt(ctx context.Context, taskID string, dueAt time.Time, payload models.JobPayload) error
	Cancel(ctx context.Context, taskID string) error
	Get(ctx context.Context, taskID string) (*models.ScheduledJob, error)
}

const defaultRecoveryPageSize = 200

// RecoveryBootstrapper rebuilds the task queue from the reminder store on startup.
// Pending reminders whose time already passed are scheduled too and fire on the next poll.
type RecoveryBootstrapper struct {
	store    ReminderStore
	queue    Scheduler
	logger   logrus.FieldLogger
	pageSize int
}

func NewRecoveryBootstrapper(store ReminderStore, queue Scheduler, logger logrus.FieldLogger, pageSize int) *RecoveryBootstrapper {
	if pageSize <= 0 {
		pageSize = defaultRecoveryPageSize
	}
	return &RecoveryBootstrapper{
		store:    store,
		queue:    queue,
		logger:   logger.WithField("component", "recovery"),
		pageSize: pageSize,
	}
}

// Run schedules every pending reminder and returns how many were scheduled.
// Running it twice leaves the queue unchanged.
func (b *RecoveryBootstrapper) Run(ctx context.Context) (int, error) {
	scheduled, skipped := 0, 0
	afterID := ""
	for {
		page, err := b.store.ListByStatus(ctx, models.StatusPending, afterID, b.pageSize)
		if err != nil {
			return scheduled, persistenceErr("list pending", err)
		}

		for i := range page {
			r := &page[i]
			if r.ScheduledTime == nil {
				skipped++
				continue
			}
			if err := b.queue.ScheduleAt(ctx, r.ID, *r.ScheduledTime, r.Payload()); err != nil {
				return scheduled, errors.Wrapf(err, "recover reminder %s", r.ID)
			}
			scheduled++
		}

		if len(page) < b.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	b.logger.WithFields(logrus.Fields{"scheduled": scheduled, "skipped": skipped}).Info("recovered pending reminders")
	return scheduled, nil
}
