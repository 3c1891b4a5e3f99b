package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

// DueIndex is the fast storage holding scheduled jobs ordered by due time.
// Implementations must make Put a replace for an existing task ID.
type DueIndex interface {
	Put(ctx context.Context, job models.ScheduledJob) error
	Remove(ctx context.Context, taskID string) error
	// PopDue removes and returns up to limit jobs with DueAt <= now
	PopDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error)
	Get(ctx context.Context, taskID string) (*models.ScheduledJob, error)
	// NextDue returns the earliest due time, ok is false when the index is empty
	NextDue(ctx context.Context) (next time.Time, ok bool, err error)
	Len(ctx context.Context) (int, error)
}

// JobHandler receives jobs that became due. Dispatch must not block.
type JobHandler interface {
	Dispatch(job models.ScheduledJob)
}

// TaskQueue fires every scheduled job once at or after its due time.
// ScheduleAt, Cancel and Poll share one mutation lock so that a reschedule is never
// observed half done by the poll loop.
type TaskQueue struct {
	mu sync.Mutex

	index   DueIndex
	handler JobHandler
	clock   Clock
	logger  logrus.FieldLogger

	interval  time.Duration
	batchSize int

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type TaskQueueOption func(q *TaskQueue)

func WithPollInterval(d time.Duration) TaskQueueOption {
	return func(q *TaskQueue) {
		if d > 0 {
			q.interval = d
		}
	}
}

func WithPollBatchSize(n int) TaskQueueOption {
	return func(q *TaskQueue) {
		if n > 0 {
			q.batchSize = n
		}
	}
}

func WithClock(c Clock) TaskQueueOption {
	return func(q *TaskQueue) {
		q.clock = c
	}
}

func NewTaskQueue(index DueIndex, handler JobHandler, logger logrus.FieldLogger, opts ...TaskQueueOption) *TaskQueue {
	q := &TaskQueue{
		index:     index,
		handler:   handler,
		clock:     SystemClock(),
		logger:    logger.WithField("component", "task_queue"),
		interval:  30 * time.Second,
		batchSize: 100,
		wakeCh:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// ScheduleAt inserts the job for taskID or atomically replaces the existing one
func (q *TaskQueue) ScheduleAt(ctx context.Context, taskID string, dueAt time.Time, payload models.JobPayload) error {
	if strings.TrimSpace(taskID) == "" {
		return errors.New("task id is required")
	}
	if dueAt.IsZero() {
		return errors.Wrap(ErrInvalidScheduleTime, "due time is required")
	}

	job := models.ScheduledJob{TaskID: taskID, DueAt: dueAt.UTC(), Payload: payload}

	q.mu.Lock()
	err := q.index.Put(ctx, job)
	q.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "schedule task %s", taskID)
	}

	q.logger.WithFields(logrus.Fields{"task_id": taskID, "due_at": job.DueAt}).Debug("task scheduled")
	q.wake()
	return nil
}

// Cancel removes any pending job for taskID. Cancelling an unknown task is a no-op.
// A job already handed to the dispatcher is not aborted.
func (q *TaskQueue) Cancel(ctx context.Context, taskID string) error {
	q.mu.Lock()
	err := q.index.Remove(ctx, taskID)
	q.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "cancel task %s", taskID)
	}
	return nil
}

// Get returns the pending job for taskID, or nil
func (q *TaskQueue) Get(ctx context.Context, taskID string) (*models.ScheduledJob, error) {
	return q.index.Get(ctx, taskID)
}

func (q *TaskQueue) Len(ctx context.Context) (int, error) {
	return q.index.Len(ctx)
}

// Poll removes every job due at the current clock time and hands it to the handler.
// Jobs leave the index before the handler sees them.
func (q *TaskQueue) Poll(ctx context.Context) (int, error) {
	now := q.clock.Now()
	fired := 0
	for {
		q.mu.Lock()
		jobs, err := q.index.PopDue(ctx, now, q.batchSize)
		q.mu.Unlock()
		if err != nil {
			return fired, errors.Wrap(err, "pop due tasks")
		}

		for _, job := range jobs {
			q.logger.WithFields(logrus.Fields{
				"task_id": job.TaskID,
				"due_at":  job.DueAt,
				"late_by": now.Sub(job.DueAt).String(),
			}).Info("task due")
			q.handler.Dispatch(job)
		}
		fired += len(jobs)

		if len(jobs) < q.batchSize {
			return fired, nil
		}
	}
}

// Start runs the poll loop in the background. It polls once immediately, then whenever
// the earliest job becomes due, and at least every poll interval.
func (q *TaskQueue) Start(ctx context.Context) {
	q.stopCh = make(chan struct{})
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				wait := q.interval
				if _, err := q.Poll(ctx); err != nil {
					q.logger.WithError(err).Error("poll failed")
				} else {
					wait = q.nextWait(ctx)
				}
				timer.Reset(wait)
			case <-q.wakeCh:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(q.nextWait(ctx))
			case <-q.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	q.logger.WithField("interval", q.interval.String()).Info("task queue started")
}

func (q *TaskQueue) Stop() {
	if q.stopCh == nil {
		return
	}
	close(q.stopCh)
	q.wg.Wait()
	q.stopCh = nil
}

func (q *TaskQueue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

func (q *TaskQueue) nextWait(ctx context.Context) time.Duration {
	wait := q.interval
	next, ok, err := q.index.NextDue(ctx)
	if err != nil || !ok {
		return wait
	}
	if d := next.Sub(q.clock.Now()); d < wait {
		wait = d
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}
