package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"remi-caller/models"
)

// Notifier is told about every recorded dispatch outcome
type Notifier interface {
	Notify(ctx context.Context, r *models.Reminder) error
}

type DispatcherConfig struct {
	MaxConcurrent    int
	PlacementTimeout time.Duration
	// CallsPerSecond limits call placement, zero disables the limit
	CallsPerSecond  float64
	CallerNumber    string
	MaxCallDuration time.Duration
	Tracing         bool
}

func (c *DispatcherConfig) setDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.PlacementTimeout <= 0 {
		c.PlacementTimeout = 45 * time.Second
	}
	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = 10 * time.Minute
	}
}

const storeTimeout = 10 * time.Second

// Dispatcher places the call for every due job and records the outcome on the reminder.
// At most MaxConcurrent placements run at once, the rest wait their turn.
type Dispatcher struct {
	store    ReminderStore
	placer   CallPlacer
	notifier Notifier
	clock    Clock
	logger   logrus.FieldLogger
	cfg      DispatcherConfig

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	calls    sync.WaitGroup
	inFlight int64
	waiting  int64
}

func NewDispatcher(store ReminderStore, placer CallPlacer, logger logrus.FieldLogger, cfg DispatcherConfig) *Dispatcher {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:  store,
		placer: placer,
		clock:  SystemClock(),
		logger: logger.WithField("component", "dispatcher"),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
	}
	if cfg.CallsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1)
	}
	return d
}

// SetNotifier installs the outcome notifier. Must be called before the first Dispatch.
func (d *Dispatcher) SetNotifier(n Notifier) { d.notifier = n }

// SetClock replaces the clock used for lastRun
func (d *Dispatcher) SetClock(c Clock) { d.clock = c }

// Dispatch queues the job for placement and returns immediately
func (d *Dispatcher) Dispatch(job models.ScheduledJob) {
	d.wg.Add(1)
	atomic.AddInt64(&d.waiting, 1)
	go func() {
		defer d.wg.Done()

		log := d.logger.WithField("task_id", job.TaskID)
		err := d.sem.Acquire(d.ctx, 1)
		atomic.AddInt64(&d.waiting, -1)
		if err != nil {
			log.Warn("dispatcher stopped before the job could run, it will be recovered on next start")
			return
		}
		defer d.sem.Release(1)
		if d.ctx.Err() != nil {
			log.Warn("dispatcher stopped before the job could run, it will be recovered on next start")
			return
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(d.ctx); err != nil {
				log.Warn("dispatcher stopped before the job could run, it will be recovered on next start")
				return
			}
		}

		atomic.AddInt64(&d.inFlight, 1)
		defer atomic.AddInt64(&d.inFlight, -1)
		d.dispatchOne(job)
	}()
}

// InFlight is the number of placements currently running
func (d *Dispatcher) InFlight() int { return int(atomic.LoadInt64(&d.inFlight)) }

// Waiting is the number of due jobs waiting for a free slot
func (d *Dispatcher) Waiting() int { return int(atomic.LoadInt64(&d.waiting)) }

// Wait blocks until every dispatched job has been recorded
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Shutdown stops starting new placements and waits for running ones and their call teardown.
// Jobs still waiting for a slot are abandoned, their reminders stay pending.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "dispatcher shutdown")
	}
}

// PlaceNow places a one-off call outside the queue. No reminder is touched.
func (d *Dispatcher) PlaceNow(ctx context.Context, req models.CallRequest) (string, error) {
	if req.From == "" {
		req.From = d.cfg.CallerNumber
	}
	if req.Message == "" && req.AudioURL == "" {
		req.Message = callMessage(models.JobPayload{})
	}

	pctx, cancel := context.WithTimeout(ctx, d.cfg.PlacementTimeout)
	defer cancel()
	call, err := d.placer.PlaceCall(pctx, req)
	if err != nil {
		return "", placementFailure(err)
	}
	log := d.logger.WithFields(logrus.Fields{"call_id": call.ID(), "to": req.To})
	err = awaitStart(pctx, call)
	d.teardown(call, err != nil, log)
	if err != nil {
		return call.ID(), placementFailure(err)
	}
	log.Info("call started")
	return call.ID(), nil
}

func (d *Dispatcher) dispatchOne(job models.ScheduledJob) {
	ctx := context.Background()
	if d.cfg.Tracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, "dispatch")
		seg.AddAnnotation("task_id", job.TaskID)
		defer seg.Close(nil)
	}

	log := d.logger.WithFields(logrus.Fields{"task_id": job.TaskID, "due_at": job.DueAt})

	reminder, dueAt, ok := d.resolve(ctx, job, log)
	if !ok {
		return
	}

	payload := job.Payload
	if payload.PhoneNumber == "" {
		payload = reminder.Payload()
	}
	req := models.CallRequest{
		From:     d.cfg.CallerNumber,
		To:       payload.PhoneNumber,
		AudioURL: payload.AudioURL,
		Message:  callMessage(payload),
	}

	pctx, cancel := context.WithTimeout(ctx, d.cfg.PlacementTimeout)
	call, err := d.placer.PlaceCall(pctx, req)
	if err == nil {
		err = awaitStart(pctx, call)
	}
	cancel()

	status := models.StatusCompleted
	result := ""
	if err != nil {
		status = models.StatusFailed
		result = placementFailure(err).Error()
		log.WithError(err).Warn("call placement failed")
	} else {
		result = "call " + call.ID() + " started"
		log.WithField("call_id", call.ID()).Info("call started")
	}
	if call != nil {
		d.teardown(call, err != nil, log)
	}

	updated, err := d.record(ctx, job.TaskID, dueAt, status, result)
	switch {
	case errors.Is(err, ErrStaleUpdate), errors.Is(err, ErrReminderNotFound):
		log.WithField("status", status).Info("reminder changed during dispatch, outcome not recorded")
		return
	case err != nil:
		log.WithError(err).Error("failed to record dispatch outcome")
		return
	}

	if d.notifier != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			nctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := d.notifier.Notify(nctx, updated); err != nil {
				log.WithError(err).Warn("notification failed")
			}
		}()
	}
}

// resolve checks the job against the stored reminder. Jobs whose reminder was deleted,
// already ran or moved to another time are dropped.
func (d *Dispatcher) resolve(ctx context.Context, job models.ScheduledJob, log logrus.FieldLogger) (*models.Reminder, time.Time, bool) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	reminder, err := d.store.Get(sctx, job.TaskID)
	if err != nil {
		log.WithError(err).Error("failed to load reminder, job dropped")
		return nil, time.Time{}, false
	}
	if reminder == nil {
		log.Debug("reminder deleted, job dropped")
		return nil, time.Time{}, false
	}
	if reminder.Status != models.StatusPending {
		log.WithField("status", reminder.Status).Debug("reminder not pending, job dropped")
		return nil, time.Time{}, false
	}
	if reminder.ScheduledTime == nil {
		log.Debug("reminder has no schedule, job dropped")
		return nil, time.Time{}, false
	}

	dueAt := job.DueAt
	if dueAt.IsZero() {
		// job payload was unreadable, trust the record
		dueAt = *reminder.ScheduledTime
		if dueAt.After(d.clock.Now()) {
			log.Debug("reminder not due yet, job dropped")
			return nil, time.Time{}, false
		}
	} else if !models.SameInstant(reminder.ScheduledTime, &dueAt) {
		log.WithField("scheduled_time", reminder.ScheduledTime).Debug("reminder rescheduled, job dropped")
		return nil, time.Time{}, false
	}
	return reminder, dueAt, true
}

func (d *Dispatcher) record(ctx context.Context, id string, dueAt time.Time, status models.ReminderStatus, result string) (*models.Reminder, error) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	now := d.clock.Now()
	return d.store.Update(sctx, id, models.ReminderUpdate{
		IfScheduledTime: &dueAt,
		Status:          &status,
		LastRun:         &now,
		Result:          &result,
	})
}

// teardown hangs the call up once the provider reports it ended, or after MaxCallDuration.
// A call that never started is hung up right away.
func (d *Dispatcher) teardown(call Call, abandon bool, log logrus.FieldLogger) {
	d.calls.Add(1)
	go func() {
		defer d.calls.Done()
		timer := time.NewTimer(d.cfg.MaxCallDuration)
		defer timer.Stop()

	loop:
		for !abandon {
			select {
			case ev, ok := <-call.Events():
				if !ok || ev.Type == models.CallEnded {
					break loop
				}
			case <-timer.C:
				log.WithField("call_id", call.ID()).Warn("call exceeded max duration")
				break loop
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := call.Hangup(ctx); err != nil {
			log.WithError(err).WithField("call_id", call.ID()).Debug("hangup failed")
		}
	}()
}

// awaitStart waits for the first started or failed event of the call
func awaitStart(ctx context.Context, call Call) error {
	for {
		select {
		case ev, ok := <-call.Events():
			if !ok {
				return &PlacementError{Kind: PlacementProvider, Err: errors.New("call ended before it started")}
			}
			switch ev.Type {
			case models.CallStarted:
				return nil
			case models.CallFailed:
				if ev.Err != nil {
					return &PlacementError{Kind: PlacementProvider, Err: ev.Err}
				}
				return &PlacementError{Kind: PlacementProvider, Err: errors.New("call failed")}
			case models.CallEnded:
				return &PlacementError{Kind: PlacementProvider, Err: errors.New("call ended before it started")}
			}
		case <-ctx.Done():
			return &PlacementError{Kind: PlacementTimeout, Err: ctx.Err()}
		}
	}
}

func placementFailure(err error) error {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PlacementError{Kind: PlacementTimeout, Err: err}
	}
	return &PlacementError{Kind: PlacementProvider, Err: err}
}

func callMessage(p models.JobPayload) string {
	switch {
	case p.Title != "" && p.Description != "":
		return fmt.Sprintf("Reminder: %s. %s", p.Title, p.Description)
	case p.Title != "":
		return "Reminder: " + p.Title
	case p.Description != "":
		return "Reminder: " + p.Description
	}
	return "This is your scheduled reminder."
}
