package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"remi-caller/models"
)

func newTestLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingHandler struct {
	mu    sync.Mutex
	jobs  []models.ScheduledJob
	onJob func(job models.ScheduledJob)
}

func (h *recordingHandler) Dispatch(job models.ScheduledJob) {
	if h.onJob != nil {
		h.onJob(job)
	}
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
}

func (h *recordingHandler) Jobs() []models.ScheduledJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.ScheduledJob, len(h.jobs))
	copy(out, h.jobs)
	return out
}

func (h *recordingHandler) IDs() []string {
	var ids []string
	for _, j := range h.Jobs() {
		ids = append(ids, j.TaskID)
	}
	return ids
}

// fakePlacer answers every call with outcome. An empty outcome never reports anything.
type fakePlacer struct {
	mu       sync.Mutex
	requests []models.CallRequest
	seq      int

	outcome models.CallEventType
	err     error
	block   chan struct{}
	onPlace func(req models.CallRequest)

	active    int32
	maxActive int32
	hangups   int32
}

func newFakePlacer(outcome models.CallEventType) *fakePlacer {
	return &fakePlacer{outcome: outcome}
}

func (p *fakePlacer) PlaceCall(ctx context.Context, req models.CallRequest) (Call, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.seq++
	id := fmt.Sprintf("call-%d", p.seq)
	p.mu.Unlock()

	n := atomic.AddInt32(&p.active, 1)
	for {
		cur := atomic.LoadInt32(&p.maxActive)
		if n <= cur || atomic.CompareAndSwapInt32(&p.maxActive, cur, n) {
			break
		}
	}
	defer atomic.AddInt32(&p.active, -1)

	if p.onPlace != nil {
		p.onPlace(req)
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	call := newCallHandle(id, func(ctx context.Context) error {
		atomic.AddInt32(&p.hangups, 1)
		return nil
	})
	switch p.outcome {
	case models.CallStarted:
		call.emit(models.CallEvent{Type: models.CallStarted})
		call.emit(models.CallEvent{Type: models.CallEnded})
	case models.CallFailed:
		call.emit(models.CallEvent{Type: models.CallFailed, Err: errors.New("busy")})
		call.emit(models.CallEvent{Type: models.CallEnded})
	}
	return call, nil
}

func (p *fakePlacer) Requests() []models.CallRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.CallRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *fakePlacer) Active() int32    { return atomic.LoadInt32(&p.active) }
func (p *fakePlacer) MaxActive() int32 { return atomic.LoadInt32(&p.maxActive) }
func (p *fakePlacer) Hangups() int32   { return atomic.LoadInt32(&p.hangups) }

// failingStore makes selected operations fail
type failingStore struct {
	*MemoryReminderStore
	failPut    bool
	failUpdate bool
	failList   bool

	// beforeUpdate runs once, right before the next Update reaches the store
	beforeUpdate func(m *MemoryReminderStore)
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) Put(ctx context.Context, r *models.Reminder) error {
	if s.failPut {
		return errStoreDown
	}
	return s.MemoryReminderStore.Put(ctx, r)
}

func (s *failingStore) Update(ctx context.Context, id string, u models.ReminderUpdate) (*models.Reminder, error) {
	if s.failUpdate {
		return nil, errStoreDown
	}
	if hook := s.beforeUpdate; hook != nil {
		s.beforeUpdate = nil
		hook(s.MemoryReminderStore)
	}
	return s.MemoryReminderStore.Update(ctx, id, u)
}

func (s *failingStore) ListByStatus(ctx context.Context, status models.ReminderStatus, afterID string, limit int) ([]models.Reminder, error) {
	if s.failList {
		return nil, errStoreDown
	}
	return s.MemoryReminderStore.ListByStatus(ctx, status, afterID, limit)
}

func timePtr(t time.Time) *time.Time { return &t }

func pendingReminder(id string, at *time.Time) *models.Reminder {
	return &models.Reminder{
		ID:            id,
		PhoneNumber:   "+15550000" + id,
		ScheduledTime: at,
		Title:         "take pills " + id,
		Status:        models.StatusPending,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
