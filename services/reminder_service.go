package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

// ReminderService applies the reminder lifecycle: every mutation is persisted first and
// only then mirrored into the task queue.
type ReminderService struct {
	store  ReminderStore
	queue  Scheduler
	clock  Clock
	logger logrus.FieldLogger
	locks  *idLocks
}

func NewReminderService(store ReminderStore, queue Scheduler, logger logrus.FieldLogger) *ReminderService {
	return &ReminderService{
		store:  store,
		queue:  queue,
		clock:  SystemClock(),
		logger: logger.WithField("component", "reminders"),
		locks:  newIDLocks(),
	}
}

// SetClock replaces the clock deciding whether a time is in the future
func (s *ReminderService) SetClock(c Clock) { s.clock = c }

var scheduleLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseScheduleTime parses an ISO-8601 timestamp. Values without a zone are read as UTC.
// The result is UTC, truncated to milliseconds.
func ParseScheduleTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidScheduleTime, "cannot parse %q", value)
}

func (s *ReminderService) Create(ctx context.Context, req *models.CreateReminderRequest) (*models.Reminder, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return nil, errors.Wrap(ErrInvalidReminder, "phoneNumber is required")
	}

	reminder := &models.Reminder{
		ID:                strings.TrimSpace(req.ID),
		UserID:            req.UserID,
		PhoneNumber:       phone,
		Title:             req.Title,
		Description:       req.Description,
		GeneratedAudioURL: req.GeneratedAudioURL,
		Status:            models.StatusPending,
		CreatedAt:         s.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if req.ScheduledTime != nil && strings.TrimSpace(*req.ScheduledTime) != "" {
		t, err := ParseScheduleTime(*req.ScheduledTime)
		if err != nil {
			return nil, err
		}
		reminder.ScheduledTime = &t
	}
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}

	unlock := s.locks.lock(reminder.ID)
	defer unlock()

	existing, err := s.store.Get(ctx, reminder.ID)
	if err != nil {
		return nil, persistenceErr("get", err)
	}
	if existing != nil {
		return nil, errors.Wrapf(ErrReminderExists, "reminder %s", reminder.ID)
	}
	if err := s.store.Put(ctx, reminder); err != nil {
		return nil, persistenceErr("put", err)
	}

	if err := s.sync(ctx, reminder); err != nil {
		return reminder, err
	}
	s.logger.WithFields(logrus.Fields{"id": reminder.ID, "scheduled_time": reminder.ScheduledTime}).Info("reminder created")
	return reminder, nil
}

// Update merges req into the stored reminder. A reminder moved to a future time becomes
// pending again and gets a fresh job; otherwise its job is cancelled.
func (s *ReminderService) Update(ctx context.Context, id string, req *models.UpdateReminderRequest) (*models.Reminder, error) {
	var u models.ReminderUpdate
	if req.PhoneNumber != nil {
		phone := strings.TrimSpace(*req.PhoneNumber)
		if phone == "" {
			return nil, errors.Wrap(ErrInvalidReminder, "phoneNumber cannot be empty")
		}
		u.PhoneNumber = &phone
	}
	if req.ScheduledTime != nil {
		if strings.TrimSpace(*req.ScheduledTime) == "" {
			u.ClearScheduledTime = true
		} else {
			t, err := ParseScheduleTime(*req.ScheduledTime)
			if err != nil {
				return nil, err
			}
			u.ScheduledTime = &t
		}
	}
	u.Title = req.Title
	u.Description = req.Description
	u.GeneratedAudioURL = req.GeneratedAudioURL

	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, persistenceErr("get", err)
	}
	if current == nil {
		return nil, errors.Wrapf(ErrReminderNotFound, "reminder %s", id)
	}

	merged := *current
	u.Apply(&merged)
	if merged.IsDueAfter(s.clock.Now()) {
		pending := models.StatusPending
		u.Status = &pending
	}

	updated, err := s.store.Update(ctx, id, u)
	if errors.Is(err, ErrReminderNotFound) {
		return nil, errors.Wrapf(ErrReminderNotFound, "reminder %s", id)
	}
	if err != nil {
		return nil, persistenceErr("update", err)
	}

	if err := s.sync(ctx, updated); err != nil {
		return updated, err
	}
	s.logger.WithFields(logrus.Fields{"id": id, "status": updated.Status, "scheduled_time": updated.ScheduledTime}).Info("reminder updated")
	return updated, nil
}

// Delete removes the reminder and its pending job
func (s *ReminderService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return persistenceErr("delete", err)
	}
	if !ok {
		return errors.Wrapf(ErrReminderNotFound, "reminder %s", id)
	}
	if err := s.queue.Cancel(ctx, id); err != nil {
		return errors.Wrap(err, "cancel job")
	}
	s.logger.WithField("id", id).Info("reminder deleted")
	return nil
}

func (s *ReminderService) Get(ctx context.Context, id string) (*models.Reminder, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, persistenceErr("get", err)
	}
	if r == nil {
		return nil, errors.Wrapf(ErrReminderNotFound, "reminder %s", id)
	}
	return r, nil
}

func (s *ReminderService) List(ctx context.Context) ([]models.Reminder, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, persistenceErr("list", err)
	}
	if list == nil {
		list = []models.Reminder{}
	}
	return list, nil
}

// sync makes the queue hold exactly one job for a pending future reminder and none otherwise
func (s *ReminderService) sync(ctx context.Context, r *models.Reminder) error {
	if r.Status == models.StatusPending && r.IsDueAfter(s.clock.Now()) {
		return errors.Wrap(s.queue.ScheduleAt(ctx, r.ID, *r.ScheduledTime, r.Payload()), "schedule job")
	}
	return errors.Wrap(s.queue.Cancel(ctx, r.ID), "cancel job")
}

// idLocks serialises operations on the same reminder id
type idLocks struct {
	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{locks: make(map[string]*idLock)}
}

func (l *idLocks) lock(id string) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &idLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
