package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"remi-caller/models"
)

// ReminderStore is the durable record store. It is the single source of truth for reminders.
type ReminderStore interface {
	// Get returns nil, nil when the reminder does not exist
	Get(ctx context.Context, id string) (*models.Reminder, error)
	Put(ctx context.Context, r *models.Reminder) error
	// Update applies the partial update and returns the stored result.
	// It returns ErrReminderNotFound when id is unknown and ErrStaleUpdate when the
	// update guard does not hold.
	Update(ctx context.Context, id string, u models.ReminderUpdate) (*models.Reminder, error)
	Delete(ctx context.Context, id string) (bool, error)
	// ListByStatus pages through reminders with the given status ordered by id, starting after afterID
	ListByStatus(ctx context.Context, status models.ReminderStatus, afterID string, limit int) ([]models.Reminder, error)
	List(ctx context.Context) ([]models.Reminder, error)
}

// TokenStore keeps push notification tokens per user
type TokenStore interface {
	SaveToken(ctx context.Context, userID, token string) error
	// GetToken returns nil, nil when the user has no token
	GetToken(ctx context.Context, userID string) (*models.UserToken, error)
}

// MemoryReminderStore keeps reminders in process memory
type MemoryReminderStore struct {
	mu        sync.RWMutex
	reminders map[string]models.Reminder
	tokens    map[string]models.UserToken
}

func NewMemoryReminderStore() *MemoryReminderStore {
	return &MemoryReminderStore{
		reminders: make(map[string]models.Reminder),
		tokens:    make(map[string]models.UserToken),
	}
}

func (s *MemoryReminderStore) Get(ctx context.Context, id string) (*models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *MemoryReminderStore) Put(ctx context.Context, r *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = *r
	return nil
}

func (s *MemoryReminderStore) Update(ctx context.Context, id string, u models.ReminderUpdate) (*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	if !u.Matches(&r) {
		return nil, ErrStaleUpdate
	}
	u.Apply(&r)
	s.reminders[r.ID] = r
	return &r, nil
}

func (s *MemoryReminderStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return false, nil
	}
	delete(s.reminders, id)
	return true, nil
}

func (s *MemoryReminderStore) ListByStatus(ctx context.Context, status models.ReminderStatus, afterID string, limit int) ([]models.Reminder, error) {
	s.mu.RLock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.Status == status && r.ID > afterID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryReminderStore) List(ctx context.Context) ([]models.Reminder, error) {
	s.mu.RLock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryReminderStore) SaveToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = models.UserToken{UserID: userID, Token: token, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryReminderStore) GetToken(ctx context.Context, userID string) (*models.UserToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}
