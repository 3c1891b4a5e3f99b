package services

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"remi-caller/models"
)

type dueEntry struct {
	job   models.ScheduledJob
	index int
}

// dueHeap orders entries by due time, then task ID
type dueHeap []*dueEntry

func (h dueHeap) Len() int { return len(h) }

func (h dueHeap) Less(i, j int) bool {
	if h[i].job.DueAt.Equal(h[j].job.DueAt) {
		return h[i].job.TaskID < h[j].job.TaskID
	}
	return h[i].job.DueAt.Before(h[j].job.DueAt)
}

func (h dueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *dueHeap) Push(x interface{}) {
	e := x.(*dueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *dueHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// MemoryDueIndex keeps scheduled jobs in a heap. Its content is lost on restart and
// rebuilt by the recovery bootstrapper.
type MemoryDueIndex struct {
	mu      sync.Mutex
	heap    dueHeap
	entries map[string]*dueEntry
}

func NewMemoryDueIndex() *MemoryDueIndex {
	return &MemoryDueIndex{entries: make(map[string]*dueEntry)}
}

func (m *MemoryDueIndex) Put(ctx context.Context, job models.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[job.TaskID]; ok {
		heap.Remove(&m.heap, old.index)
	}
	e := &dueEntry{job: job}
	heap.Push(&m.heap, e)
	m.entries[job.TaskID] = e
	return nil
}

func (m *MemoryDueIndex) Remove(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[taskID]; ok {
		heap.Remove(&m.heap, e.index)
		delete(m.entries, taskID)
	}
	return nil
}

func (m *MemoryDueIndex) PopDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []models.ScheduledJob
	for len(m.heap) > 0 && (limit <= 0 || len(jobs) < limit) {
		if m.heap[0].job.DueAt.After(now) {
			break
		}
		e := heap.Pop(&m.heap).(*dueEntry)
		delete(m.entries, e.job.TaskID)
		jobs = append(jobs, e.job)
	}
	return jobs, nil
}

func (m *MemoryDueIndex) Get(ctx context.Context, taskID string) (*models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[taskID]
	if !ok {
		return nil, nil
	}
	job := e.job
	return &job, nil
}

func (m *MemoryDueIndex) NextDue(ctx context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.heap) == 0 {
		return time.Time{}, false, nil
	}
	return m.heap[0].job.DueAt, true, nil
}

func (m *MemoryDueIndex) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.heap), nil
}
