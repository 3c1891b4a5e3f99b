package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remi-caller/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestQueue(index DueIndex) (*TaskQueue, *recordingHandler, *fakeClock) {
	handler := &recordingHandler{}
	clock := newFakeClock(t0)
	q := NewTaskQueue(index, handler, newTestLogger(), WithClock(clock), WithPollBatchSize(2))
	return q, handler, clock
}

func TestMemoryDueIndex_PopDueOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryDueIndex()

	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "c", DueAt: t0.Add(3 * time.Minute)}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "a", DueAt: t0.Add(time.Minute)}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "b", DueAt: t0.Add(2 * time.Minute)}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "later", DueAt: t0.Add(time.Hour)}))

	next, ok, err := idx.NextDue(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), next)

	jobs, err := idx.PopDue(ctx, t0.Add(5*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "a", jobs[0].TaskID)
	assert.Equal(t, "b", jobs[1].TaskID)
	assert.Equal(t, "c", jobs[2].TaskID)

	n, _ := idx.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryDueIndex_PutReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryDueIndex()

	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "a", DueAt: t0}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "a", DueAt: t0.Add(time.Hour)}))

	n, _ := idx.Len(ctx)
	assert.Equal(t, 1, n)

	jobs, err := idx.PopDue(ctx, t0.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	job, err := idx.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, t0.Add(time.Hour), job.DueAt)
}

func TestTaskQueue_ScheduleAtRejectsInvalidTime(t *testing.T) {
	q, _, _ := newTestQueue(NewMemoryDueIndex())

	err := q.ScheduleAt(context.Background(), "a", time.Time{}, models.JobPayload{})
	assert.True(t, errors.Is(err, ErrInvalidScheduleTime))

	err = q.ScheduleAt(context.Background(), " ", t0, models.JobPayload{})
	assert.Error(t, err)

	n, _ := q.Len(context.Background())
	assert.Zero(t, n)
}

func TestTaskQueue_RescheduleKeepsOneJob(t *testing.T) {
	ctx := context.Background()
	q, handler, clock := newTestQueue(NewMemoryDueIndex())

	require.NoError(t, q.ScheduleAt(ctx, "a", t0.Add(time.Minute), models.JobPayload{PhoneNumber: "1"}))
	require.NoError(t, q.ScheduleAt(ctx, "a", t0.Add(time.Hour), models.JobPayload{PhoneNumber: "2"}))

	n, _ := q.Len(ctx)
	assert.Equal(t, 1, n)

	clock.Advance(2 * time.Minute)
	fired, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	clock.Advance(time.Hour)
	fired, err = q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Len(t, handler.Jobs(), 1)
	assert.Equal(t, "2", handler.Jobs()[0].Payload.PhoneNumber)
}

func TestTaskQueue_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q, handler, clock := newTestQueue(NewMemoryDueIndex())

	require.NoError(t, q.ScheduleAt(ctx, "a", t0.Add(time.Minute), models.JobPayload{}))
	require.NoError(t, q.Cancel(ctx, "a"))
	require.NoError(t, q.Cancel(ctx, "a"))
	require.NoError(t, q.Cancel(ctx, "unknown"))

	clock.Advance(time.Hour)
	fired, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, handler.Jobs())
}

func TestTaskQueue_PollFiresDueJobsOnce(t *testing.T) {
	ctx := context.Background()
	q, handler, clock := newTestQueue(NewMemoryDueIndex())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.ScheduleAt(ctx, id, t0.Add(-time.Minute), models.JobPayload{}))
	}
	require.NoError(t, q.ScheduleAt(ctx, "future", t0.Add(time.Hour), models.JobPayload{}))

	// the job is gone from the queue by the time the handler sees it
	handler.onJob = func(job models.ScheduledJob) {
		got, err := q.Get(ctx, job.TaskID)
		assert.NoError(t, err)
		assert.Nil(t, got)
	}

	fired, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, fired)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, handler.IDs())

	fired, err = q.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	clock.Advance(time.Hour)
	fired, err = q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Len(t, handler.Jobs(), 6)
}

func TestTaskQueue_StartWakesForEarlyJob(t *testing.T) {
	handler := &recordingHandler{}
	q := NewTaskQueue(NewMemoryDueIndex(), handler, newTestLogger(), WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.ScheduleAt(ctx, "soon", time.Now().Add(50*time.Millisecond), models.JobPayload{}))

	assert.Eventually(t, func() bool {
		return len(handler.Jobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
