package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remi-caller/models"
)

func newTestRedisIndex(t *testing.T) (*RedisDueIndex, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDueIndex(client, "test_tasks"), mr
}

func TestRedisDueIndex_PutGetReplace(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestRedisIndex(t)

	job := models.ScheduledJob{TaskID: "a", DueAt: t0, Payload: models.JobPayload{PhoneNumber: "+1555", Title: "water"}}
	require.NoError(t, idx.Put(ctx, job))

	got, err := idx.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.DueAt.Equal(t0))
	assert.Equal(t, job.Payload, got.Payload)

	job.DueAt = t0.Add(time.Hour)
	require.NoError(t, idx.Put(ctx, job))

	n, err := idx.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	next, ok, err := idx.NextDue(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, next.Equal(t0.Add(time.Hour)))

	missing, err := idx.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisDueIndex_PopDueRemoves(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestRedisIndex(t)

	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "b", DueAt: t0.Add(2 * time.Minute)}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "a", DueAt: t0.Add(time.Minute)}))
	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "c", DueAt: t0.Add(time.Hour)}))

	jobs, err := idx.PopDue(ctx, t0.Add(5*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].TaskID)

	jobs, err = idx.PopDue(ctx, t0.Add(5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].TaskID)

	jobs, err = idx.PopDue(ctx, t0.Add(5*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	gone, err := idx.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, gone)

	n, _ := idx.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestRedisDueIndex_RemoveAndCorruptPayload(t *testing.T) {
	ctx := context.Background()
	idx, mr := newTestRedisIndex(t)

	require.NoError(t, idx.Put(ctx, models.ScheduledJob{TaskID: "a", DueAt: t0}))
	require.NoError(t, idx.Remove(ctx, "a"))
	require.NoError(t, idx.Remove(ctx, "a"))
	n, _ := idx.Len(ctx)
	assert.Zero(t, n)

	_, err := mr.ZAdd("test_tasks:due", float64(t0.UnixMilli()), "broken")
	require.NoError(t, err)
	mr.HSet("test_tasks:payload", "broken", "{not json")

	jobs, err := idx.PopDue(ctx, t0, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "broken", jobs[0].TaskID)
	assert.True(t, jobs[0].DueAt.IsZero())
}

func TestTaskQueue_WithRedisIndex(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestRedisIndex(t)
	q, handler, clock := newTestQueue(idx)

	require.NoError(t, q.ScheduleAt(ctx, "a", t0.Add(time.Minute), models.JobPayload{PhoneNumber: "1"}))
	require.NoError(t, q.ScheduleAt(ctx, "a", t0.Add(3*time.Minute), models.JobPayload{PhoneNumber: "2"}))
	require.NoError(t, q.ScheduleAt(ctx, "b", t0.Add(2*time.Minute), models.JobPayload{}))
	require.NoError(t, q.Cancel(ctx, "b"))

	clock.Advance(2 * time.Minute)
	fired, err := q.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	clock.Advance(2 * time.Minute)
	fired, err = q.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, "2", handler.Jobs()[0].Payload.PhoneNumber)
}
