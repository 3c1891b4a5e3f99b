package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"remi-caller/models"
)

const DefaultQueueKey = "reminder_tasks"

// popDueScript removes due members from the sorted set together with their payloads
// and returns them as a flat id, payload list.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', '0', ARGV[2])
local out = {}
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[1], id)
	local payload = redis.call('HGET', KEYS[2], id)
	redis.call('HDEL', KEYS[2], id)
	table.insert(out, id)
	table.insert(out, payload or '')
end
return out
`)

// RedisDueIndex stores scheduled jobs in a sorted set scored by due time (unix millis)
// and their payloads in a hash. It survives process restarts but is still rebuildable
// from the reminder store.
type RedisDueIndex struct {
	client     *redis.Client
	dueKey     string
	payloadKey string
}

func NewRedisClient(host string, port int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
}

func NewRedisDueIndex(client *redis.Client, key string) *RedisDueIndex {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisDueIndex{
		client:     client,
		dueKey:     key + ":due",
		payloadKey: key + ":payload",
	}
}

func (r *RedisDueIndex) Put(ctx context.Context, job models.ScheduledJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return capture(ctx, "Redis.ZAdd", func(ctx context.Context) error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, r.dueKey, redis.Z{Score: float64(job.DueAt.UnixMilli()), Member: job.TaskID})
			pipe.HSet(ctx, r.payloadKey, job.TaskID, string(data))
			return nil
		})
		return err
	}, map[string]interface{}{"redis.operation": "ZADD", "redis.task_id": job.TaskID})
}

func (r *RedisDueIndex) Remove(ctx context.Context, taskID string) error {
	return capture(ctx, "Redis.ZRem", func(ctx context.Context) error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, r.dueKey, taskID)
			pipe.HDel(ctx, r.payloadKey, taskID)
			return nil
		})
		return err
	}, map[string]interface{}{"redis.operation": "ZREM", "redis.task_id": taskID})
}

func (r *RedisDueIndex) PopDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error) {
	if limit <= 0 {
		limit = 100
	}

	var raw []interface{}
	err := capture(ctx, "Redis.PopDue", func(ctx context.Context) error {
		res, err := popDueScript.Run(ctx, r.client,
			[]string{r.dueKey, r.payloadKey},
			strconv.FormatInt(now.UnixMilli(), 10), limit).Slice()
		if err == redis.Nil {
			return nil
		}
		raw = res
		return err
	}, map[string]interface{}{"redis.operation": "EVALSHA"})
	if err != nil {
		return nil, err
	}

	jobs := make([]models.ScheduledJob, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		id, _ := raw[i].(string)
		payload, _ := raw[i+1].(string)
		job, err := decodeJob(id, payload)
		if err != nil {
			// the member is already removed; a zero DueAt makes the dispatcher resolve it from the store
			job = models.ScheduledJob{TaskID: id}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *RedisDueIndex) Get(ctx context.Context, taskID string) (*models.ScheduledJob, error) {
	var payload string
	err := capture(ctx, "Redis.HGet", func(ctx context.Context) error {
		var err error
		payload, err = r.client.HGet(ctx, r.payloadKey, taskID).Result()
		return err
	}, map[string]interface{}{"redis.operation": "HGET", "redis.task_id": taskID})
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job, err := decodeJob(taskID, payload)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *RedisDueIndex) NextDue(ctx context.Context) (time.Time, bool, error) {
	var zs []redis.Z
	err := capture(ctx, "Redis.ZRange", func(ctx context.Context) error {
		var err error
		zs, err = r.client.ZRangeWithScores(ctx, r.dueKey, 0, 0).Result()
		return err
	}, map[string]interface{}{"redis.operation": "ZRANGE"})
	if err != nil {
		return time.Time{}, false, err
	}
	if len(zs) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(zs[0].Score)).UTC(), true, nil
}

func (r *RedisDueIndex) Len(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.dueKey).Result()
	return int(n), err
}

// Ping checks Redis connection
func (r *RedisDueIndex) Ping(ctx context.Context) error {
	return capture(ctx, "Redis.Ping", func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	}, map[string]interface{}{"redis.operation": "PING"})
}

func decodeJob(taskID, payload string) (models.ScheduledJob, error) {
	var job models.ScheduledJob
	if payload == "" {
		return job, errors.Errorf("missing payload for task %s", taskID)
	}
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return job, errors.Wrapf(err, "decode payload for task %s", taskID)
	}
	job.TaskID = taskID
	return job, nil
}
