package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/serialization"
	"github.com/redis/go-redis/v9"
)

// RedisDriver keeps alarms in Redis: a sorted set of ids scored by trigger time
// in unix milliseconds, and one serialized record per id.
type RedisDriver struct {
	client     *redis.Client
	serializer *serialization.Serializer
	now        func() time.Time
	log        logger.Logger

	keyPrefix    string
	scheduledKey string
}

// record is what is stored under each alarm key
type record struct {
	ID        string `json:"id"`
	EventName string `json:"eventName,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Trigger   string `json:"trigger"`
}

// NewRedisDriver creates a driver storing its keys under prefix (e.g. "adhan:")
func NewRedisDriver(client *redis.Client, prefix string, format serialization.PayloadFormat) *RedisDriver {
	return &RedisDriver{
		client:       client,
		serializer:   serialization.NewSerializer(format),
		now:          time.Now,
		log:          logger.Default().WithComponent(logger.ComponentDriver),
		keyPrefix:    prefix,
		scheduledKey: prefix + "alarms:scheduled",
	}
}

// SetClock replaces the driver's notion of now (for tests)
func (d *RedisDriver) SetClock(now func() time.Time) {
	d.now = now
}

func (d *RedisDriver) alarmKey(id string) string {
	var b strings.Builder
	b.Grow(len(d.keyPrefix) + 6 + len(id)) // "alarm:" = 6 chars
	b.WriteString(d.keyPrefix)
	b.WriteString("alarm:")
	b.WriteString(id)
	return b.String()
}

// Available implements Availability by pinging Redis
func (d *RedisDriver) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.client.Ping(ctx).Err() == nil
}

// ScheduleAt implements Driver
func (d *RedisDriver) ScheduleAt(ctx context.Context, at time.Time, payload Payload) (string, error) {
	if !at.After(d.now()) {
		return "", apperrors.E("driver.schedule_at", apperrors.KindRefused, ErrPastDue)
	}

	id := uuid.New().String()
	data, err := d.serializer.Marshal(record{
		ID:        id,
		EventName: payload.EventName,
		Kind:      payload.Kind,
		Trigger:   at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", apperrors.E("driver.schedule_at", apperrors.KindCorrupt, err)
	}

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, d.alarmKey(id), data, 0)
	pipe.ZAdd(ctx, d.scheduledKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", apperrors.E("driver.schedule_at", apperrors.KindTransient, err)
	}

	d.log.DebugContext(ctx, "Alarm scheduled",
		"alarm_id", id,
		"event", payload.EventName,
		"trigger_at", at.Format(time.RFC3339))
	return id, nil
}

// Cancel implements Driver
func (d *RedisDriver) Cancel(ctx context.Context, id string) error {
	pipe := d.client.TxPipeline()
	pipe.ZRem(ctx, d.scheduledKey, id)
	pipe.Del(ctx, d.alarmKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.E("driver.cancel", apperrors.KindTransient, err)
	}
	return nil
}

// ListScheduled implements Driver. Alarms whose record is missing or unreadable
// are still listed, with an empty payload.
func (d *RedisDriver) ListScheduled(ctx context.Context) ([]ScheduledItem, error) {
	members, err := d.client.ZRangeWithScores(ctx, d.scheduledKey, 0, -1).Result()
	if err != nil {
		return nil, apperrors.E("driver.list", apperrors.KindTransient, err)
	}
	if len(members) == 0 {
		return []ScheduledItem{}, nil
	}

	ids := make([]string, len(members))
	keys := make([]string, len(members))
	for i, m := range members {
		ids[i] = fmt.Sprint(m.Member)
		keys[i] = d.alarmKey(ids[i])
	}

	blobs, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.E("driver.list", apperrors.KindTransient, err)
	}

	items := make([]ScheduledItem, len(members))
	for i, m := range members {
		items[i] = ScheduledItem{
			ID:        ids[i],
			TriggerAt: time.UnixMilli(int64(m.Score)).UTC(),
			Payload:   d.decodePayload(ctx, ids[i], blobs[i]),
		}
	}
	return items, nil
}

// PopDue claims every alarm whose trigger time is at or before now and removes
// it. Each alarm is claimed by exactly one caller across processes.
func (d *RedisDriver) PopDue(ctx context.Context, now time.Time) ([]ScheduledItem, error) {
	due, err := d.client.ZRangeByScoreWithScores(ctx, d.scheduledKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, apperrors.E("driver.pop_due", apperrors.KindTransient, err)
	}

	items := make([]ScheduledItem, 0, len(due))
	for _, m := range due {
		id := fmt.Sprint(m.Member)

		claimed, err := d.client.ZRem(ctx, d.scheduledKey, id).Result()
		if err != nil {
			d.log.WarnContext(ctx, "Failed to claim due alarm", "alarm_id", id, "error", err)
			continue
		}
		if claimed == 0 {
			// Another dispatcher got it first
			continue
		}

		blob, err := d.client.GetDel(ctx, d.alarmKey(id)).Result()
		var raw interface{}
		if err == nil {
			raw = blob
		} else if err != redis.Nil {
			d.log.WarnContext(ctx, "Failed to read due alarm record", "alarm_id", id, "error", err)
		}

		items = append(items, ScheduledItem{
			ID:        id,
			TriggerAt: time.UnixMilli(int64(m.Score)).UTC(),
			Payload:   d.decodePayload(ctx, id, raw),
		})
	}
	return items, nil
}

// Count returns the number of scheduled alarms
func (d *RedisDriver) Count(ctx context.Context) (int64, error) {
	n, err := d.client.ZCard(ctx, d.scheduledKey).Result()
	if err != nil {
		return 0, apperrors.E("driver.count", apperrors.KindTransient, err)
	}
	return n, nil
}

func (d *RedisDriver) decodePayload(ctx context.Context, id string, raw interface{}) Payload {
	blob, ok := raw.(string)
	if !ok || blob == "" {
		d.log.DebugContext(ctx, "Scheduled alarm has no record", "alarm_id", id)
		return Payload{}
	}

	var rec record
	if err := d.serializer.Unmarshal([]byte(blob), &rec); err != nil {
		d.log.WarnContext(ctx, "Scheduled alarm record is unreadable", "alarm_id", id, "error", err)
		return Payload{}
	}
	return Payload{EventName: rec.EventName, Kind: rec.Kind}
}
