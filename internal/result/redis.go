package result

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements the Backend interface using Redis
type RedisBackend struct {
	client     *redis.Client
	keyPrefix  string
	successTTL time.Duration
	failureTTL time.Duration
}

// NewRedisBackend creates a new Redis-backed result backend.
// Failed passes are kept for failureTTL, everything else for successTTL.
func NewRedisBackend(client *redis.Client, prefix string, successTTL, failureTTL time.Duration) *RedisBackend {
	return &RedisBackend{
		client:     client,
		keyPrefix:  prefix,
		successTTL: successTTL,
		failureTTL: failureTTL,
	}
}

func (r *RedisBackend) resultKey(passID string) string {
	return fmt.Sprintf("%spass:%s", r.keyPrefix, passID)
}

func (r *RedisBackend) lastKey() string {
	return r.keyPrefix + "pass:last"
}

// NotifyChannel is the channel the ID of every stored pass is published on
func (r *RedisBackend) NotifyChannel() string {
	return r.keyPrefix + "pass:notify"
}

// StoreResult stores a pass result in Redis
func (r *RedisBackend) StoreResult(ctx context.Context, result *PassResult) error {
	key := r.resultKey(result.PassID)

	data := map[string]interface{}{
		"trigger":         result.Trigger,
		"status":          string(result.Status),
		"completed_at":    result.CompletedAt.Format(time.RFC3339Nano),
		"duration_ms":     result.Duration.Milliseconds(),
		"scheduled":       result.Scheduled,
		"cancelled":       result.Cancelled,
		"kept":            result.Kept,
		"refused":         result.Refused,
		"cancel_failed":   result.CancelFailed,
		"schedule_failed": result.ScheduleFailed,
		"store_failed":    strconv.FormatBool(result.StoreFailed),
	}
	if result.SkipReason != "" {
		data["skip_reason"] = result.SkipReason
	}
	if result.Error != "" {
		data["error"] = result.Error
	}

	ttl := r.successTTL
	if result.IsFailed() {
		ttl = r.failureTTL
	}

	// HSET + EXPIRE + latest pointer + PUBLISH in one round trip
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, r.lastKey(), result.PassID, 0)
	pipe.Publish(ctx, r.NotifyChannel(), result.PassID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store pass result: %w", err)
	}
	return nil
}

// GetResult retrieves a pass result from Redis
func (r *RedisBackend) GetResult(ctx context.Context, passID string) (*PassResult, error) {
	data, err := r.client.HGetAll(ctx, r.resultKey(passID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pass result: %w", err)
	}

	// If no data, result doesn't exist
	if len(data) == 0 {
		return nil, nil
	}

	result := &PassResult{
		PassID:     passID,
		Trigger:    data["trigger"],
		Status:     Status(data["status"]),
		SkipReason: data["skip_reason"],
		Error:      data["error"],
	}

	if completedAt, err := time.Parse(time.RFC3339Nano, data["completed_at"]); err == nil {
		result.CompletedAt = completedAt
	}
	if ms, err := strconv.ParseInt(data["duration_ms"], 10, 64); err == nil {
		result.Duration = time.Duration(ms) * time.Millisecond
	}

	counts := map[string]*int{
		"scheduled":       &result.Scheduled,
		"cancelled":       &result.Cancelled,
		"kept":            &result.Kept,
		"refused":         &result.Refused,
		"cancel_failed":   &result.CancelFailed,
		"schedule_failed": &result.ScheduleFailed,
	}
	for field, dst := range counts {
		if n, err := strconv.Atoi(data[field]); err == nil {
			*dst = n
		}
	}
	result.StoreFailed, _ = strconv.ParseBool(data["store_failed"])

	return result, nil
}

// LastResult returns the latest stored pass result
func (r *RedisBackend) LastResult(ctx context.Context) (*PassResult, error) {
	passID, err := r.client.Get(ctx, r.lastKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last pass: %w", err)
	}
	return r.GetResult(ctx, passID)
}

// WaitForNext blocks until a pass that completed after since is stored.
// Uses Redis pub/sub for efficient waiting.
func (r *RedisBackend) WaitForNext(ctx context.Context, since time.Time, timeout time.Duration) (*PassResult, error) {
	latest := func() (*PassResult, error) {
		result, err := r.LastResult(ctx)
		if err != nil || result == nil || !result.CompletedAt.After(since) {
			return nil, err
		}
		return result, nil
	}

	// First check if result already exists
	if result, err := latest(); err != nil || result != nil {
		return result, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pubsub := r.client.Subscribe(waitCtx, r.NotifyChannel())
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-waitCtx.Done():
			// Do one final check in case notification was missed
			return latest()

		case msg, ok := <-messages:
			if !ok {
				return latest()
			}
			result, err := r.GetResult(ctx, msg.Payload)
			if err != nil {
				return nil, err
			}
			if result != nil && result.CompletedAt.After(since) {
				return result, nil
			}
		}
	}
}

// DeleteResult removes a pass result from Redis
func (r *RedisBackend) DeleteResult(ctx context.Context, passID string) error {
	if err := r.client.Del(ctx, r.resultKey(passID)).Err(); err != nil {
		return fmt.Errorf("failed to delete pass result: %w", err)
	}
	return nil
}

var _ Backend = (*RedisBackend)(nil)
