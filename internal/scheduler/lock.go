package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Only delete the lock if we still own it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Only extend the lock if we still own it
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Locker hands out a Redis lock on one key. Processes sharing the key never
// hold it at the same time.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLocker creates a locker for key. The lock expires after ttl if its holder dies.
func NewLocker(client *redis.Client, key string, ttl time.Duration) *Locker {
	return &Locker{client: client, key: key, ttl: ttl}
}

// Key returns the Redis key of the lock
func (l *Locker) Key() string {
	return l.key
}

// TryAcquire takes the lock without waiting.
// Returns a nil lease (and nil error) when another holder has it.
func (l *Locker) TryAcquire(ctx context.Context) (*Lease, error) {
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return nil, nil
	}

	return &Lease{client: l.client, key: l.key, token: token, ttl: l.ttl}, nil
}

// Lease is a held lock
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// Release gives the lock up. Releasing a lock that expired and was taken by
// someone else leaves it alone.
func (l *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Extend resets the lock TTL. Fails if the lock is no longer ours.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return fmt.Errorf("lock %s no longer owned by this instance", l.key)
	}

	l.ttl = ttl
	return nil
}

// Token returns the lease's ownership token
func (l *Lease) Token() string {
	return l.token
}

// TTL returns the lease's time-to-live
func (l *Lease) TTL() time.Duration {
	return l.ttl
}
