// Package client lets other processes read and change alarm preferences, ask
// the daemon for a reconciliation pass and inspect the scheduled alarms.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/muaviaUsmani/adhan/internal/driver"
	"github.com/muaviaUsmani/adhan/internal/preferences"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/result"
	"github.com/muaviaUsmani/adhan/internal/scheduler"
	"github.com/muaviaUsmani/adhan/internal/serialization"
	"github.com/muaviaUsmani/adhan/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Client talks to a running alarm daemon through the Redis it uses
type Client struct {
	redis   *redis.Client
	prefs   *preferences.Store
	alarms  *driver.RedisDriver
	results *result.RedisBackend
	channel string
	ctx     context.Context
}

// NewClient connects to Redis. prefix must match the daemon's KEY_PREFIX.
func NewClient(redisURL, prefix string) (*Client, error) {
	rdb, err := storage.Connect(context.Background(), redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewClientWithRedis(rdb, prefix), nil
}

// NewClientWithRedis builds a client on an existing connection
func NewClientWithRedis(rdb *redis.Client, prefix string) *Client {
	return &Client{
		redis:   rdb,
		prefs:   preferences.NewStore(storage.NewRedisKV(rdb), prefix),
		alarms:  driver.NewRedisDriver(rdb, prefix, serialization.FormatJSON),
		results: result.NewRedisBackend(rdb, prefix, 0, 0), // read-only
		channel: scheduler.TriggerChannel(prefix),
		ctx:     context.Background(),
	}
}

// Preferences returns the stored preferences
func (c *Client) Preferences() (prayer.Preferences, error) {
	prefs, err := c.prefs.Load(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

// SetPreference turns alarms for one event on or off and asks the daemon to
// reconcile. The preference is saved even if no daemon is listening.
func (c *Client) SetPreference(event string, enabled bool) (prayer.Preferences, error) {
	name, err := prayer.ParseEventName(event)
	if err != nil {
		return nil, err
	}

	prefs, err := c.prefs.Set(c.ctx, name, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to save preference: %w", err)
	}

	if err := c.RequestPass(scheduler.TriggerPreferences); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// RequestPass asks every listening daemon to run a pass for trigger
func (c *Client) RequestPass(trigger scheduler.Trigger) error {
	if err := scheduler.Publish(c.ctx, c.redis, c.channel, trigger); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}
	return nil
}

// RequestPassAndWait requests a pass and waits up to timeout for the daemon to
// finish one. Returns a nil result if none finished in time.
func (c *Client) RequestPassAndWait(trigger scheduler.Trigger, timeout time.Duration) (*result.PassResult, error) {
	since := time.Now()
	if err := c.RequestPass(trigger); err != nil {
		return nil, err
	}

	res, err := c.results.WaitForNext(c.ctx, since, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for pass: %w", err)
	}
	return res, nil
}

// LastPass returns the outcome of the daemon's latest pass, or nil if none is recorded
func (c *Client) LastPass() (*result.PassResult, error) {
	res, err := c.results.LastResult(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last pass: %w", err)
	}
	return res, nil
}

// Alarms lists the alarms currently scheduled, earliest first
func (c *Client) Alarms() ([]driver.ScheduledItem, error) {
	items, err := c.alarms.ListScheduled(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	return items, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
