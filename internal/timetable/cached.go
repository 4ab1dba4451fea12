package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/storage"
)

// CachedProvider layers the in-memory DayCache and a persisted per-day entry
// in front of another Provider. Cache write failures are logged, not returned.
type CachedProvider struct {
	source    Provider
	days      *DayCache
	kv        storage.KV
	keyPrefix string
	method    int
	log       logger.Logger
}

// NewCachedProvider wraps source. method is only used to key cache entries and
// must match the method source computes with.
func NewCachedProvider(source Provider, days *DayCache, kv storage.KV, prefix string, method int) *CachedProvider {
	if days == nil {
		days = NewDayCache(0)
	}
	return &CachedProvider{
		source:    source,
		days:      days,
		kv:        kv,
		keyPrefix: prefix,
		method:    method,
		log:       logger.Default().WithComponent(logger.ComponentTimetable),
	}
}

// Days returns the in-memory cache
func (p *CachedProvider) Days() *DayCache {
	return p.days
}

func (p *CachedProvider) storageKey(date string, loc prayer.Location) string {
	return fmt.Sprintf("%stimes:%s:%s:%d", p.keyPrefix, date, loc.String(), p.method)
}

// GetEvents implements Provider
func (p *CachedProvider) GetEvents(ctx context.Context, date time.Time, loc prayer.Location) (*prayer.DayEvents, error) {
	dateKey := date.Format(DateLayout)

	if day, ok := p.days.Get(dateKey, loc, p.method); ok {
		return day, nil
	}

	key := p.storageKey(dateKey, loc)
	if p.kv != nil {
		if day, ok := p.loadStored(ctx, key); ok {
			p.days.Set(loc, p.method, day)
			return day, nil
		}
	}

	day, err := p.source.GetEvents(ctx, date, loc)
	if err != nil {
		return nil, err
	}

	p.days.Set(loc, p.method, day)
	if p.kv != nil {
		if data, err := json.Marshal(day); err == nil {
			if err := p.kv.Set(ctx, key, string(data)); err != nil {
				p.log.WarnContext(ctx, "Failed to persist day cache entry", "date", dateKey, "error", err)
			}
		}
	}
	return day, nil
}

func (p *CachedProvider) loadStored(ctx context.Context, key string) (*prayer.DayEvents, bool) {
	raw, found, err := p.kv.Get(ctx, key)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to read day cache entry", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var day prayer.DayEvents
	if err := json.Unmarshal([]byte(raw), &day); err != nil {
		p.log.WarnContext(ctx, "Discarding unreadable day cache entry", "key", key, "error", err)
		return nil, false
	}
	return &day, true
}
