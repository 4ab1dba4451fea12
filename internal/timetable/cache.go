package timetable

import (
	"sort"
	"sync"

	"github.com/muaviaUsmani/adhan/internal/prayer"
)

// DayCache holds recently used days in memory for one location and method.
// A lookup or store for a different location or method invalidates it.
type DayCache struct {
	mu      sync.Mutex
	loc     prayer.Location
	method  int
	days    map[string]*prayer.DayEvents
	maxDays int
}

// NewDayCache creates a cache keeping at most maxDays days (3 if maxDays <= 0)
func NewDayCache(maxDays int) *DayCache {
	if maxDays <= 0 {
		maxDays = 3
	}
	return &DayCache{
		days:    make(map[string]*prayer.DayEvents),
		maxDays: maxDays,
	}
}

// Get returns the cached day for date (YYYY-MM-DD)
func (c *DayCache) Get(date string, loc prayer.Location, method int) (*prayer.DayEvents, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.matches(loc, method) {
		c.reset(loc, method)
		return nil, false
	}
	d, ok := c.days[date]
	return d, ok
}

// Set stores a day, evicting the oldest dates beyond the size limit
func (c *DayCache) Set(loc prayer.Location, method int, day *prayer.DayEvents) {
	if day == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.matches(loc, method) {
		c.reset(loc, method)
	}
	c.days[day.Date()] = day

	if len(c.days) > c.maxDays {
		dates := make([]string, 0, len(c.days))
		for d := range c.days {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates[:len(dates)-c.maxDays] {
			delete(c.days, d)
		}
	}
}

// Invalidate drops every cached day
func (c *DayCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days = make(map[string]*prayer.DayEvents)
}

// Len returns the number of cached days
func (c *DayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.days)
}

func (c *DayCache) matches(loc prayer.Location, method int) bool {
	return c.loc == loc && c.method == method
}

func (c *DayCache) reset(loc prayer.Location, method int) {
	c.loc = loc
	c.method = method
	c.days = make(map[string]*prayer.DayEvents)
}
