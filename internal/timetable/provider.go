// Package timetable supplies the five daily event times for a date and location.
package timetable

import (
	"context"
	"time"

	"github.com/muaviaUsmani/adhan/internal/prayer"
)

// DateLayout is the calendar date key format used in caches and DayEvents
const DateLayout = "2006-01-02"

// Provider returns the events of one calendar day. Only the year, month and
// day of date are used. Any failure means "no data for that day".
type Provider interface {
	GetEvents(ctx context.Context, date time.Time, loc prayer.Location) (*prayer.DayEvents, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, date time.Time, loc prayer.Location) (*prayer.DayEvents, error)

// GetEvents implements Provider
func (f ProviderFunc) GetEvents(ctx context.Context, date time.Time, loc prayer.Location) (*prayer.DayEvents, error) {
	return f(ctx, date, loc)
}
