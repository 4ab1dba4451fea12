package alarm

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/adhan/internal/prayer"
)

var fixedTimes = map[prayer.EventName][2]int{
	prayer.Fajr:    {5, 30},
	prayer.Dhuhr:   {12, 30},
	prayer.Asr:     {15, 45},
	prayer.Maghrib: {18, 15},
	prayer.Isha:    {20, 0},
}

// testDay builds the fixed five times for a date in UTC
func testDay(t *testing.T, year int, month time.Month, day int) *prayer.DayEvents {
	t.Helper()
	times := make(map[prayer.EventName]time.Time, prayer.NumEvents)
	for name, hm := range fixedTimes {
		times[name] = time.Date(year, month, day, hm[0], hm[1], 0, 0, time.UTC)
	}
	d, err := prayer.NewDayEvents(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), times)
	if err != nil {
		t.Fatalf("NewDayEvents() error = %v", err)
	}
	return d
}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 15, hour, minute, 0, 0, time.UTC)
}
