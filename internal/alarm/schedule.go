package alarm

import (
	"time"

	"github.com/muaviaUsmani/adhan/internal/prayer"
)

// Item is one desired future alarm occurrence
type Item struct {
	Event prayer.EventName `json:"event"`
	Time  time.Time        `json:"time"`
	Key   Key              `json:"key"`
}

// CalculateSchedule returns the alarms that should exist at now: today's
// remaining enabled events in cycle order, then every enabled event of
// tomorrow in cycle order. A nil day contributes nothing.
//
// An event of today is remaining iff its instant is strictly after now; each
// event is judged on its own.
func CalculateSchedule(now time.Time, today, tomorrow *prayer.DayEvents, prefs prayer.Preferences) []Item {
	items := make([]Item, 0, 2*prayer.NumEvents)

	if today != nil {
		for _, e := range today.All() {
			if !prefs.Enabled(e.Name) || !e.At.After(now) {
				continue
			}
			items = append(items, newItem(e))
		}
	}

	if tomorrow != nil {
		for _, e := range tomorrow.All() {
			if !prefs.Enabled(e.Name) {
				continue
			}
			items = append(items, newItem(e))
		}
	}

	return items
}

func newItem(e prayer.EventTime) Item {
	return Item{Event: e.Name, Time: e.At, Key: NewKey(e.Name, e.At)}
}

// DesiredKeys collects the keys of items
func DesiredKeys(items []Item) KeySet {
	s := make(KeySet, len(items))
	for _, it := range items {
		s.Add(it.Key)
	}
	return s
}
