// Package prayer defines the five daily events alarms are scheduled for and the
// per-user preferences that gate them.
package prayer

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventName identifies one of the five fixed daily events
type EventName string

const (
	// Fajr is the dawn event
	Fajr EventName = "fajr"
	// Dhuhr is the midday event
	Dhuhr EventName = "dhuhr"
	// Asr is the afternoon event
	Asr EventName = "asr"
	// Maghrib is the sunset event
	Maghrib EventName = "maghrib"
	// Isha is the night event
	Isha EventName = "isha"
)

// NumEvents is the number of events in a day
const NumEvents = 5

// Events lists every event in the fixed daily cycle order. Iteration and
// tie-breaks always follow this order.
var Events = [NumEvents]EventName{Fajr, Dhuhr, Asr, Maghrib, Isha}

// Index returns the position of name in the daily cycle, or -1 if unknown
func (n EventName) Index() int {
	for i, e := range Events {
		if e == n {
			return i
		}
	}
	return -1
}

// Valid reports whether n is one of the five events
func (n EventName) Valid() bool {
	return n.Index() >= 0
}

// ParseEventName validates a raw event name
func ParseEventName(s string) (EventName, error) {
	n := EventName(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown event %q", s)
	}
	return n, nil
}

// EventTime is one computed occurrence of an event on a given day
type EventTime struct {
	Name   EventName `json:"name"`
	At     time.Time `json:"at"`
	Hour   int       `json:"hour"`
	Minute int       `json:"minute"`
}

// NewEventTime builds an EventTime whose hour/minute are taken from at in its own location
func NewEventTime(name EventName, at time.Time) EventTime {
	return EventTime{
		Name:   name,
		At:     at,
		Hour:   at.Hour(),
		Minute: at.Minute(),
	}
}

// DayEvents holds exactly one EventTime per event for a single calendar day.
// Partial days cannot be constructed.
type DayEvents struct {
	date   string
	events [NumEvents]EventTime
}

// NewDayEvents builds a full day from a name → instant mapping. Every event must be present.
func NewDayEvents(date string, times map[EventName]time.Time) (*DayEvents, error) {
	d := &DayEvents{date: date}
	for i, name := range Events {
		at, ok := times[name]
		if !ok || at.IsZero() {
			return nil, fmt.Errorf("day %s is missing %s", date, name)
		}
		d.events[i] = NewEventTime(name, at)
	}
	return d, nil
}

// Date returns the calendar date key (YYYY-MM-DD) the events belong to
func (d *DayEvents) Date() string {
	return d.date
}

// Get returns the occurrence of one event
func (d *DayEvents) Get(name EventName) (EventTime, bool) {
	i := name.Index()
	if i < 0 {
		return EventTime{}, false
	}
	return d.events[i], true
}

// All returns the day's occurrences in cycle order
func (d *DayEvents) All() []EventTime {
	out := make([]EventTime, NumEvents)
	copy(out, d.events[:])
	return out
}

type dayEventsJSON struct {
	Date   string      `json:"date"`
	Events []EventTime `json:"events"`
}

// MarshalJSON implements json.Marshaler
func (d *DayEvents) MarshalJSON() ([]byte, error) {
	return json.Marshal(dayEventsJSON{Date: d.date, Events: d.All()})
}

// UnmarshalJSON implements json.Unmarshaler. A day missing any event is rejected.
func (d *DayEvents) UnmarshalJSON(data []byte) error {
	var raw dayEventsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	times := make(map[EventName]time.Time, len(raw.Events))
	for _, e := range raw.Events {
		times[e.Name] = e.At
	}
	parsed, err := NewDayEvents(raw.Date, times)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// Location is the coordinate pair event times are computed for
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// String formats the location as "lat,lon" with 4 decimals
func (l Location) String() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}
