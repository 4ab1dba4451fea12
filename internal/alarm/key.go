// Package alarm is the scheduling and reconciliation core: it computes which
// occurrences should have alarms, diffs that against what is known, and keeps
// the durable key → driver id bookkeeping. Nothing here talks to the driver.
package alarm

import (
	"sort"
	"strings"
	"time"

	"github.com/muaviaUsmani/adhan/internal/prayer"
)

// PayloadKind tags driver payloads created by this package
const PayloadKind = "prayer_alarm"

// instantLayout renders instants as UTC ISO-8601 with millisecond precision,
// e.g. 2024-01-15T05:30:00.000Z
const instantLayout = "2006-01-02T15:04:05.000Z"

// Key is the canonical identity of one alarm occurrence: "<event>:<instant>".
// A corrected event time yields a different key.
type Key string

// NewKey derives the key for an event occurring at at
func NewKey(event prayer.EventName, at time.Time) Key {
	return Key(string(event) + ":" + FormatInstant(at))
}

// FormatInstant renders t the way keys embed it
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

// Split separates the event name from the instant. Only the first colon is a
// delimiter; the instant keeps its own colons.
func (k Key) Split() (event, instant string, ok bool) {
	return strings.Cut(string(k), ":")
}

// Instant parses the instant suffix. ok is false when the key has no colon or
// the suffix is not a valid timestamp.
func (k Key) Instant() (time.Time, bool) {
	_, raw, ok := k.Split()
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DeriveKey rebuilds the key of a live driver alarm from its stored metadata.
// It returns "" when identity cannot be verified (foreign kind, missing event
// name, missing trigger).
func DeriveKey(eventName, kind string, trigger time.Time) Key {
	if kind != PayloadKind || eventName == "" || trigger.IsZero() {
		return ""
	}
	return Key(eventName + ":" + FormatInstant(trigger))
}

// KeySet is an unordered set of keys
type KeySet map[Key]struct{}

// NewKeySet builds a set from keys
func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership
func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k
func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}

// Sorted returns the members in lexical order
func (s KeySet) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
