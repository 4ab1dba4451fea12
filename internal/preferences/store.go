// Package preferences persists which events alarms are wanted for.
package preferences

import (
	"context"
	"encoding/json"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/storage"
)

// Store keeps preferences as one JSON object {"fajr":true,...}
type Store struct {
	kv  storage.KV
	key string
	log logger.Logger
}

// NewStore creates a store under <prefix>preferences
func NewStore(kv storage.KV, prefix string) *Store {
	return &Store{
		kv:  kv,
		key: prefix + "preferences",
		log: logger.Default().WithComponent(logger.ComponentStorage),
	}
}

// Key returns the storage key preferences are kept under
func (s *Store) Key() string {
	return s.key
}

// Load returns the stored preferences with every event set. Missing or corrupt
// data yields defaults; unknown names and non-boolean values are ignored.
// err is set only when the storage read failed, in which case defaults are
// returned as well.
func (s *Store) Load(ctx context.Context) (prayer.Preferences, error) {
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return prayer.DefaultPreferences(), apperrors.E("preferences.load", apperrors.KindTransient, err)
	}
	if !found {
		return prayer.DefaultPreferences(), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		s.log.WarnContext(ctx, "Preferences are corrupt, using defaults", "key", s.key, "error", err)
		return prayer.DefaultPreferences(), nil
	}

	prefs := prayer.DefaultPreferences()
	for name, value := range fields {
		event, err := prayer.ParseEventName(name)
		if err != nil {
			continue
		}
		var enabled bool
		if err := json.Unmarshal(value, &enabled); err != nil {
			continue
		}
		prefs[event] = enabled
	}
	return prefs, nil
}

// Save writes prefs, filling in unset events as enabled
func (s *Store) Save(ctx context.Context, prefs prayer.Preferences) error {
	data, err := json.Marshal(prefs.Clone())
	if err != nil {
		return apperrors.E("preferences.save", apperrors.KindUnknown, err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return apperrors.E("preferences.save", apperrors.KindTransient, err)
	}
	return nil
}

// Set toggles one event and returns the preferences as saved
func (s *Store) Set(ctx context.Context, event prayer.EventName, enabled bool) (prayer.Preferences, error) {
	prefs, err := s.Load(ctx)
	if err != nil {
		// Never overwrite preferences that could not be read
		return nil, err
	}
	prefs[event] = enabled
	if err := s.Save(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
