package alarm

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/storage"
)

// ExpiryGrace keeps entries whose instant passed less than this long ago, so an
// alarm that fired moments before cleanup is not dropped from bookkeeping early
const ExpiryGrace = time.Minute

// IDMap maps an alarm key to the id the driver assigned when it was scheduled
type IDMap map[Key]string

// Keys returns the map's keys as a set
func (m IDMap) Keys() KeySet {
	s := make(KeySet, len(m))
	for k := range m {
		s.Add(k)
	}
	return s
}

// Clone returns an independent copy
func (m IDMap) Clone() IDMap {
	out := make(IDMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IDStore persists the IDMap as a single JSON blob. The blob is always
// rewritten whole; there are no per-key storage operations.
type IDStore struct {
	kv  storage.KV
	key string
	log logger.Logger
}

// NewIDStore creates a store keeping its blob under key
func NewIDStore(kv storage.KV, key string) *IDStore {
	return &IDStore{
		kv:  kv,
		key: key,
		log: logger.Default().WithComponent(logger.ComponentStorage),
	}
}

// SetLogger replaces the store's logger
func (s *IDStore) SetLogger(l logger.Logger) {
	s.log = l
}

// Load reads the persisted map. The returned map is never nil.
// A missing blob, invalid JSON or a non-object shape yields an empty map and no
// error; only entries with string values survive. err is set only when the
// storage read itself failed.
func (s *IDStore) Load(ctx context.Context) (IDMap, error) {
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return IDMap{}, apperrors.E("alarm.idstore.load", apperrors.KindTransient, err)
	}
	if !found {
		return IDMap{}, nil
	}

	m, dropped, decodeErr := decodeIDMap(raw)
	if decodeErr != nil {
		s.log.WarnContext(ctx, "Alarm id map is corrupt, treating as empty",
			"key", s.key,
			"error", decodeErr)
		return IDMap{}, nil
	}
	if dropped > 0 {
		s.log.WarnContext(ctx, "Dropped non-string alarm id entries",
			"key", s.key,
			"dropped", dropped)
	}
	return m, nil
}

// decodeIDMap keeps only string-valued entries of a JSON object
func decodeIDMap(raw string) (IDMap, int, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, 0, apperrors.E("alarm.idstore.decode", apperrors.KindCorrupt, err)
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, 0, apperrors.E("alarm.idstore.decode", apperrors.KindCorrupt, errNotObject)
	}

	m := make(IDMap, len(obj))
	dropped := 0
	for k, v := range obj {
		id, ok := v.(string)
		if !ok {
			dropped++
			continue
		}
		m[Key(k)] = id
	}
	return m, dropped, nil
}

// Save writes the whole map. Callers treat a failure as best-effort: they keep
// working with their in-memory map and the next pass rewrites it.
func (s *IDStore) Save(ctx context.Context, m IDMap) error {
	if m == nil {
		m = IDMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.E("alarm.idstore.save", apperrors.KindCorrupt, err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return apperrors.E("alarm.idstore.save", apperrors.KindTransient, err)
	}
	return nil
}

// Clear removes the persisted blob
func (s *IDStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		return apperrors.E("alarm.idstore.clear", apperrors.KindTransient, err)
	}
	return nil
}

// LoadAndCleanup loads the map, drops expired entries and persists the cleaned
// map only when something was dropped. The cleaned map is returned even when
// the write-back fails.
func (s *IDStore) LoadAndCleanup(ctx context.Context, now time.Time) (IDMap, error) {
	loaded, err := s.Load(ctx)
	if err != nil {
		return loaded, err
	}

	cleaned := CleanupExpired(loaded, now)
	// Cleanup only removes entries, so a size change is the only possible change
	if len(cleaned) != len(loaded) {
		s.log.DebugContext(ctx, "Removed expired alarm ids",
			"removed", len(loaded)-len(cleaned),
			"remaining", len(cleaned))
		if err := s.Save(ctx, cleaned); err != nil {
			return cleaned, err
		}
	}
	return cleaned, nil
}

// Merge returns a new map: existing minus toRemove, then plus toAdd. A key in
// both toRemove and toAdd ends up present. existing is not modified.
func Merge(existing IDMap, toRemove []Key, toAdd IDMap) IDMap {
	out := existing.Clone()
	for _, k := range toRemove {
		delete(out, k)
	}
	for k, id := range toAdd {
		out[k] = id
	}
	return out
}

// CleanupExpired drops entries whose instant is at or before now − ExpiryGrace.
// Keys without a colon or with an unparsable instant are kept: losing them
// could orphan a live alarm that could then never be cancelled.
func CleanupExpired(m IDMap, now time.Time) IDMap {
	cutoff := now.Add(-ExpiryGrace)
	out := make(IDMap, len(m))
	for k, id := range m {
		at, ok := k.Instant()
		if !ok || at.After(cutoff) {
			out[k] = id
		}
	}
	return out
}
