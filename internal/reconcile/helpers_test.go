package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/adhan/internal/alarm"
	"github.com/muaviaUsmani/adhan/internal/driver"
	"github.com/muaviaUsmani/adhan/internal/metrics"
	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/preferences"
	"github.com/muaviaUsmani/adhan/internal/serialization"
	"github.com/muaviaUsmani/adhan/internal/storage"
	"github.com/muaviaUsmani/adhan/internal/timetable"
)

const idsKey = "adhan:alarm_ids"

var home = prayer.Location{Latitude: 51.5074, Longitude: -0.1278}

// fixedTimes returns the same five times (05:30, 12:30, 15:45, 18:15, 20:00 UTC) for any date
func fixedTimes(date time.Time) (*prayer.DayEvents, error) {
	y, m, d := date.Date()
	at := func(h, mm int) time.Time { return time.Date(y, m, d, h, mm, 0, 0, time.UTC) }
	return prayer.NewDayEvents(date.Format(timetable.DateLayout), map[prayer.EventName]time.Time{
		prayer.Fajr:    at(5, 30),
		prayer.Dhuhr:   at(12, 30),
		prayer.Asr:     at(15, 45),
		prayer.Maghrib: at(18, 15),
		prayer.Isha:    at(20, 0),
	})
}

func fixedProvider() timetable.Provider {
	return timetable.ProviderFunc(func(_ context.Context, date time.Time, _ prayer.Location) (*prayer.DayEvents, error) {
		return fixedTimes(date)
	})
}

// failingOn returns the fixed times except for the listed dates, which fail
func failingOn(dates ...string) timetable.Provider {
	bad := make(map[string]bool, len(dates))
	for _, d := range dates {
		bad[d] = true
	}
	return timetable.ProviderFunc(func(_ context.Context, date time.Time, _ prayer.Location) (*prayer.DayEvents, error) {
		if bad[date.Format(timetable.DateLayout)] {
			return nil, errors.New("timetable offline")
		}
		return fixedTimes(date)
	})
}

type env struct {
	r         *Reconciler
	drv       *driver.RedisDriver
	mr        *miniredis.Miniredis
	kv        *storage.MemoryKV
	ids       *alarm.IDStore
	prefs     *preferences.Store
	collector *metrics.Collector
	now       time.Time
}

type envOption func(*envConfig)

type envConfig struct {
	provider timetable.Provider
	wrap     func(driver.Driver) driver.Driver
	idsKV    storage.KV
}

func withProvider(p timetable.Provider) envOption {
	return func(c *envConfig) { c.provider = p }
}

func withDriver(wrap func(driver.Driver) driver.Driver) envOption {
	return func(c *envConfig) { c.wrap = wrap }
}

func withIDsKV(kv storage.KV) envOption {
	return func(c *envConfig) { c.idsKV = kv }
}

func newEnv(t *testing.T, now time.Time, opts ...envOption) *env {
	t.Helper()

	cfg := envConfig{provider: fixedProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	drv := driver.NewRedisDriver(client, "adhan:", serialization.FormatJSON)
	drv.SetClock(func() time.Time { return now })

	var d driver.Driver = drv
	if cfg.wrap != nil {
		d = cfg.wrap(drv)
	}

	kv := storage.NewMemoryKV()
	idsKV := cfg.idsKV
	if idsKV == nil {
		idsKV = kv
	}

	e := &env{
		drv:       drv,
		mr:        mr,
		kv:        kv,
		ids:       alarm.NewIDStore(idsKV, idsKey),
		prefs:     preferences.NewStore(kv, "adhan:"),
		collector: metrics.NewCollector(),
		now:       now,
	}
	e.r = New(cfg.provider, e.prefs, e.ids, d, home, time.UTC)
	e.r.SetClock(func() time.Time { return e.now })
	e.r.SetMetrics(e.collector)
	return e
}

// advance moves both the reconciler's and the driver's clocks
func (e *env) advance(to time.Time) {
	e.now = to
	e.drv.SetClock(func() time.Time { return to })
}

func (e *env) run(t *testing.T, trigger string) Report {
	t.Helper()
	report, err := e.r.Run(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Run(%q) error = %v", trigger, err)
	}
	return report
}

func (e *env) live(t *testing.T) []driver.ScheduledItem {
	t.Helper()
	items, err := e.drv.ListScheduled(context.Background())
	if err != nil {
		t.Fatalf("ListScheduled() error = %v", err)
	}
	return items
}

func (e *env) stored(t *testing.T) alarm.IDMap {
	t.Helper()
	m, err := e.ids.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m
}

func utc(y int, m time.Month, d, h, mm int) time.Time {
	return time.Date(y, m, d, h, mm, 0, 0, time.UTC)
}

func key(event prayer.EventName, at time.Time) alarm.Key {
	return alarm.NewKey(event, at)
}

// flakyDriver fails selected calls of an underlying driver
type flakyDriver struct {
	driver.Driver
	failCancel    map[string]bool
	failSchedule  map[prayer.EventName]bool
	failList      bool
	cancelCalls   int
	scheduleCalls int
}

func (f *flakyDriver) Cancel(ctx context.Context, id string) error {
	f.cancelCalls++
	if f.failCancel[id] {
		return errors.New("cancel rejected")
	}
	return f.Driver.Cancel(ctx, id)
}

func (f *flakyDriver) ScheduleAt(ctx context.Context, at time.Time, p driver.Payload) (string, error) {
	f.scheduleCalls++
	if f.failSchedule[prayer.EventName(p.EventName)] {
		return "", errors.New("schedule rejected")
	}
	return f.Driver.ScheduleAt(ctx, at, p)
}

func (f *flakyDriver) ListScheduled(ctx context.Context) ([]driver.ScheduledItem, error) {
	if f.failList {
		return nil, errors.New("list rejected")
	}
	return f.Driver.ListScheduled(ctx)
}

// readOnlyKV accepts reads and rejects writes
type readOnlyKV struct {
	*storage.MemoryKV
}

func (readOnlyKV) Set(context.Context, string, string) error { return errors.New("read-only") }
