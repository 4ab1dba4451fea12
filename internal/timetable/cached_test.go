package timetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muaviaUsmani/adhan/internal/prayer"
	"github.com/muaviaUsmani/adhan/internal/storage"
)

type countingProvider struct {
	day   func(date time.Time) *prayer.DayEvents
	err   error
	calls int
}

func (p *countingProvider) GetEvents(_ context.Context, date time.Time, _ prayer.Location) (*prayer.DayEvents, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.day(date), nil
}

func TestCachedProvider_FetchesOnceThenCaches(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	source := &countingProvider{day: func(time.Time) *prayer.DayEvents { return fixedDay(t, 2024, 1, 15) }}

	p := NewCachedProvider(source, nil, kv, "adhan:", 1)
	date := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	first, err := p.GetEvents(ctx, date, karachi)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	second, err := p.GetEvents(ctx, date, karachi)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	if source.calls != 1 {
		t.Errorf("source calls = %d, want 1", source.calls)
	}
	if first != second {
		t.Error("expected the in-memory cache to return the same day")
	}

	if _, found, _ := kv.Get(ctx, "adhan:times:2024-01-15:24.8607,67.0011:1"); !found {
		t.Error("expected the day to be persisted")
	}
}

func TestCachedProvider_UsesPersistedEntry(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	date := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	warm := NewCachedProvider(&countingProvider{day: func(time.Time) *prayer.DayEvents { return fixedDay(t, 2024, 1, 15) }}, nil, kv, "adhan:", 1)
	if _, err := warm.GetEvents(ctx, date, karachi); err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	// A fresh process: empty memory cache, upstream down
	cold := NewCachedProvider(&countingProvider{err: errors.New("offline")}, nil, kv, "adhan:", 1)
	day, err := cold.GetEvents(ctx, date, karachi)
	if err != nil {
		t.Fatalf("GetEvents() error = %v, want persisted day", err)
	}

	isha, _ := day.Get(prayer.Isha)
	if !isha.At.Equal(time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("isha = %v, want 20:00 UTC", isha.At)
	}
	if cold.Days().Len() != 1 {
		t.Errorf("expected persisted day to populate the memory cache")
	}
}

func TestCachedProvider_CorruptPersistedEntry(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	_ = kv.Set(ctx, "adhan:times:2024-01-15:24.8607,67.0011:1", "{broken")

	source := &countingProvider{day: func(time.Time) *prayer.DayEvents { return fixedDay(t, 2024, 1, 15) }}
	p := NewCachedProvider(source, nil, kv, "adhan:", 1)

	if _, err := p.GetEvents(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), karachi); err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if source.calls != 1 {
		t.Errorf("source calls = %d, want 1", source.calls)
	}

	raw, _, _ := kv.Get(ctx, "adhan:times:2024-01-15:24.8607,67.0011:1")
	if raw == "{broken" {
		t.Error("expected corrupt entry to be overwritten")
	}
}

func TestCachedProvider_SourceError(t *testing.T) {
	boom := errors.New("offline")
	p := NewCachedProvider(&countingProvider{err: boom}, nil, nil, "adhan:", 1)

	day, err := p.GetEvents(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), karachi)
	if !errors.Is(err, boom) || day != nil {
		t.Errorf("GetEvents() = %v, %v, want nil, %v", day, err, boom)
	}
}

func TestCachedProvider_MethodIsPartOfKey(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	src := &countingProvider{day: func(time.Time) *prayer.DayEvents { return fixedDay(t, 2024, 1, 15) }}
	_, _ = NewCachedProvider(src, nil, kv, "adhan:", 1).GetEvents(ctx, date, karachi)
	_, _ = NewCachedProvider(src, nil, kv, "adhan:", 3).GetEvents(ctx, date, karachi)

	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2 (different methods do not share entries)", src.calls)
	}
	if kv.Len() != 2 {
		t.Errorf("kv.Len() = %d, want 2", kv.Len())
	}
}
