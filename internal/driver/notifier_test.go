package driver

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
)

func TestRegistry_RegisterAndNotify(t *testing.T) {
	r := NewRegistry()

	var got ScheduledItem
	r.Register("fajr", func(_ context.Context, item ScheduledItem) error {
		got = item
		return nil
	})

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	item := ScheduledItem{ID: "a1", Payload: Payload{EventName: "fajr"}}
	if err := r.Notify(context.Background(), item); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("notifier received %q, want a1", got.ID)
	}
}

func TestRegistry_Unregistered(t *testing.T) {
	r := NewRegistry()

	err := r.Notify(context.Background(), ScheduledItem{Payload: Payload{EventName: "asr"}})
	if err == nil || !strings.Contains(err.Error(), "asr") {
		t.Errorf("Notify() error = %v, want no-notifier error naming asr", err)
	}
}

func TestRegistry_Fallback(t *testing.T) {
	r := NewRegistry()

	var fallbackCalls int
	r.SetFallback(func(context.Context, ScheduledItem) error {
		fallbackCalls++
		return nil
	})
	r.Register("isha", func(context.Context, ScheduledItem) error { return nil })

	_ = r.Notify(context.Background(), ScheduledItem{Payload: Payload{EventName: "isha"}})
	_ = r.Notify(context.Background(), ScheduledItem{Payload: Payload{EventName: "maghrib"}})
	_ = r.Notify(context.Background(), ScheduledItem{})

	if fallbackCalls != 2 {
		t.Errorf("fallback calls = %d, want 2", fallbackCalls)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (fallback not counted)", r.Count())
	}
}

func TestRegistry_NotifierError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("speaker offline")
	r.Register("dhuhr", func(context.Context, ScheduledItem) error { return boom })

	if err := r.Notify(context.Background(), ScheduledItem{Payload: Payload{EventName: "dhuhr"}}); !errors.Is(err, boom) {
		t.Errorf("Notify() error = %v, want %v", err, boom)
	}
}

func TestRegistry_NotifierPanic(t *testing.T) {
	r := NewRegistry()
	r.Register("dhuhr", func(context.Context, ScheduledItem) error { panic("kaboom") })

	err := r.Notify(context.Background(), ScheduledItem{Payload: Payload{EventName: "dhuhr"}})

	var perr *apperrors.PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("Notify() error = %v, want *PanicError", err)
	}
	if perr.Value != "kaboom" {
		t.Errorf("panic value = %v, want kaboom", perr.Value)
	}
}

func TestLogNotifier(t *testing.T) {
	fn := LogNotifier(&logger.NoOpLogger{})
	if err := fn(context.Background(), ScheduledItem{ID: "x", Payload: Payload{EventName: "fajr"}}); err != nil {
		t.Errorf("LogNotifier() error = %v", err)
	}
}
