package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/muaviaUsmani/adhan/internal/logger"
)

// NotifyFunc delivers a fired alarm
type NotifyFunc func(context.Context, ScheduledItem) error

// Registry maps event names to notifiers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]NotifyFunc
	fallback NotifyFunc
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]NotifyFunc),
	}
}

// Register adds a notifier for a specific event name
func (r *Registry) Register(event string, fn NotifyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = fn
}

// SetFallback sets the notifier used for events with no registered notifier
func (r *Registry) SetFallback(fn NotifyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Get retrieves the notifier for an event, falling back when none is registered
func (r *Registry) Get(event string) (NotifyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.handlers[event]; ok {
		return fn, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Count returns the number of registered notifiers, not counting the fallback
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Notify runs the notifier for the alarm. A panicking notifier is reported as an error.
func (r *Registry) Notify(ctx context.Context, item ScheduledItem) (err error) {
	fn, ok := r.Get(item.Payload.EventName)
	if !ok {
		return fmt.Errorf("no notifier registered for event: %q", item.Payload.EventName)
	}

	defer func() {
		if p := apperrors.Recover(recover()); p != nil {
			err = p
		}
	}()
	return fn(ctx, item)
}

// LogNotifier returns a notifier that writes the fired alarm to the log
func LogNotifier(log logger.Logger) NotifyFunc {
	return func(ctx context.Context, item ScheduledItem) error {
		log.InfoContext(ctx, "Alarm fired",
			"alarm_id", item.ID,
			"event", item.Payload.EventName,
			"trigger_at", item.TriggerAt.Format(time.RFC3339))
		return nil
	}
}
