// Package driver is the alarm scheduling primitive: schedule at an instant,
// cancel by id, list what is scheduled. The reconciler only sees the Driver
// interface; RedisDriver is the implementation the daemon runs on.
package driver

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
)

var (
	// ErrPastDue is the refusal returned when asked to schedule an instant that is not in the future
	ErrPastDue = errors.New("trigger instant is not in the future")

	// ErrUnavailable is returned by every call on a driver that is not available in this runtime
	ErrUnavailable = errors.New("alarm driver is not available")
)

// Payload is the metadata stored alongside each scheduled alarm
type Payload struct {
	EventName string `json:"eventName,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// ScheduledItem is one alarm currently held by the driver
type ScheduledItem struct {
	ID        string    `json:"id"`
	Payload   Payload   `json:"payload"`
	TriggerAt time.Time `json:"trigger_at"`
}

// Driver defines the alarm scheduling primitive
type Driver interface {
	// ScheduleAt registers an alarm and returns its driver-assigned id.
	// Past or present instants are refused with an error wrapping ErrPastDue.
	ScheduleAt(ctx context.Context, at time.Time, payload Payload) (string, error)

	// Cancel removes an alarm. Cancelling an unknown id is a no-op.
	Cancel(ctx context.Context, id string) error

	// ListScheduled returns every alarm currently scheduled
	ListScheduled(ctx context.Context) ([]ScheduledItem, error)
}

// Availability is implemented by drivers that can be missing in some runtimes
type Availability interface {
	Available() bool
}

// Available reports whether d can be used. Drivers that do not implement
// Availability are assumed available.
func Available(d Driver) bool {
	if d == nil {
		return false
	}
	if a, ok := d.(Availability); ok {
		return a.Available()
	}
	return true
}

// Unavailable is the driver used when alarms cannot be scheduled at all
type Unavailable struct{}

func (Unavailable) ScheduleAt(context.Context, time.Time, Payload) (string, error) {
	return "", apperrors.E("driver.schedule_at", apperrors.KindUnavailable, ErrUnavailable)
}

func (Unavailable) Cancel(context.Context, string) error {
	return apperrors.E("driver.cancel", apperrors.KindUnavailable, ErrUnavailable)
}

func (Unavailable) ListScheduled(context.Context) ([]ScheduledItem, error) {
	return nil, apperrors.E("driver.list", apperrors.KindUnavailable, ErrUnavailable)
}

// Available implements Availability
func (Unavailable) Available() bool { return false }

var (
	_ Driver       = Unavailable{}
	_ Availability = Unavailable{}
	_ Driver       = (*RedisDriver)(nil)
)
