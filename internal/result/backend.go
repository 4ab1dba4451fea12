// Package result keeps the outcome of recent reconciliation passes so clients
// can see what the daemon last did.
package result

import (
	"context"
	"time"

	"github.com/muaviaUsmani/adhan/internal/reconcile"
)

// Status is how a pass ended
type Status string

const (
	// StatusCompleted means the pass ran every step
	StatusCompleted Status = "completed"
	// StatusSkipped means the pass returned early without touching the driver
	StatusSkipped Status = "skipped"
	// StatusFailed means the pass returned an error
	StatusFailed Status = "failed"
)

// PassResult is the stored summary of one pass
type PassResult struct {
	PassID         string        `json:"pass_id"`
	Trigger        string        `json:"trigger"`
	Status         Status        `json:"status"`
	SkipReason     string        `json:"skip_reason,omitempty"`
	Error          string        `json:"error,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
	Duration       time.Duration `json:"duration"`
	Scheduled      int           `json:"scheduled"`
	Cancelled      int           `json:"cancelled"`
	Kept           int           `json:"kept"`
	Refused        int           `json:"refused"`
	CancelFailed   int           `json:"cancel_failed"`
	ScheduleFailed int           `json:"schedule_failed"`
	StoreFailed    bool          `json:"store_failed"`
}

// IsFailed reports whether the pass returned an error
func (r *PassResult) IsFailed() bool {
	return r.Status == StatusFailed
}

// FromReport summarizes a pass report and the error it returned
func FromReport(report reconcile.Report, err error, completedAt time.Time) *PassResult {
	res := &PassResult{
		PassID:         report.PassID,
		Trigger:        report.Trigger,
		Status:         StatusCompleted,
		SkipReason:     report.SkipReason,
		CompletedAt:    completedAt,
		Duration:       report.Duration,
		Scheduled:      len(report.Scheduled),
		Cancelled:      len(report.Cancelled),
		Kept:           report.Kept,
		Refused:        len(report.Refused),
		CancelFailed:   len(report.CancelFailed),
		ScheduleFailed: len(report.ScheduleFailed),
		StoreFailed:    report.StoreFailed,
	}
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
	case report.Skipped:
		res.Status = StatusSkipped
	}
	return res
}

// Backend defines the interface for storing and retrieving pass results
type Backend interface {
	// StoreResult stores a pass result and marks it as the latest
	StoreResult(ctx context.Context, result *PassResult) error

	// GetResult retrieves a pass result by pass ID.
	// Returns nil if the result doesn't exist or expired.
	GetResult(ctx context.Context, passID string) (*PassResult, error)

	// LastResult returns the most recently stored result, or nil if none
	LastResult(ctx context.Context) (*PassResult, error)

	// WaitForNext blocks until a result completed after since is stored or
	// timeout is reached. Returns nil and no error on timeout.
	WaitForNext(ctx context.Context, since time.Time, timeout time.Duration) (*PassResult, error)

	// DeleteResult removes a result. Missing results are not an error.
	DeleteResult(ctx context.Context, passID string) error
}
