package result

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/muaviaUsmani/adhan/internal/reconcile"
)

// Runner runs one reconciliation pass
type Runner interface {
	Run(ctx context.Context, trigger string) (reconcile.Report, error)
}

// RecordingRunner stores the outcome of every pass the wrapped runner makes
type RecordingRunner struct {
	runner  Runner
	backend Backend
	now     func() time.Time
	log     logger.Logger
}

// NewRecordingRunner wraps runner
func NewRecordingRunner(runner Runner, backend Backend) *RecordingRunner {
	return &RecordingRunner{
		runner:  runner,
		backend: backend,
		now:     time.Now,
		log:     logger.Default().WithComponent(logger.ComponentReconciler),
	}
}

// Run implements Runner. A result that cannot be stored is logged; the pass
// outcome is returned unchanged.
func (r *RecordingRunner) Run(ctx context.Context, trigger string) (reconcile.Report, error) {
	report, err := r.runner.Run(ctx, trigger)

	res := FromReport(report, err, r.now())
	if res.PassID == "" {
		res.PassID = uuid.New().String()
	}
	if res.Trigger == "" {
		res.Trigger = trigger
	}

	if storeErr := r.backend.StoreResult(ctx, res); storeErr != nil {
		r.log.WarnContext(ctx, "Failed to store pass result",
			"pass_id", res.PassID,
			"error", storeErr)
	}
	return report, err
}
