package reconcile

import (
	"context"

	"github.com/muaviaUsmani/adhan/internal/alarm"
)

// Preview is the outcome of a dry run
type Preview struct {
	Items []alarm.Item `json:"items"`
	Diff  alarm.Diff   `json:"diff"`
	// NoData is set when neither today's nor tomorrow's events could be fetched
	NoData bool `json:"no_data"`
}

// Preview computes the desired alarms and diffs them against the stored ids
// with expired entries removed. It makes no driver calls and writes nothing.
func (r *Reconciler) Preview(ctx context.Context) (Preview, error) {
	now := r.now().In(r.tz)

	items, ok := r.desiredItems(ctx, now)
	if !ok {
		return Preview{Items: []alarm.Item{}, Diff: alarm.CalculateDiff(alarm.KeySet{}, alarm.KeySet{}), NoData: true}, nil
	}

	stored, err := r.ids.Load(ctx)
	if err != nil {
		return Preview{}, err
	}
	existing := alarm.CleanupExpired(stored, now).Keys()

	return Preview{
		Items: items,
		Diff:  alarm.CalculateDiff(existing, alarm.DesiredKeys(items)),
	}, nil
}
