package alarm

// Diff classifies known keys against desired keys
type Diff struct {
	ToCancel   []Key `json:"to_cancel"`
	ToSchedule []Key `json:"to_schedule"`
	ToKeep     []Key `json:"to_keep"`
}

// CalculateDiff is a pure set comparison:
// ToCancel = existing − desired, ToSchedule = desired − existing,
// ToKeep = existing ∩ desired. Each slice is sorted.
func CalculateDiff(existing, desired KeySet) Diff {
	d := Diff{
		ToCancel:   []Key{},
		ToSchedule: []Key{},
		ToKeep:     []Key{},
	}

	for k := range existing {
		if desired.Has(k) {
			d.ToKeep = append(d.ToKeep, k)
		} else {
			d.ToCancel = append(d.ToCancel, k)
		}
	}
	for k := range desired {
		if !existing.Has(k) {
			d.ToSchedule = append(d.ToSchedule, k)
		}
	}

	sortKeys(d.ToCancel)
	sortKeys(d.ToSchedule)
	sortKeys(d.ToKeep)
	return d
}

// Empty reports whether nothing needs to change
func (d Diff) Empty() bool {
	return len(d.ToCancel) == 0 && len(d.ToSchedule) == 0
}
