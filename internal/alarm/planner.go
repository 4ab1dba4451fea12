package alarm

// ScheduledAlarm is one alarm the driver currently holds. Key is empty when the
// alarm's identity could not be derived from its metadata.
type ScheduledAlarm struct {
	ID  string `json:"id"`
	Key Key    `json:"key,omitempty"`
}

// SyncPlan is the outcome of reconciling intent, bookkeeping and live state
type SyncPlan struct {
	// IDsToCancel holds every driver id to cancel, without duplicates
	IDsToCancel []string `json:"ids_to_cancel"`
	// KeyToID maps each desired key that is already live to the single id kept for it
	KeyToID IDMap `json:"key_to_id"`
}

// PlanSync reconciles desired keys, the stored key → id map and the driver's
// live alarms. The live list decides what exists, desired decides what is
// wanted, and stored only breaks ties between duplicates.
//
//   - live alarms without a derivable key are cancelled
//   - stored ids whose key is no longer desired are cancelled
//   - live groups for undesired keys are cancelled entirely
//   - live groups for desired keys keep one id (the stored one when it is in
//     the group, else the first reported) and cancel the rest
//
// An id that ends up kept is never cancelled, even if stale bookkeeping points
// at it from an undesired key.
//
// When no stored id matches a duplicate group the first reported id wins, so
// the choice is only stable if the driver lists alarms in a stable order.
func PlanSync(desired KeySet, stored IDMap, scheduled []ScheduledAlarm) SyncPlan {
	cancel := newOrderedIDs()

	groupOrder := make([]Key, 0, len(scheduled))
	groups := make(map[Key][]string)
	for _, s := range scheduled {
		if s.Key == "" {
			cancel.add(s.ID)
			continue
		}
		if _, seen := groups[s.Key]; !seen {
			groupOrder = append(groupOrder, s.Key)
		}
		groups[s.Key] = append(groups[s.Key], s.ID)
	}

	for _, k := range stored.Keys().Sorted() {
		if !desired.Has(k) {
			cancel.add(stored[k])
		}
	}

	keep := make(IDMap)
	for _, k := range groupOrder {
		ids := groups[k]
		if !desired.Has(k) {
			for _, id := range ids {
				cancel.add(id)
			}
			continue
		}

		keepID := ids[0]
		if storedID, ok := stored[k]; ok && contains(ids, storedID) {
			keepID = storedID
		}
		keep[k] = keepID

		for _, id := range ids {
			if id != keepID {
				cancel.add(id)
			}
		}
	}

	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	ids := make([]string, 0, len(cancel.ids))
	for _, id := range cancel.ids {
		if _, isKept := kept[id]; !isKept {
			ids = append(ids, id)
		}
	}

	return SyncPlan{IDsToCancel: ids, KeyToID: keep}
}

type orderedIDs struct {
	ids  []string
	seen map[string]struct{}
}

func newOrderedIDs() *orderedIDs {
	return &orderedIDs{seen: make(map[string]struct{})}
}

func (o *orderedIDs) add(id string) {
	if id == "" {
		return
	}
	if _, ok := o.seen[id]; ok {
		return
	}
	o.seen[id] = struct{}{}
	o.ids = append(o.ids, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
