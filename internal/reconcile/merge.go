package reconcile

import (
	"sort"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// Merge combines the records saved before a scan with the freshly reconciled
// ones. In partial-update mode components missing from fresh keep their prior
// record; otherwise fresh replaces the whole set. The result is sorted by
// component id.
func Merge(prior, fresh []Record, partial bool) []Record {
	byID := make(map[string]Record, len(prior)+len(fresh))
	if partial {
		for _, rec := range prior {
			byID[rec.ComponentID] = rec
		}
	}
	for _, rec := range fresh {
		byID[rec.ComponentID] = rec
	}

	out := make([]Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out
}

// CheckStatus derives the bin-level quantity check status from its records.
// Any unreconciled component, or any component that failed in the batch,
// leaves the bin Pending. Otherwise Shortage wins over Excess.
func CheckStatus(records []Record, failedComponents int) enums.QuantityCheckStatus {
	if len(records) == 0 && failedComponents == 0 {
		return enums.QuantityCheckUnchecked
	}
	if failedComponents > 0 {
		return enums.QuantityCheckPending
	}

	shortage, excess := false, false
	for _, rec := range records {
		if !rec.Reconciled() {
			return enums.QuantityCheckPending
		}
		switch *rec.DiscrepancyType {
		case enums.DiscrepancyShortage:
			shortage = true
		case enums.DiscrepancyExcess:
			excess = true
		}
	}

	switch {
	case shortage:
		return enums.QuantityCheckShortage
	case excess:
		return enums.QuantityCheckExcess
	default:
		return enums.QuantityCheckReady
	}
}
