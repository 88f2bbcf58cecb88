// Package readiness answers whether a bin is complete on its own and whether
// it may leave for production alongside its siblings.
package readiness

import (
	"sort"

	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
)

// BinVerdict is the per-bin outcome used by the scan flow.
type BinVerdict struct {
	Ready        bool     `json:"ready"`
	Unreconciled []string `json:"unreconciled,omitempty"`
}

// EvaluateBin reports a bin ready when every record is reconciled. Shortage
// and Excess are tolerated here. Scale components additionally need a
// positive unit weight and a recorded quantity and weight. A bin with no
// records is not ready.
func EvaluateBin(records []reconcile.Record) BinVerdict {
	if len(records) == 0 {
		return BinVerdict{}
	}
	var pending []string
	for _, rec := range records {
		if !binRecordReady(rec) {
			pending = append(pending, rec.ComponentID)
		}
	}
	sort.Strings(pending)
	return BinVerdict{Ready: len(pending) == 0, Unreconciled: pending}
}

func binRecordReady(rec reconcile.Record) bool {
	if !rec.Reconciled() {
		return false
	}
	if !rec.RequiresScale {
		return true
	}
	return rec.UnitWeightGrams != nil && *rec.UnitWeightGrams > 0 &&
		rec.ActualQuantity != nil && rec.ActualWeightKg != nil
}

// Coverage is the cumulative supply of one BOM component at release time.
type Coverage struct {
	ComponentID string `json:"componentId"`
	Required    int    `json:"required"`
	Cumulative  int    `json:"cumulative"`
	Met         bool   `json:"met"`
}

// ReleaseVerdict is the release-time outcome for one session bin.
type ReleaseVerdict struct {
	BinID      string     `json:"binId"`
	Ready      bool       `json:"ready"`
	Components []Coverage `json:"components"`
	Unmet      []string   `json:"unmet,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

const reasonNoBOMComponents = "bin holds no component of the work order BOM"

// EvaluateRelease checks every session bin against the BOM. Supply is summed
// over the session and the bins already released for the work order, each
// bin counted once, so one bin's shortage can be covered by a sibling.
// Components that are not on the BOM are ignored.
func EvaluateRelease(bom []workorders.BOMLine, session, released []checklist.BinQuantities) []ReleaseVerdict {
	required := workorders.Requirements(bom)
	totals := checklist.Sum(checklist.Union(session, released))

	out := make([]ReleaseVerdict, 0, len(session))
	for _, bin := range session {
		verdict := ReleaseVerdict{BinID: bin.BinID, Ready: true}
		ids := make([]string, 0, len(bin.Quantities))
		for componentID := range bin.Quantities {
			if _, onBOM := required[componentID]; onBOM {
				ids = append(ids, componentID)
			}
		}
		sort.Strings(ids)

		for _, componentID := range ids {
			c := Coverage{
				ComponentID: componentID,
				Required:    required[componentID],
				Cumulative:  totals[componentID],
			}
			c.Met = c.Cumulative >= c.Required
			if !c.Met {
				verdict.Ready = false
				verdict.Unmet = append(verdict.Unmet, componentID)
			}
			verdict.Components = append(verdict.Components, c)
		}
		if len(ids) == 0 {
			verdict.Ready = false
			verdict.Reason = reasonNoBOMComponents
		}
		out = append(out, verdict)
	}
	return out
}
