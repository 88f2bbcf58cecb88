package checklist

import (
	"sort"

	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// BinQuantities is the recorded quantity of each component in one bin.
type BinQuantities struct {
	BinID      string         `json:"binId"`
	Quantities map[string]int `json:"quantities"`
}

// Item is one BOM line of the checklist.
type Item struct {
	ComponentID string               `json:"componentId"`
	Required    int                  `json:"required"`
	Scanned     int                  `json:"scanned"`
	Remaining   int                  `json:"remaining"`
	State       enums.ChecklistState `json:"state"`
}

// Checklist compares what a release session plus the already released bins
// hold against the work order BOM. It is recomputed on demand and never stored.
type Checklist struct {
	JTC      string   `json:"jtc"`
	Items    []Item   `json:"items"`
	Bins     []string `json:"bins"`
	Complete bool     `json:"complete"`
}

// FromRecords collapses a bin's component records into quantities. Null
// quantities count as zero.
func FromRecords(binID string, rows []models.BinComponent) BinQuantities {
	out := BinQuantities{BinID: binID, Quantities: make(map[string]int, len(rows))}
	for _, row := range rows {
		out.Quantities[row.ComponentID] += row.Quantity()
	}
	return out
}

// Union concatenates bin groups keeping the first occurrence of each bin id,
// so a bin that is both in the session and already released counts once.
func Union(groups ...[]BinQuantities) []BinQuantities {
	seen := map[string]struct{}{}
	out := []BinQuantities{}
	for _, group := range groups {
		for _, bin := range group {
			if _, ok := seen[bin.BinID]; ok {
				continue
			}
			seen[bin.BinID] = struct{}{}
			out = append(out, bin)
		}
	}
	return out
}

// Sum totals quantities per component across bins.
func Sum(bins []BinQuantities) map[string]int {
	totals := map[string]int{}
	for _, bin := range bins {
		for componentID, qty := range bin.Quantities {
			totals[componentID] += qty
		}
	}
	return totals
}

// StateFor classifies a scanned total against the requirement.
func StateFor(scanned, required int) enums.ChecklistState {
	switch {
	case scanned >= required:
		return enums.ChecklistComplete
	case scanned > 0:
		return enums.ChecklistPartial
	default:
		return enums.ChecklistMissing
	}
}

// Build projects the checklist for bom over the session and released bins.
func Build(jtc string, bom []workorders.BOMLine, session, released []BinQuantities) Checklist {
	bins := Union(session, released)
	totals := Sum(bins)

	out := Checklist{
		JTC:      jtc,
		Items:    make([]Item, 0, len(bom)),
		Bins:     make([]string, 0, len(bins)),
		Complete: true,
	}
	for _, bin := range bins {
		out.Bins = append(out.Bins, bin.BinID)
	}
	sort.Strings(out.Bins)

	for componentID, required := range workorders.Requirements(bom) {
		scanned := totals[componentID]
		remaining := required - scanned
		if remaining < 0 {
			remaining = 0
		}
		item := Item{
			ComponentID: componentID,
			Required:    required,
			Scanned:     scanned,
			Remaining:   remaining,
			State:       StateFor(scanned, required),
		}
		if item.State != enums.ChecklistComplete {
			out.Complete = false
		}
		out.Items = append(out.Items, item)
	}
	sortItems(out.Items, bom)
	return out
}

// sortItems keeps BOM order; duplicated component lines were folded into the
// first one by Requirements.
func sortItems(items []Item, bom []workorders.BOMLine) {
	rank := make(map[string]int, len(bom))
	for i, line := range bom {
		if _, ok := rank[line.ComponentID]; !ok {
			rank[line.ComponentID] = i
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return rank[items[i].ComponentID] < rank[items[j].ComponentID]
	})
}
