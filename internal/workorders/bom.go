package workorders

import (
	"sort"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

// BOMLine is a resolved bill-of-materials line for one work order.
type BOMLine struct {
	ComponentID     string `json:"componentId"`
	QuantityPerItem int    `json:"quantityPerItem"`
	TotalQuantity   int    `json:"totalQuantity"`
	LineNo          int    `json:"lineNo"`
}

// ResolveLines multiplies every line by the quantity needed, keeping BOM order.
func ResolveLines(lines []models.BomLine, quantityNeeded int) []BOMLine {
	out := make([]BOMLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, BOMLine{
			ComponentID:     line.ComponentID,
			QuantityPerItem: line.QuantityPerItem,
			TotalQuantity:   line.QuantityPerItem * quantityNeeded,
			LineNo:          line.LineNo,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LineNo != out[j].LineNo {
			return out[i].LineNo < out[j].LineNo
		}
		return out[i].ComponentID < out[j].ComponentID
	})
	return out
}

// Requirements indexes total quantities by component id.
func Requirements(lines []BOMLine) map[string]int {
	out := make(map[string]int, len(lines))
	for _, line := range lines {
		out[line.ComponentID] += line.TotalQuantity
	}
	return out
}
