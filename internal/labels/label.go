// Package labels builds work order labels and manages the print jobs queued
// for them.
package labels

import (
	"strings"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

const dateIssueLayout = "2006-01-02"

// LabelData is the payload a print station renders onto a bin label.
type LabelData struct {
	WONumber     string `json:"woNumber"`
	PartName     string `json:"partName"`
	Qty          int    `json:"qty"`
	Remarks      string `json:"remarks"`
	DateIssue    string `json:"dateIssue"`
	CONumber     string `json:"coNumber"`
	JTCBarcodeID string `json:"jtc_barcodeId"`
	BinID        string `json:"binId"`
}

// Build derives the label of bin from the work order it is assigned to.
// Missing optional work order fields fall back to the order number, part
// number and creation date.
func Build(wo models.WorkOrder, bin models.Bin) LabelData {
	label := LabelData{
		WONumber:     wo.JTCID,
		PartName:     firstNonEmpty(wo.PartName, wo.PartNumber),
		Qty:          wo.QuantityNeeded,
		Remarks:      firstNonEmpty(wo.Remarks, wo.OrderNumber),
		CONumber:     wo.CONumber,
		JTCBarcodeID: wo.BarcodeID,
		BinID:        bin.BinID,
	}
	switch {
	case wo.DateIssue != nil:
		label.DateIssue = wo.DateIssue.UTC().Format(dateIssueLayout)
	case !wo.CreatedAt.IsZero():
		label.DateIssue = wo.CreatedAt.UTC().Format(dateIssueLayout)
	}
	return label
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
