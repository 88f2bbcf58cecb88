package labels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

func TestBuildUsesWorkOrderFields(t *testing.T) {
	issued := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	wo := models.WorkOrder{
		JTCID:          "J1",
		BarcodeID:      "*JJ1",
		OrderNumber:    "WO-100",
		QuantityNeeded: 3,
		PartNumber:     "PN-1",
		PartName:       "Hinge assembly",
		CONumber:       "CO-9",
		Remarks:        "rush",
		DateIssue:      &issued,
	}

	label := Build(wo, models.Bin{BinID: "B1"})
	assert.Equal(t, LabelData{
		WONumber:     "J1",
		PartName:     "Hinge assembly",
		Qty:          3,
		Remarks:      "rush",
		DateIssue:    "2026-02-14",
		CONumber:     "CO-9",
		JTCBarcodeID: "*JJ1",
		BinID:        "B1",
	}, label)
}

func TestBuildFallsBackToOrderNumberAndCreation(t *testing.T) {
	wo := models.WorkOrder{
		JTCID:          "J2",
		OrderNumber:    "WO-200",
		QuantityNeeded: 1,
		PartNumber:     "PN-2",
		CreatedAt:      time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC),
	}

	label := Build(wo, models.Bin{BinID: "B7"})
	assert.Equal(t, "PN-2", label.PartName)
	assert.Equal(t, "WO-200", label.Remarks)
	assert.Equal(t, "2026-01-05", label.DateIssue)
	assert.Empty(t, label.JTCBarcodeID)
}
