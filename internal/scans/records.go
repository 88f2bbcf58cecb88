package scans

import (
	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
)

func fromRow(row models.BinComponent, requiresScale bool) reconcile.Record {
	rec := reconcile.Record{
		ComponentID:      row.ComponentID,
		RequiresScale:    requiresScale,
		ActualQuantity:   row.ActualQuantity,
		ActualWeightKg:   row.ActualWeightKg,
		UnitWeightGrams:  row.UnitWeightGrams,
		ExpectedQuantity: row.ExpectedQuantity,
		DiscrepancyType:  row.DiscrepancyType,
		Difference:       row.Difference,
		ScaleSerialNo:    row.ScaleSerialNo,
		RecordedAt:       row.RecordedAt,
	}
	if row.UnitWeightGrams != nil {
		rec.UnitWeightSource = reconcile.UnitWeightFromBin
	}
	return rec
}

func toRow(binID string, rec reconcile.Record) models.BinComponent {
	return models.BinComponent{
		BinID:            binID,
		ComponentID:      rec.ComponentID,
		ActualQuantity:   rec.ActualQuantity,
		ActualWeightKg:   rec.ActualWeightKg,
		UnitWeightGrams:  rec.UnitWeightGrams,
		ExpectedQuantity: rec.ExpectedQuantity,
		DiscrepancyType:  rec.DiscrepancyType,
		Difference:       rec.Difference,
		ScaleSerialNo:    rec.ScaleSerialNo,
		RecordedAt:       rec.RecordedAt,
	}
}

func toRows(binID string, records []reconcile.Record) []models.BinComponent {
	out := make([]models.BinComponent, 0, len(records))
	for _, rec := range records {
		out = append(out, toRow(binID, rec))
	}
	return out
}

func outcomes(records []reconcile.Record) []payloads.ComponentOutcome {
	out := make([]payloads.ComponentOutcome, 0, len(records))
	for _, rec := range records {
		out = append(out, payloads.ComponentOutcome{
			ComponentID:      rec.ComponentID,
			ActualQuantity:   rec.ActualQuantity,
			ExpectedQuantity: rec.ExpectedQuantity,
			DiscrepancyType:  rec.DiscrepancyType,
			Difference:       rec.Difference,
		})
	}
	return out
}
