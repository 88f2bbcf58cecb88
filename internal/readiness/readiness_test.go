package readiness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

func ptr[T any](v T) *T { return &v }

func reconciled(id string, scale bool, kind enums.DiscrepancyType) reconcile.Record {
	return reconcile.Record{
		ComponentID:     id,
		RequiresScale:   scale,
		ActualQuantity:  ptr(10),
		ActualWeightKg:  ptr(0.025),
		UnitWeightGrams: ptr(2.5),
		DiscrepancyType: ptr(kind),
		Difference:      ptr(0),
		RecordedAt:      time.Now(),
	}
}

func TestEvaluateBinToleratesDiscrepancies(t *testing.T) {
	verdict := EvaluateBin([]reconcile.Record{
		reconciled("C1", true, enums.DiscrepancyOK),
		reconciled("C2", false, enums.DiscrepancyShortage),
		reconciled("C3", true, enums.DiscrepancyExcess),
	})
	assert.True(t, verdict.Ready)
	assert.Empty(t, verdict.Unreconciled)
}

func TestEvaluateBinReportsUnreconciled(t *testing.T) {
	missingUnit := reconciled("C2", true, enums.DiscrepancyOK)
	missingUnit.UnitWeightGrams = nil
	noWeight := reconciled("C4", true, enums.DiscrepancyOK)
	noWeight.ActualWeightKg = nil
	nonScaleWithoutUnit := reconciled("C5", false, enums.DiscrepancyOK)
	nonScaleWithoutUnit.UnitWeightGrams = nil

	verdict := EvaluateBin([]reconcile.Record{
		{ComponentID: "C3", RequiresScale: true},
		missingUnit,
		reconciled("C1", true, enums.DiscrepancyOK),
		noWeight,
		nonScaleWithoutUnit,
	})
	assert.False(t, verdict.Ready)
	assert.Equal(t, []string{"C2", "C3", "C4"}, verdict.Unreconciled)
}

func TestEvaluateBinEmptyIsNotReady(t *testing.T) {
	assert.False(t, EvaluateBin(nil).Ready)
}

func TestEvaluateReleaseCrossBin(t *testing.T) {
	// J1 needs 3 units at 4 of C1 each; two bins of 6 cover the 12 together.
	bom := []workorders.BOMLine{{ComponentID: "C1", QuantityPerItem: 4, TotalQuantity: 12, LineNo: 1}}
	session := []checklist.BinQuantities{
		{BinID: "B1", Quantities: map[string]int{"C1": 6}},
		{BinID: "B2", Quantities: map[string]int{"C1": 6}},
	}

	verdicts := EvaluateRelease(bom, session, nil)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.True(t, v.Ready, v.BinID)
		assert.Equal(t, []Coverage{{ComponentID: "C1", Required: 12, Cumulative: 12, Met: true}}, v.Components)
	}

	verdicts = EvaluateRelease(bom, session[:1], nil)
	assert.False(t, verdicts[0].Ready)
	assert.Equal(t, []string{"C1"}, verdicts[0].Unmet)
}

func TestEvaluateReleaseCountsReleasedBinsOnce(t *testing.T) {
	bom := []workorders.BOMLine{{ComponentID: "X", TotalQuantity: 10, LineNo: 1}}
	b1 := checklist.BinQuantities{BinID: "B1", Quantities: map[string]int{"X": 6}}
	released := []checklist.BinQuantities{b1, {BinID: "B0", Quantities: map[string]int{"X": 4}}}

	verdicts := EvaluateRelease(bom, []checklist.BinQuantities{b1}, released)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].Ready)
	assert.Equal(t, 10, verdicts[0].Components[0].Cumulative)
}

func TestEvaluateReleaseIgnoresOffBOMComponents(t *testing.T) {
	bom := []workorders.BOMLine{{ComponentID: "C1", TotalQuantity: 4, LineNo: 1}}
	session := []checklist.BinQuantities{
		{BinID: "B1", Quantities: map[string]int{"C1": 4, "C9": 0}},
		{BinID: "B2", Quantities: map[string]int{"C9": 20}},
	}

	verdicts := EvaluateRelease(bom, session, nil)
	assert.True(t, verdicts[0].Ready)
	assert.Len(t, verdicts[0].Components, 1)
	assert.False(t, verdicts[1].Ready)
	assert.Equal(t, reasonNoBOMComponents, verdicts[1].Reason)
}
