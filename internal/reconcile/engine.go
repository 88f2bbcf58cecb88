package reconcile

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

// Master is the slice of component master data reconciliation reads.
type Master struct {
	ComponentID            string
	ExpectedQuantityPerBin int
	UnitWeightGrams        *float64
	RequiresScale          bool
}

// ScaleReading is one weighing from a counting scale. A zero UnitWeightGrams
// means the scale did not report one.
type ScaleReading struct {
	NetKg           float64
	PieceCount      int
	UnitWeightGrams float64
	SerialNo        string
	Timestamp       time.Time
}

// Input is the raw scan of one component. KeepSavedQuantity lets a non-scale
// component without an override keep the prior record's quantity; otherwise it
// is counted at the expected per-bin quantity.
type Input struct {
	ComponentID       string
	Reading           *ScaleReading
	QuantityOverride  *int
	KeepSavedQuantity bool
}

// UnitWeightSource records where a record's unit weight came from.
type UnitWeightSource string

const (
	UnitWeightFromReading UnitWeightSource = "reading"
	UnitWeightFromBin     UnitWeightSource = "bin"
	UnitWeightFromMaster  UnitWeightSource = "master"
	UnitWeightUnknown     UnitWeightSource = ""
)

// Record is the reconciliation outcome for one component of one bin. A nil
// DiscrepancyType marks the component as scanned but not reconciled.
type Record struct {
	ComponentID      string
	RequiresScale    bool
	ActualQuantity   *int
	ActualWeightKg   *float64
	UnitWeightGrams  *float64
	UnitWeightSource UnitWeightSource
	ExpectedQuantity int
	DiscrepancyType  *enums.DiscrepancyType
	Difference       *int
	ScaleSerialNo    *string
	RecordedAt       time.Time
}

// Reconciled reports whether the record carries a discrepancy classification.
func (r Record) Reconciled() bool {
	return r.DiscrepancyType != nil
}

// Reconcile computes the record for one component. prior is the record
// previously saved for the same bin and component, if any. The same inputs
// always produce the same record apart from RecordedAt.
func Reconcile(master Master, in Input, prior *Record, now time.Time) (Record, error) {
	rec := Record{
		ComponentID:      master.ComponentID,
		RequiresScale:    master.RequiresScale,
		ExpectedQuantity: master.ExpectedQuantityPerBin,
		RecordedAt:       now,
	}

	if !master.RequiresScale {
		qty := master.ExpectedQuantityPerBin
		switch {
		case in.QuantityOverride != nil:
			qty = clampQuantity(*in.QuantityOverride)
		case in.KeepSavedQuantity && prior != nil && prior.ActualQuantity != nil:
			qty = *prior.ActualQuantity
		}
		rec.ActualQuantity = intPtr(qty)
		if unit, source := fallbackUnitWeight(master, prior); unit != nil {
			rec.UnitWeightGrams = unit
			rec.UnitWeightSource = source
			rec.ActualWeightKg = floatPtr(WeightKg(qty, *unit))
		}
		classify(&rec)
		return rec, nil
	}

	if in.Reading == nil {
		return Record{}, pkgerrors.InvalidScaleReading(master.ComponentID, "no reading supplied")
	}
	reading := *in.Reading

	unit, source := resolveUnitWeight(reading, master, prior)
	if reason := invalidReason(reading, unit); reason != "" {
		return Record{}, pkgerrors.InvalidScaleReading(master.ComponentID, reason)
	}

	qty := reading.PieceCount
	weight := RoundKg(reading.NetKg)
	if in.QuantityOverride != nil {
		qty = clampQuantity(*in.QuantityOverride)
		weight = WeightKg(qty, unit)
	}

	rec.ActualQuantity = intPtr(qty)
	rec.ActualWeightKg = floatPtr(weight)
	rec.UnitWeightGrams = floatPtr(unit)
	rec.UnitWeightSource = source
	if reading.SerialNo != "" {
		serial := reading.SerialNo
		rec.ScaleSerialNo = &serial
	}
	classify(&rec)
	return rec, nil
}

// Unreconciled builds the placeholder kept for a component whose reading could
// not be used. Quantities recorded earlier are carried over; the
// classification is cleared so the bin cannot be considered ready.
func Unreconciled(master Master, prior *Record, now time.Time) Record {
	rec := Record{
		ComponentID:      master.ComponentID,
		RequiresScale:    master.RequiresScale,
		ExpectedQuantity: master.ExpectedQuantityPerBin,
		RecordedAt:       now,
	}
	if prior != nil {
		rec.ActualQuantity = prior.ActualQuantity
		rec.ActualWeightKg = prior.ActualWeightKg
		rec.UnitWeightGrams = prior.UnitWeightGrams
		rec.ScaleSerialNo = prior.ScaleSerialNo
		if prior.UnitWeightGrams != nil {
			rec.UnitWeightSource = UnitWeightFromBin
		}
	}
	return rec
}

// Classify maps a difference onto its discrepancy type.
func Classify(difference int) enums.DiscrepancyType {
	switch {
	case difference < 0:
		return enums.DiscrepancyShortage
	case difference > 0:
		return enums.DiscrepancyExcess
	default:
		return enums.DiscrepancyOK
	}
}

// ValidateReading checks a reading against the unit weight it resolves to.
func ValidateReading(componentID string, reading ScaleReading, unitWeightGrams float64) error {
	if reason := invalidReason(reading, unitWeightGrams); reason != "" {
		return pkgerrors.InvalidScaleReading(componentID, reason)
	}
	return nil
}

// WeightKg is quantity × grams / 1000 rounded half away from zero to 3 decimals.
func WeightKg(quantity int, unitWeightGrams float64) float64 {
	kg := decimal.NewFromInt(int64(quantity)).
		Mul(decimal.NewFromFloat(unitWeightGrams)).
		Div(decimal.NewFromInt(1000)).
		Round(3)
	out, _ := kg.Float64()
	return out
}

// RoundKg rounds a scale weight to the precision stored on records.
func RoundKg(kg float64) float64 {
	out, _ := decimal.NewFromFloat(kg).Round(3).Float64()
	return out
}

// UnitWeightFromWeighing derives grams per piece from a bulk weighing.
func UnitWeightFromWeighing(weightKg float64, quantity int) (float64, bool) {
	if quantity <= 0 || !positive(weightKg) {
		return 0, false
	}
	grams := decimal.NewFromFloat(weightKg).
		Mul(decimal.NewFromInt(1000)).
		Div(decimal.NewFromInt(int64(quantity))).
		Round(4)
	out, _ := grams.Float64()
	return out, true
}

func classify(rec *Record) {
	qty := 0
	if rec.ActualQuantity != nil {
		qty = *rec.ActualQuantity
	}
	diff := qty - rec.ExpectedQuantity
	kind := Classify(diff)
	rec.Difference = &diff
	rec.DiscrepancyType = &kind
}

func resolveUnitWeight(reading ScaleReading, master Master, prior *Record) (float64, UnitWeightSource) {
	if reading.UnitWeightGrams != 0 {
		return reading.UnitWeightGrams, UnitWeightFromReading
	}
	if unit, source := fallbackUnitWeight(master, prior); unit != nil {
		return *unit, source
	}
	return 0, UnitWeightUnknown
}

// fallbackUnitWeight prefers what the bin last recorded over the master value.
func fallbackUnitWeight(master Master, prior *Record) (*float64, UnitWeightSource) {
	if prior != nil && prior.UnitWeightGrams != nil && positive(*prior.UnitWeightGrams) {
		return floatPtr(*prior.UnitWeightGrams), UnitWeightFromBin
	}
	if master.UnitWeightGrams != nil && positive(*master.UnitWeightGrams) {
		return floatPtr(*master.UnitWeightGrams), UnitWeightFromMaster
	}
	return nil, UnitWeightUnknown
}

func invalidReason(reading ScaleReading, unitWeightGrams float64) string {
	switch {
	case !positive(reading.NetKg):
		return "net weight must be positive"
	case reading.PieceCount <= 0:
		return "piece count must be positive"
	case !positive(unitWeightGrams):
		return "unit weight must be positive"
	default:
		return ""
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampQuantity(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
