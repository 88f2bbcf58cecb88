package reconcile

import "math"

// calibrationTolerance is the smallest unit weight change, in grams, treated
// as a different value.
const calibrationTolerance = 0.0001

// CalibrationUpdate is a pending change to a component master unit weight.
type CalibrationUpdate struct {
	ComponentID string
	Previous    *float64
	Grams       float64
}

// CalibrationCandidate decides whether a record should recalibrate the master.
// Only unit weights reported by a valid scale reading qualify, and only when
// the master has no value yet or holds a different one.
func CalibrationCandidate(master Master, rec Record) (CalibrationUpdate, bool) {
	if rec.UnitWeightSource != UnitWeightFromReading || !rec.Reconciled() {
		return CalibrationUpdate{}, false
	}
	if rec.UnitWeightGrams == nil || !positive(*rec.UnitWeightGrams) {
		return CalibrationUpdate{}, false
	}
	return CalibrationFor(master, *rec.UnitWeightGrams)
}

// CalibrationFromWeighing is the candidate produced by a bulk weighing at the
// operator station.
func CalibrationFromWeighing(master Master, weightKg float64, quantity int) (CalibrationUpdate, bool) {
	grams, ok := UnitWeightFromWeighing(weightKg, quantity)
	if !ok {
		return CalibrationUpdate{}, false
	}
	return CalibrationFor(master, grams)
}

// CalibrationFor compares grams with the master value. Callers holding a
// freshly locked master use it to re-check a candidate before writing.
func CalibrationFor(master Master, grams float64) (CalibrationUpdate, bool) {
	if !positive(grams) {
		return CalibrationUpdate{}, false
	}
	if master.UnitWeightGrams != nil && math.Abs(*master.UnitWeightGrams-grams) < calibrationTolerance {
		return CalibrationUpdate{}, false
	}
	return CalibrationUpdate{
		ComponentID: master.ComponentID,
		Previous:    master.UnitWeightGrams,
		Grams:       grams,
	}, true
}
