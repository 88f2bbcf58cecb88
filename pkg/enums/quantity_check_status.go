package enums

import "fmt"

// QuantityCheckStatus summarises the reconciliation outcome of a whole bin.
type QuantityCheckStatus string

const (
	QuantityCheckUnchecked QuantityCheckStatus = "unchecked"
	QuantityCheckReady     QuantityCheckStatus = "Ready"
	QuantityCheckShortage  QuantityCheckStatus = "Shortage"
	QuantityCheckExcess    QuantityCheckStatus = "Excess"
	QuantityCheckPending   QuantityCheckStatus = "Pending"
)

var validQuantityCheckStatuses = []QuantityCheckStatus{
	QuantityCheckUnchecked,
	QuantityCheckReady,
	QuantityCheckShortage,
	QuantityCheckExcess,
	QuantityCheckPending,
}

func (q QuantityCheckStatus) String() string {
	return string(q)
}

func (q QuantityCheckStatus) IsValid() bool {
	for _, candidate := range validQuantityCheckStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsPartialUpdate reports whether a re-save of the bin merges into the
// previous component records instead of replacing them.
func (q QuantityCheckStatus) IsPartialUpdate() bool {
	switch q {
	case QuantityCheckShortage, QuantityCheckExcess, QuantityCheckPending:
		return true
	default:
		return false
	}
}

// KeepsSavedQuantities reports whether a rescan starts from the quantities
// saved on the bin's records rather than the expected per-bin quantity.
func (q QuantityCheckStatus) KeepsSavedQuantities() bool {
	return q == QuantityCheckReady || q.IsPartialUpdate()
}

// IsDiscrepant reports Shortage or Excess.
func (q QuantityCheckStatus) IsDiscrepant() bool {
	return q == QuantityCheckShortage || q == QuantityCheckExcess
}

func ParseQuantityCheckStatus(value string) (QuantityCheckStatus, error) {
	for _, candidate := range validQuantityCheckStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quantity check status %q", value)
}

// DiscrepancyType classifies one component of one bin.
type DiscrepancyType string

const (
	DiscrepancyOK       DiscrepancyType = "OK"
	DiscrepancyShortage DiscrepancyType = "Shortage"
	DiscrepancyExcess   DiscrepancyType = "Excess"
)

var validDiscrepancyTypes = []DiscrepancyType{
	DiscrepancyOK,
	DiscrepancyShortage,
	DiscrepancyExcess,
}

func (d DiscrepancyType) String() string {
	return string(d)
}

func (d DiscrepancyType) IsValid() bool {
	for _, candidate := range validDiscrepancyTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// Sign returns the sign a difference must carry for this classification.
func (d DiscrepancyType) Sign() int {
	switch d {
	case DiscrepancyShortage:
		return -1
	case DiscrepancyExcess:
		return 1
	default:
		return 0
	}
}

func ParseDiscrepancyType(value string) (DiscrepancyType, error) {
	for _, candidate := range validDiscrepancyTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discrepancy type %q", value)
}
