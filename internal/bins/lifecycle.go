package bins

import (
	"fmt"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

// Policy holds the lifecycle decisions that are configured per site.
type Policy struct {
	// AllowDiscrepantWithoutJTC parks a Shortage/Excess bin that has no work
	// order in Pending JTC instead of Pending Refill.
	AllowDiscrepantWithoutJTC bool
	// AllowOverrideReleased lets operators mark a Released bin Damaged or Missing.
	AllowOverrideReleased bool
	// AllowReturnStaged lets a Ready for Release bin that never left the
	// warehouse be returned like a Released one.
	AllowReturnStaged bool
}

// Lifecycle holds the transition guards. Guards never mutate the bin; a
// refused transition is an ILLEGAL_TRANSITION error naming the unmet condition.
type Lifecycle struct {
	policy Policy
}

func NewLifecycle(policy Policy) Lifecycle {
	return Lifecycle{policy: policy}
}

func (l Lifecycle) Policy() Policy {
	return l.policy
}

// CanScan rejects scans of bins that are out of the warehouse flow.
func (l Lifecycle) CanScan(bin models.Bin) error {
	switch bin.Status {
	case enums.BinStatusReleased:
		return refuse(bin, "", "bin is in production, return it to the warehouse before scanning")
	case enums.BinStatusDamaged, enums.BinStatusMissing:
		return refuse(bin, "", "bin is flagged "+string(bin.Status)+", recover it before scanning")
	}
	return nil
}

// AfterScan returns the status a bin lands in once its quantity check status
// has been recomputed. bin carries the pre-scan status and the JTC the bin
// holds after the scan.
func (l Lifecycle) AfterScan(bin models.Bin, qcs enums.QuantityCheckStatus) enums.BinStatus {
	hasJTC := bin.JTCValue() != ""
	switch {
	case qcs.IsDiscrepant():
		if !hasJTC && l.policy.AllowDiscrepantWithoutJTC {
			return enums.BinStatusPendingJTC
		}
		return enums.BinStatusPendingRefill
	case qcs == enums.QuantityCheckReady:
		if hasJTC {
			return enums.BinStatusReadyForRelease
		}
		return enums.BinStatusPendingJTC
	}

	// Pending or unchecked: the bin cannot stay ready and a returned bin
	// re-enters the flow once it has been scanned again.
	switch bin.Status {
	case enums.BinStatusReadyForRelease, enums.BinStatusReturnedToWarehouse:
		return enums.BinStatusPendingJTC
	}
	return bin.Status
}

// CanAssign checks a bin may be linked to jtc. A bin linked to another work
// order needs confirmReassign.
func (l Lifecycle) CanAssign(bin models.Bin, jtc string, confirmReassign bool) error {
	target := string(enums.BinStatusReadyForRelease)
	switch bin.Status {
	case enums.BinStatusPendingJTC, enums.BinStatusReadyForRelease:
	default:
		return refuse(bin, target, "only Pending JTC or Ready for Release bins can be assigned")
	}
	if bin.QuantityCheckStatus != enums.QuantityCheckReady {
		return refuse(bin, target, fmt.Sprintf("quantity check is %s, every component must be reconciled without discrepancy", displayQCS(bin.QuantityCheckStatus)))
	}
	return l.CanRelink(bin, jtc, confirmReassign)
}

// CanRelink refuses to move a bin off the work order it holds unless the
// operator confirmed the reassignment.
func (l Lifecycle) CanRelink(bin models.Bin, jtc string, confirmReassign bool) error {
	if current := bin.JTCValue(); current != "" && current != jtc && !confirmReassign {
		return refuse(bin, string(enums.BinStatusReadyForRelease), fmt.Sprintf("bin is assigned to %s, confirm the reassignment to %s", current, jtc))
	}
	return nil
}

// CanRelease checks the bin is ready for jtc. Release-time readiness across
// sibling bins is checked separately.
func (l Lifecycle) CanRelease(bin models.Bin, jtc string) error {
	target := string(enums.BinStatusReleased)
	if bin.Status != enums.BinStatusReadyForRelease {
		return refuse(bin, target, "bin not in Ready for Release status, cannot release")
	}
	if bin.JTCValue() != jtc {
		return refuse(bin, target, fmt.Sprintf("bin is assigned to %s, not %s", bin.JTCValue(), jtc))
	}
	return nil
}

// CanReturn accepts bins in production, and under policy bins that were
// staged for release but never left.
func (l Lifecycle) CanReturn(bin models.Bin) error {
	target := string(enums.BinStatusReturnedToWarehouse)
	switch bin.Status {
	case enums.BinStatusReleased:
		return nil
	case enums.BinStatusReadyForRelease:
		if l.policy.AllowReturnStaged {
			return nil
		}
		return refuse(bin, target, "bin has not been released, only Released bins can be returned")
	}
	return refuse(bin, target, "only Released bins can be returned")
}

// CanSetStatus guards manual overrides: Damaged or Missing from any state
// (Released only under policy), and Pending JTC to recover a flagged bin.
func (l Lifecycle) CanSetStatus(bin models.Bin, target enums.BinStatus) error {
	switch target {
	case enums.BinStatusDamaged, enums.BinStatusMissing:
		if bin.Status == enums.BinStatusReleased && !l.policy.AllowOverrideReleased {
			return refuse(bin, string(target), "bin is in production, return it before flagging it "+string(target))
		}
		return nil
	case enums.BinStatusPendingJTC:
		if !bin.Status.IsManualOverride() {
			return refuse(bin, string(target), "only Damaged or Missing bins can be recovered")
		}
		return nil
	}
	return refuse(bin, string(target), "status can only be set manually to Damaged, Missing or Pending JTC")
}

func refuse(bin models.Bin, target, condition string) error {
	return pkgerrors.IllegalTransition(pkgerrors.TransitionDetails{
		BinID:         bin.BinID,
		CurrentStatus: string(bin.Status),
		Target:        target,
		Condition:     condition,
	})
}

func displayQCS(q enums.QuantityCheckStatus) string {
	if q == "" {
		return string(enums.QuantityCheckUnchecked)
	}
	return string(q)
}
