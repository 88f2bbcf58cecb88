package bins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

func binWith(status enums.BinStatus, jtc string, qcs enums.QuantityCheckStatus) models.Bin {
	bin := models.Bin{BinID: "B1", Status: status, QuantityCheckStatus: qcs}
	if jtc != "" {
		bin.JTC = &jtc
	}
	return bin
}

func TestAfterScan(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		bin    models.Bin
		qcs    enums.QuantityCheckStatus
		want   enums.BinStatus
	}{
		{"shortage with jtc", Policy{}, binWith(enums.BinStatusReadyForRelease, "J1", enums.QuantityCheckReady), enums.QuantityCheckShortage, enums.BinStatusPendingRefill},
		{"excess without jtc", Policy{}, binWith(enums.BinStatusPendingJTC, "", ""), enums.QuantityCheckExcess, enums.BinStatusPendingRefill},
		{"discrepant without jtc under policy", Policy{AllowDiscrepantWithoutJTC: true}, binWith(enums.BinStatusPendingJTC, "", ""), enums.QuantityCheckShortage, enums.BinStatusPendingJTC},
		{"policy ignored when jtc is set", Policy{AllowDiscrepantWithoutJTC: true}, binWith(enums.BinStatusPendingJTC, "J1", ""), enums.QuantityCheckShortage, enums.BinStatusPendingRefill},
		{"ready with jtc", Policy{}, binWith(enums.BinStatusPendingRefill, "J1", enums.QuantityCheckShortage), enums.QuantityCheckReady, enums.BinStatusReadyForRelease},
		{"ready without jtc", Policy{}, binWith(enums.BinStatusPendingRefill, "", enums.QuantityCheckShortage), enums.QuantityCheckReady, enums.BinStatusPendingJTC},
		{"pending drops ready bin", Policy{}, binWith(enums.BinStatusReadyForRelease, "J1", enums.QuantityCheckReady), enums.QuantityCheckPending, enums.BinStatusPendingJTC},
		{"pending keeps refill", Policy{}, binWith(enums.BinStatusPendingRefill, "", enums.QuantityCheckShortage), enums.QuantityCheckPending, enums.BinStatusPendingRefill},
		{"returned bin re-enters", Policy{}, binWith(enums.BinStatusReturnedToWarehouse, "", enums.QuantityCheckUnchecked), enums.QuantityCheckPending, enums.BinStatusPendingJTC},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewLifecycle(tc.policy).AfterScan(tc.bin, tc.qcs)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanScanRejectsOutOfFlowBins(t *testing.T) {
	l := NewLifecycle(Policy{})
	for _, status := range []enums.BinStatus{enums.BinStatusReleased, enums.BinStatusDamaged, enums.BinStatusMissing} {
		err := l.CanScan(binWith(status, "", ""))
		require.Error(t, err, status)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeIllegalTransition, typed.Code())
		details, ok := typed.Details().(pkgerrors.TransitionDetails)
		require.True(t, ok)
		assert.Equal(t, "B1", details.BinID)
		assert.Equal(t, string(status), details.CurrentStatus)
	}
	assert.NoError(t, l.CanScan(binWith(enums.BinStatusPendingRefill, "", "")))
}

func TestCanAssign(t *testing.T) {
	l := NewLifecycle(Policy{})

	assert.NoError(t, l.CanAssign(binWith(enums.BinStatusPendingJTC, "", enums.QuantityCheckReady), "J1", false))
	assert.NoError(t, l.CanAssign(binWith(enums.BinStatusReadyForRelease, "J1", enums.QuantityCheckReady), "J1", false))

	err := l.CanAssign(binWith(enums.BinStatusPendingJTC, "", enums.QuantityCheckShortage), "J1", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition))

	err = l.CanAssign(binWith(enums.BinStatusPendingRefill, "", enums.QuantityCheckReady), "J1", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition))

	other := binWith(enums.BinStatusReadyForRelease, "J2", enums.QuantityCheckReady)
	err = l.CanAssign(other, "J1", false)
	require.Error(t, err)
	assert.Contains(t, pkgerrors.As(err).Message(), "confirm the reassignment")
	assert.NoError(t, l.CanAssign(other, "J1", true))
}

func TestCanReleaseNeedsMatchingJTC(t *testing.T) {
	l := NewLifecycle(Policy{})
	assert.NoError(t, l.CanRelease(binWith(enums.BinStatusReadyForRelease, "J1", enums.QuantityCheckReady), "J1"))

	err := l.CanRelease(binWith(enums.BinStatusReadyForRelease, "J2", enums.QuantityCheckReady), "J1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition))

	err = l.CanRelease(binWith(enums.BinStatusPendingJTC, "J1", enums.QuantityCheckReady), "J1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in Ready for Release")
}

func TestCanSetStatusPolicy(t *testing.T) {
	released := binWith(enums.BinStatusReleased, "J1", enums.QuantityCheckReady)

	strict := NewLifecycle(Policy{})
	assert.True(t, pkgerrors.IsCode(strict.CanSetStatus(released, enums.BinStatusDamaged), pkgerrors.CodeIllegalTransition))
	assert.NoError(t, strict.CanSetStatus(binWith(enums.BinStatusPendingRefill, "", ""), enums.BinStatusMissing))

	lenient := NewLifecycle(Policy{AllowOverrideReleased: true})
	assert.NoError(t, lenient.CanSetStatus(released, enums.BinStatusMissing))

	assert.NoError(t, strict.CanSetStatus(binWith(enums.BinStatusDamaged, "", ""), enums.BinStatusPendingJTC))
	assert.Error(t, strict.CanSetStatus(binWith(enums.BinStatusPendingRefill, "", ""), enums.BinStatusPendingJTC))
	assert.Error(t, strict.CanSetStatus(binWith(enums.BinStatusPendingJTC, "", ""), enums.BinStatusReleased))
}

func TestCanReturn(t *testing.T) {
	staged := binWith(enums.BinStatusReadyForRelease, "J1", enums.QuantityCheckReady)

	strict := NewLifecycle(Policy{})
	assert.NoError(t, strict.CanReturn(binWith(enums.BinStatusReleased, "J1", enums.QuantityCheckReady)))
	assert.True(t, pkgerrors.IsCode(strict.CanReturn(staged), pkgerrors.CodeIllegalTransition))
	assert.Error(t, strict.CanReturn(binWith(enums.BinStatusPendingJTC, "", "")))

	lenient := NewLifecycle(Policy{AllowReturnStaged: true})
	assert.NoError(t, lenient.CanReturn(staged))
	assert.Error(t, lenient.CanReturn(binWith(enums.BinStatusPendingRefill, "J1", enums.QuantityCheckShortage)))
}

func TestCanRelink(t *testing.T) {
	l := NewLifecycle(Policy{})
	pending := binWith(enums.BinStatusPendingRefill, "J1", enums.QuantityCheckShortage)

	assert.NoError(t, l.CanRelink(pending, "J1", false))
	assert.NoError(t, l.CanRelink(binWith(enums.BinStatusPendingJTC, "", ""), "J2", false))
	assert.True(t, pkgerrors.IsCode(l.CanRelink(pending, "J2", false), pkgerrors.CodeIllegalTransition))
	assert.NoError(t, l.CanRelink(pending, "J2", true))
}
