package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

func reconciled(t *testing.T, id string, expected, actual int) Record {
	t.Helper()
	rec, err := Reconcile(Master{ComponentID: id, ExpectedQuantityPerBin: expected}, Input{ComponentID: id, QuantityOverride: qty(actual)}, nil, fixedNow)
	require.NoError(t, err)
	return rec
}

func TestMergePartialKeepsUnscannedComponents(t *testing.T) {
	prior := []Record{reconciled(t, "A", 10, 7), reconciled(t, "B", 5, 5)}
	fresh := []Record{reconciled(t, "A", 10, 10)}

	merged := Merge(prior, fresh, true)
	require.Len(t, merged, 2)
	assert.Equal(t, "A", merged[0].ComponentID)
	assert.Equal(t, 10, *merged[0].ActualQuantity)
	assert.Equal(t, "B", merged[1].ComponentID)
	assert.Equal(t, 5, *merged[1].ActualQuantity)
}

func TestMergeFullReplacesRecordSet(t *testing.T) {
	prior := []Record{reconciled(t, "A", 10, 7), reconciled(t, "B", 5, 5)}
	fresh := []Record{reconciled(t, "A", 10, 10)}

	merged := Merge(prior, fresh, false)
	require.Len(t, merged, 1)
	assert.Equal(t, "A", merged[0].ComponentID)
}

func TestCheckStatus(t *testing.T) {
	ok := reconciled(t, "A", 10, 10)
	short := reconciled(t, "B", 10, 7)
	excess := reconciled(t, "C", 10, 12)
	open := Unreconciled(Master{ComponentID: "D", ExpectedQuantityPerBin: 1, RequiresScale: true}, nil, fixedNow)

	tests := []struct {
		name    string
		records []Record
		failed  int
		want    enums.QuantityCheckStatus
	}{
		{name: "nothing scanned", want: enums.QuantityCheckUnchecked},
		{name: "all ok", records: []Record{ok}, want: enums.QuantityCheckReady},
		{name: "shortage", records: []Record{ok, short}, want: enums.QuantityCheckShortage},
		{name: "excess", records: []Record{ok, excess}, want: enums.QuantityCheckExcess},
		{name: "shortage wins over excess", records: []Record{excess, short}, want: enums.QuantityCheckShortage},
		{name: "unreconciled component", records: []Record{ok, open}, want: enums.QuantityCheckPending},
		{name: "failed component", records: []Record{ok}, failed: 1, want: enums.QuantityCheckPending},
		{name: "only failures", failed: 2, want: enums.QuantityCheckPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckStatus(tt.records, tt.failed))
		})
	}
}
