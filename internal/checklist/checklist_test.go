package checklist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

func bin(id string, qty map[string]int) BinQuantities {
	return BinQuantities{BinID: id, Quantities: qty}
}

func TestBuildCrossBinSupply(t *testing.T) {
	// 2 units needing 5 of X each: one bin over-supplies, the other under-supplies.
	bom := []workorders.BOMLine{{ComponentID: "X", QuantityPerItem: 5, TotalQuantity: 10, LineNo: 1}}
	session := []BinQuantities{bin("B1", map[string]int{"X": 6}), bin("B2", map[string]int{"X": 4})}

	got := Build("J1", bom, session, nil)

	require.True(t, got.Complete)
	require.Equal(t, []Item{{ComponentID: "X", Required: 10, Scanned: 10, Remaining: 0, State: enums.ChecklistComplete}}, got.Items)
	require.Equal(t, []string{"B1", "B2"}, got.Bins)
}

func TestBuildStates(t *testing.T) {
	bom := []workorders.BOMLine{
		{ComponentID: "C1", TotalQuantity: 12, LineNo: 1},
		{ComponentID: "C2", TotalQuantity: 6, LineNo: 2},
		{ComponentID: "C3", TotalQuantity: 4, LineNo: 3},
	}
	session := []BinQuantities{bin("B1", map[string]int{"C1": 6, "C2": 2, "C9": 50})}
	released := []BinQuantities{bin("B0", map[string]int{"C1": 6})}

	got := Build("J1", bom, session, released)

	require.False(t, got.Complete)
	require.Len(t, got.Items, 3)
	require.Equal(t, enums.ChecklistComplete, got.Items[0].State)
	require.Equal(t, 12, got.Items[0].Scanned)
	require.Equal(t, enums.ChecklistPartial, got.Items[1].State)
	require.Equal(t, 4, got.Items[1].Remaining)
	require.Equal(t, enums.ChecklistMissing, got.Items[2].State)
	require.Equal(t, "C3", got.Items[2].ComponentID)
}

func TestBuildCountsBinOnce(t *testing.T) {
	bom := []workorders.BOMLine{{ComponentID: "C1", TotalQuantity: 12, LineNo: 1}}
	b1 := bin("B1", map[string]int{"C1": 6})

	got := Build("J1", bom, []BinQuantities{b1}, []BinQuantities{b1})

	require.Equal(t, 6, got.Items[0].Scanned)
	require.Equal(t, enums.ChecklistPartial, got.Items[0].State)
	require.Equal(t, []string{"B1"}, got.Bins)
}

func TestStateFor(t *testing.T) {
	require.Equal(t, enums.ChecklistComplete, StateFor(0, 0))
	require.Equal(t, enums.ChecklistComplete, StateFor(13, 12))
	require.Equal(t, enums.ChecklistPartial, StateFor(1, 12))
	require.Equal(t, enums.ChecklistMissing, StateFor(0, 12))
}

func TestSumAcrossBins(t *testing.T) {
	totals := Sum([]BinQuantities{
		bin("B1", map[string]int{"C1": 6, "C2": 1}),
		bin("B2", map[string]int{"C1": 6}),
	})
	require.Equal(t, map[string]int{"C1": 12, "C2": 1}, totals)
}

func TestWorkbookColoursRows(t *testing.T) {
	c := Build("J1", []workorders.BOMLine{
		{ComponentID: "C1", TotalQuantity: 12, LineNo: 1},
		{ComponentID: "C2", TotalQuantity: 6, LineNo: 2},
	}, []BinQuantities{bin("B1", map[string]int{"C1": 12})}, nil)

	f, err := Workbook(c)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheetName, "A4")
	require.NoError(t, err)
	require.Equal(t, "C1", v)
	v, err = f.GetCellValue(sheetName, "E5")
	require.NoError(t, err)
	require.Equal(t, "missing", v)
	v, err = f.GetCellValue(sheetName, "B1")
	require.NoError(t, err)
	require.Equal(t, "J1", v)
}

type failingSheet struct {
	styleErr error
	rows     int
}

func (s *failingSheet) SetSheetRow(string, string, any) error {
	s.rows++
	return nil
}

func (s *failingSheet) SetCellStyle(string, string, string, int) error { return s.styleErr }

func (s *failingSheet) SetColWidth(string, string, string, float64) error { return nil }

func TestWriteSheetReportsEveryFailedWrite(t *testing.T) {
	c := Build("J1", []workorders.BOMLine{
		{ComponentID: "C1", TotalQuantity: 12, LineNo: 1},
		{ComponentID: "C2", TotalQuantity: 6, LineNo: 2},
	}, []BinQuantities{bin("B1", map[string]int{"C1": 12})}, nil)
	styles := map[enums.ChecklistState]int{enums.ChecklistComplete: 2, enums.ChecklistMissing: 3}
	sheet := &failingSheet{styleErr: errors.New("invalid style id")}

	err := writeSheet(sheet, c, 1, styles)
	require.Error(t, err)
	// header row plus one per coloured item
	require.Len(t, multierr.Errors(err), 3)
	require.Equal(t, 6, sheet.rows)
}
