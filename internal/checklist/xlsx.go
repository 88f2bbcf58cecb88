package checklist

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

const sheetName = "Checklist"

var workbookHeaders = []string{"Component", "Required", "Scanned", "Remaining", "State"}

var stateFills = map[enums.ChecklistState]string{
	enums.ChecklistComplete: "#C6EFCE",
	enums.ChecklistPartial:  "#FFEB9C",
	enums.ChecklistMissing:  "#FFC7CE",
}

// Workbook renders the checklist as a single-sheet spreadsheet. Rows are
// filled green, yellow or red by state; the bins counted are listed below.
func Workbook(c Checklist) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	stateStyles := make(map[enums.ChecklistState]int, len(stateFills))
	for state, color := range stateFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("state style: %w", err)
		}
		stateStyles[state] = id
	}

	if err := writeSheet(f, c, headerStyle, stateStyles); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write checklist sheet: %w", err)
	}
	return f, nil
}

// sheetWriter is the part of *excelize.File the sheet layout writes through.
type sheetWriter interface {
	SetSheetRow(sheet, cell string, slice any) error
	SetCellStyle(sheet, topLeft, bottomRight string, styleID int) error
	SetColWidth(sheet, startCol, endCol string, width float64) error
}

// writeSheet lays out the checklist and reports every cell it failed to write.
func writeSheet(w sheetWriter, c Checklist, headerStyle int, stateStyles map[enums.ChecklistState]int) error {
	var err error
	err = multierr.Append(err, w.SetSheetRow(sheetName, "A1", &[]any{"JTC", c.JTC}))

	headers := make([]any, 0, len(workbookHeaders))
	for _, h := range workbookHeaders {
		headers = append(headers, h)
	}
	err = multierr.Append(err, w.SetSheetRow(sheetName, "A3", &headers))
	err = multierr.Append(err, w.SetCellStyle(sheetName, "A3", "E3", headerStyle))

	for i, item := range c.Items {
		row := i + 4
		first, last := fmt.Sprintf("A%d", row), fmt.Sprintf("E%d", row)
		err = multierr.Append(err, w.SetSheetRow(sheetName, first, &[]any{
			item.ComponentID, item.Required, item.Scanned, item.Remaining, item.State.String(),
		}))
		if style, ok := stateStyles[item.State]; ok {
			err = multierr.Append(err, w.SetCellStyle(sheetName, first, last, style))
		}
	}

	binsRow := len(c.Items) + 5
	err = multierr.Append(err, w.SetSheetRow(sheetName, fmt.Sprintf("A%d", binsRow), &[]any{"Bins"}))
	for i, binID := range c.Bins {
		err = multierr.Append(err, w.SetSheetRow(sheetName, fmt.Sprintf("B%d", binsRow+i), &[]any{binID}))
	}

	for i, width := range []float64{18, 10, 10, 10, 12} {
		col := string(rune('A' + i))
		err = multierr.Append(err, w.SetColWidth(sheetName, col, col, width))
	}
	return err
}
