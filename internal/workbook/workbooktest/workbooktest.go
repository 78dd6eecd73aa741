// Package workbooktest builds workbook fixtures for tests.
package workbooktest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Write saves rows into dir/name on a sheet called sheet and returns the
// path. Nil values leave the cell unset.
func Write(t testing.TB, dir, name, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// HoleLog returns the rows of a minimal hole log: a title row, the
// provenance value at A2, the header pair, the data rows and the
// Sub-Totals terminator.
func HoleLog(provenance string, header []any, data ...[]any) [][]any {
	rows := [][]any{
		{"Daily Drilling Report"},
		{provenance},
		header,
		make([]any, len(header)),
	}
	rows = append(rows, data...)
	return append(rows, []any{"Sub-Totals"})
}
