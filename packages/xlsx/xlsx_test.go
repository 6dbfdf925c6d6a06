package xlsx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"github.com/xuri/excelize/v2"
)

func raws(snap spreadsheet.SheetSnapshot) map[string]string {
	result := make(map[string]string)
	for _, cell := range snap.Cells {
		if cell.Raw != "" {
			result[cell.Address] = cell.Raw
		}
	}
	return result
}

func TestExportImportRoundTrip(t *testing.T) {
	wb := spreadsheet.NewWorkbook("Quarterly")
	require.NoError(t, wb.Submit("A1", "10"))
	require.NoError(t, wb.Submit("A2", "=A1*2"))
	require.NoError(t, wb.Submit("B1", "hello"))
	require.NoError(t, wb.Submit("C1", "3.5"))
	require.NoError(t, wb.Submit("C2", `=IF(A2>15,"big","small")`))
	info, err := wb.AddSheet("Second")
	require.NoError(t, err)
	require.NoError(t, wb.SubmitTo(info.ID, "B2", "=SUM(1,2,3)"))

	path := filepath.Join(t.TempDir(), "quarterly.xlsx")
	require.NoError(t, Export(wb.Snapshot(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Second"}, f.GetSheetList())
	formula, err := f.GetCellFormula("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A1*2", formula)
	require.NoError(t, f.Close())

	result, err := Read(path)
	require.NoError(t, err)
	assert.Zero(t, result.Skipped)

	snap := result.Snapshot
	assert.Equal(t, "quarterly", snap.Name)
	require.Len(t, snap.Sheets, 2)
	assert.Equal(t, map[string]string{
		"A1": "10",
		"A2": "=A1*2",
		"B1": "hello",
		"C1": "3.5",
		"C2": `=IF(A2>15,"big","small")`,
	}, raws(snap.Sheets[0]))
	assert.Equal(t, "=SUM(1,2,3)", raws(snap.Sheets[1])["B2"])

	imported, err := spreadsheet.FromSnapshot(snap)
	require.NoError(t, err)
	value, err := imported.Value("A2")
	require.NoError(t, err)
	assert.Equal(t, 20.0, value)
	value, err = imported.Value("C2")
	require.NoError(t, err)
	assert.Equal(t, "big", value)
}

func TestExportFormats(t *testing.T) {
	wb := spreadsheet.NewWorkbook("Styled")
	require.NoError(t, wb.Submit("A1", "Title"))
	format := spreadsheet.CellFormat{
		Bold:       true,
		Underline:  true,
		FontSize:   16,
		Background: "#e8f5e8",
		Align:      spreadsheet.AlignCenter,
	}
	require.NoError(t, wb.SetFormat("A1", format))

	path := filepath.Join(t.TempDir(), "styled.xlsx")
	require.NoError(t, Export(wb.Snapshot(), path))

	snap, err := Import(path)
	require.NoError(t, err)
	require.Len(t, snap.Sheets[0].Cells, 1)
	cell := snap.Sheets[0].Cells[0]
	require.NotNil(t, cell.Format)
	assert.True(t, cell.Format.Bold)
	assert.True(t, cell.Format.Underline)
	assert.False(t, cell.Format.Italic)
	assert.Equal(t, 16, cell.Format.FontSize)
	assert.Equal(t, "#e8f5e8", cell.Format.Background)
	assert.Equal(t, spreadsheet.AlignCenter, cell.Format.Align)
}

func TestExportTemplate(t *testing.T) {
	wb := spreadsheet.NewWorkbook("Plans")
	_, err := wb.ApplyTemplate(spreadsheet.BusinessTemplate())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plans.xlsx")
	require.NoError(t, Export(wb.Snapshot(), path))

	snap, err := Import(path)
	require.NoError(t, err)
	require.Len(t, snap.Sheets, 2)
	assert.Equal(t, "Business", snap.Sheets[1].Name)
	assert.Equal(t, snap.Sheets[1].ID, snap.ActiveSheetID)
}

func TestImportSkipsWideColumns(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "Z1", 2))
	require.NoError(t, f.SetCellValue("Sheet1", "AA1", 3))
	require.NoError(t, f.SetCellValue("Sheet1", "AB2", "wide"))
	path := filepath.Join(t.TempDir(), "wide.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	result, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, map[string]string{"A1": "1", "Z1": "2"}, raws(result.Snapshot.Sheets[0]))
}

func TestImportMissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Equal(t, spreadsheet.InvalidArgument, spreadsheet.CodeOf(err))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Q1_Q2", sheetName("Q1/Q2", 0))
	assert.Equal(t, "Sheet3", sheetName("", 2))
	assert.Len(t, []rune(sheetName("a very long sheet name that excel rejects", 0)), maxSheetName)
}

func TestNormalizeColor(t *testing.T) {
	assert.Equal(t, "#e8f5e8", normalizeColor("FFE8F5E8"))
	assert.Equal(t, "#e8f5e8", normalizeColor("#E8F5E8"))
	assert.Equal(t, "", normalizeColor("theme"))
}
