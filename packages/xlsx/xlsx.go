// Package xlsx converts workbook snapshots to and from Excel files
package xlsx

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"github.com/xuri/excelize/v2"
)

// excel's default font size, read back for every styled cell
const defaultFontSize = 11

// excel's default font colour
const defaultFontColor = "#000000"

// maxSheetName is excel's limit on worksheet names
const maxSheetName = 31

// Export writes snap to path, one worksheet per sheet. formulas are stored
// without their leading '=' alongside their current value.
func Export(snap spreadsheet.WorkbookSnapshot, path string) error {
	wb, err := spreadsheet.FromSnapshot(snap)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	styles := make(map[spreadsheet.CellFormat]int)
	activeIndex := 0
	for i, sheetSnap := range snap.Sheets {
		name := sheetName(sheetSnap.Name, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("sheet %q", sheetSnap.Name), err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("sheet %q", sheetSnap.Name), err)
		}
		if sheetSnap.ID == snap.ActiveSheetID {
			activeIndex = i
		}

		err := wb.Update(sheetSnap.ID, func(s *spreadsheet.Sheet) error {
			for _, cellSnap := range sheetSnap.Cells {
				if err := writeCell(f, name, s, cellSnap, styles); err != nil {
					return fmt.Errorf("%s!%s: %w", name, cellSnap.Address, err)
				}
			}
			return nil
		})
		if err != nil {
			return spreadsheet.WrapApplicationError(spreadsheet.Internal, "failed to write worksheet", err)
		}
	}
	f.SetActiveSheet(activeIndex)

	if err := f.SaveAs(path); err != nil {
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to save xlsx", err)
	}
	return nil
}

func writeCell(f *excelize.File, sheet string, s *spreadsheet.Sheet, cellSnap spreadsheet.CellSnapshot, styles map[spreadsheet.CellFormat]int) error {
	addr := strings.ToUpper(cellSnap.Address)
	raw := cellSnap.Raw

	switch {
	case strings.HasPrefix(raw, "="):
		value, err := s.Get(addr)
		if err != nil {
			return err
		}
		if err := setValue(f, sheet, addr, value); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheet, addr, raw[1:]); err != nil {
			return err
		}
	case raw != "":
		if n, ok := parseNumber(raw); ok {
			if err := f.SetCellValue(sheet, addr, n); err != nil {
				return err
			}
		} else if err := f.SetCellValue(sheet, addr, raw); err != nil {
			return err
		}
	}

	if cellSnap.Format == nil || cellSnap.Format.IsZero() {
		return nil
	}
	styleID, ok := styles[*cellSnap.Format]
	if !ok {
		var err error
		styleID, err = f.NewStyle(toStyle(*cellSnap.Format))
		if err != nil {
			return err
		}
		styles[*cellSnap.Format] = styleID
	}
	return f.SetCellStyle(sheet, addr, addr, styleID)
}

// setValue stores a computed value as the formula's cached result. errors
// have no cached value.
func setValue(f *excelize.File, sheet, addr string, value spreadsheet.Primitive) error {
	switch v := value.(type) {
	case float64:
		return f.SetCellValue(sheet, addr, v)
	case string:
		return f.SetCellValue(sheet, addr, v)
	case bool:
		return f.SetCellBool(sheet, addr, v)
	}
	return nil
}

func parseNumber(raw string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// sheetName makes name acceptable to excel
func sheetName(name string, index int) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.Trim(name, "'"))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}

func toStyle(format spreadsheet.CellFormat) *excelize.Style {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:   format.Bold,
			Italic: format.Italic,
			Color:  format.Color,
			Size:   float64(format.FontSize),
		},
	}
	if format.Underline {
		style.Font.Underline = "single"
	}
	if format.Background != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{format.Background}}
	}
	if format.Align != "" {
		style.Alignment = &excelize.Alignment{Horizontal: string(format.Align)}
	}
	return style
}

func fromStyle(style *excelize.Style) spreadsheet.CellFormat {
	var format spreadsheet.CellFormat
	if style.Font != nil {
		format.Bold = style.Font.Bold
		format.Italic = style.Font.Italic
		format.Underline = style.Font.Underline != "" && style.Font.Underline != "none"
		if color := normalizeColor(style.Font.Color); color != defaultFontColor {
			format.Color = color
		}
		if size := int(style.Font.Size); size != defaultFontSize {
			format.FontSize = size
		}
	}
	if style.Fill.Type == "pattern" && style.Fill.Pattern == 1 && len(style.Fill.Color) > 0 {
		format.Background = normalizeColor(style.Fill.Color[0])
	}
	if style.Alignment != nil {
		switch align := spreadsheet.Alignment(style.Alignment.Horizontal); align {
		case spreadsheet.AlignLeft, spreadsheet.AlignCenter, spreadsheet.AlignRight:
			format.Align = align
		}
	}
	return format
}

// normalizeColor turns excel's RRGGBB or AARRGGBB into #rrggbb
func normalizeColor(color string) string {
	color = strings.TrimPrefix(color, "#")
	if len(color) == 8 {
		color = color[2:]
	}
	if len(color) != 6 {
		return ""
	}
	return "#" + strings.ToLower(color)
}

// Result is an imported workbook plus the cells that could not be kept
type Result struct {
	Snapshot spreadsheet.WorkbookSnapshot
	// Skipped counts non-empty cells beyond column Z
	Skipped int
}

// Import reads every worksheet of the file at path into a new workbook
func Import(path string) (spreadsheet.WorkbookSnapshot, error) {
	result, err := Read(path)
	return result.Snapshot, err
}

// Read is Import reporting skipped cells
func Read(path string) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	result := Result{
		Snapshot: spreadsheet.WorkbookSnapshot{
			ID:       uuid.NewString(),
			Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			AutoSave: true,
		},
	}

	activeIndex := f.GetActiveSheetIndex()
	for _, name := range f.GetSheetList() {
		sheetSnap, skipped, err := readSheet(f, name)
		if err != nil {
			return Result{}, spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("worksheet %q", name), err)
		}
		if index, err := f.GetSheetIndex(name); err == nil && index == activeIndex {
			result.Snapshot.ActiveSheetID = sheetSnap.ID
		}
		result.Skipped += skipped
		result.Snapshot.Sheets = append(result.Snapshot.Sheets, sheetSnap)
	}
	if len(result.Snapshot.Sheets) == 0 {
		return Result{}, spreadsheet.NewApplicationError(spreadsheet.InvalidArgument, fmt.Sprintf("%s has no worksheets", path))
	}
	return result, nil
}

func readSheet(f *excelize.File, name string) (spreadsheet.SheetSnapshot, int, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return spreadsheet.SheetSnapshot{}, 0, err
	}

	snap := spreadsheet.SheetSnapshot{
		ID:          uuid.NewString(),
		Name:        name,
		RowCount:    uint32(max(len(rows), spreadsheet.DefaultRowCount)),
		ColumnCount: spreadsheet.MaxColumns,
	}
	skipped := 0
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return snap, skipped, err
			}
			formula, err := f.GetCellFormula(name, cellName)
			if err != nil {
				return snap, skipped, err
			}

			raw := value
			if formula != "" {
				raw = "=" + strings.TrimPrefix(formula, "=")
			}

			var format *spreadsheet.CellFormat
			if styleID, err := f.GetCellStyle(name, cellName); err == nil && styleID != 0 {
				if style, err := f.GetStyle(styleID); err == nil {
					if cf := fromStyle(style); !cf.IsZero() {
						format = &cf
					}
				}
			}

			if raw == "" && format == nil {
				continue
			}
			if colIdx >= spreadsheet.MaxColumns {
				if raw != "" {
					skipped++
				}
				continue
			}
			snap.Cells = append(snap.Cells, spreadsheet.CellSnapshot{Address: cellName, Raw: raw, Format: format})
		}
	}
	return snap, skipped, nil
}
