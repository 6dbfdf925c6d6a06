package spreadsheet

import (
	"fmt"
	"time"
)

// WorkbookSnapshot is the persisted form of a workbook. it carries raw
// inputs only, derived values are recomputed on load.
type WorkbookSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ActiveSheetID string          `json:"activeSheetId"`
	AutoSave      bool            `json:"autoSave"`
	LastSaved     time.Time       `json:"lastSaved,omitzero"`
	Sheets        []SheetSnapshot `json:"sheets"`
}

// SheetSnapshot is the persisted form of a sheet
type SheetSnapshot struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	RowCount      uint32         `json:"rowCount"`
	ColumnCount   uint32         `json:"columnCount"`
	SelectedCell  string         `json:"selectedCell"`
	SelectedRange []string       `json:"selectedRange,omitempty"`
	LastModified  time.Time      `json:"lastModified"`
	Cells         []CellSnapshot `json:"cells"`
}

// CellSnapshot is the persisted form of a cell
type CellSnapshot struct {
	Address      string      `json:"address"`
	Raw          string      `json:"raw,omitempty"`
	Format       *CellFormat `json:"format,omitempty"`
	LastModified time.Time   `json:"lastModified,omitzero"`
}

// Snapshot captures the sheet's raw inputs, formats and selection
func (s *Sheet) Snapshot() SheetSnapshot {
	snap := SheetSnapshot{
		ID:           s.ID,
		Name:         s.Name,
		RowCount:     s.RowCount,
		ColumnCount:  s.ColumnCount,
		SelectedCell: s.SelectedCell.String(),
		LastModified: s.LastModified,
		Cells:        make([]CellSnapshot, 0, len(s.cells)),
	}
	for _, addr := range s.SelectedRange {
		snap.SelectedRange = append(snap.SelectedRange, addr.String())
	}
	for _, addr := range s.Addresses() {
		cell := s.cells[addr]
		cellSnap := CellSnapshot{
			Address:      addr.String(),
			Raw:          cell.Raw,
			LastModified: cell.LastModified,
		}
		if !cell.Format.IsZero() {
			format := cell.Format
			cellSnap.Format = &format
		}
		snap.Cells = append(snap.Cells, cellSnap)
	}
	return snap
}

// sheetFromSnapshot rebuilds a sheet and recalculates every formula once
func sheetFromSnapshot(snap SheetSnapshot, o options) (*Sheet, error) {
	if snap.ID == "" {
		return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("sheet %q has no id", snap.Name))
	}
	if snap.RowCount > 0 {
		o.rows = snap.RowCount
	}
	if snap.ColumnCount > 0 {
		if snap.ColumnCount > MaxColumns {
			return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("sheet %q has %d columns, at most %d are supported", snap.Name, snap.ColumnCount, MaxColumns))
		}
		o.columns = snap.ColumnCount
	}

	s := newSheet(snap.ID, snap.Name, o)
	for _, cellSnap := range snap.Cells {
		addr, err := s.resolveAddress(cellSnap.Address)
		if err != nil {
			return nil, WrapApplicationError(InvalidArgument, fmt.Sprintf("sheet %q", snap.Name), err)
		}
		modified := cellSnap.LastModified
		if modified.IsZero() {
			modified = snap.LastModified
		}
		if cellSnap.Raw != "" {
			s.store(addr, cellSnap.Raw, modified)
		}
		if cellSnap.Format != nil {
			cell, exists := s.cells[addr]
			if !exists {
				cell = &Cell{Type: CellTypeEmpty, LastModified: modified}
				s.cells[addr] = cell
			}
			cell.Format = *cellSnap.Format
		}
	}

	if snap.SelectedCell != "" {
		if err := s.Select(snap.SelectedCell); err != nil {
			return nil, err
		}
	}
	for _, address := range snap.SelectedRange {
		addr, err := s.resolveAddress(address)
		if err != nil {
			return nil, err
		}
		s.SelectedRange = append(s.SelectedRange, addr)
	}

	s.RecalculateAll()
	if !snap.LastModified.IsZero() {
		s.LastModified = snap.LastModified
	}
	return s, nil
}
