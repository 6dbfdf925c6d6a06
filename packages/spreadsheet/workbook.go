package spreadsheet

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workbook is an ordered collection of sheets with one active sheet. it is
// safe for concurrent use.
type Workbook struct {
	mu            sync.Mutex
	id            string
	name          string
	sheets        []*Sheet
	activeSheetID string
	autoSave      bool
	lastSaved     time.Time
	opts          options
}

// SheetInfo summarizes a sheet for listings and tabs
type SheetInfo struct {
	ID            string
	Name          string
	Active        bool
	CellCount     int
	FormulaCount  int
	VolatileCount int
	LastModified  time.Time
}

// NewWorkbook creates a workbook holding a single empty Sheet1
func NewWorkbook(name string, opts ...Option) *Workbook {
	wb := &Workbook{
		id:       uuid.NewString(),
		name:     name,
		autoSave: true,
		opts:     buildOptions(opts),
	}
	sheet := newSheet(uuid.NewString(), "Sheet1", wb.opts)
	wb.sheets = append(wb.sheets, sheet)
	wb.activeSheetID = sheet.ID
	return wb
}

func (wb *Workbook) ID() string {
	return wb.id
}

func (wb *Workbook) Name() string {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.name
}

// SetName renames the workbook
func (wb *Workbook) SetName(name string) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.name = name
}

// AutoSave reports whether auto-save is enabled
func (wb *Workbook) AutoSave() bool {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.autoSave
}

// SetAutoSave toggles auto-save
func (wb *Workbook) SetAutoSave(enabled bool) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.autoSave = enabled
}

// LastSaved returns when the workbook was last persisted
func (wb *Workbook) LastSaved() time.Time {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.lastSaved
}

// MarkSaved records a successful save
func (wb *Workbook) MarkSaved(at time.Time) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.lastSaved = at
}

func (wb *Workbook) info(s *Sheet) SheetInfo {
	return SheetInfo{
		ID:            s.ID,
		Name:          s.Name,
		Active:        s.ID == wb.activeSheetID,
		CellCount:     len(s.cells),
		FormulaCount:  s.FormulaCount(),
		VolatileCount: len(s.graph.volatileCells),
		LastModified:  s.LastModified,
	}
}

func (wb *Workbook) indexOf(id string) int {
	return slices.IndexFunc(wb.sheets, func(s *Sheet) bool { return s.ID == id })
}

func (wb *Workbook) sheet(id string) (*Sheet, error) {
	idx := wb.indexOf(id)
	if idx < 0 {
		return nil, NewApplicationError(NotFound, fmt.Sprintf("sheet not found: %s", id))
	}
	return wb.sheets[idx], nil
}

func (wb *Workbook) active() *Sheet {
	if idx := wb.indexOf(wb.activeSheetID); idx >= 0 {
		return wb.sheets[idx]
	}
	return wb.sheets[0]
}

func (wb *Workbook) nameTaken(name, exceptID string) bool {
	for _, s := range wb.sheets {
		if s.ID != exceptID && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// nextSheetName returns the first free Sheet{N}, starting at the sheet count
func (wb *Workbook) nextSheetName() string {
	for n := len(wb.sheets) + 1; ; n++ {
		name := fmt.Sprintf("Sheet%d", n)
		if !wb.nameTaken(name, "") {
			return name
		}
	}
}

// uniqueName suffixes name with (2), (3), ... until it is free
func (wb *Workbook) uniqueName(name string) string {
	if !wb.nameTaken(name, "") {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !wb.nameTaken(candidate, "") {
			return candidate
		}
	}
}

func (wb *Workbook) addSheet(name string) *Sheet {
	sheet := newSheet(uuid.NewString(), name, wb.opts)
	wb.sheets = append(wb.sheets, sheet)
	wb.activeSheetID = sheet.ID
	return sheet
}

// AddSheet appends a new sheet and makes it active. an empty name becomes
// Sheet{N}.
func (wb *Workbook) AddSheet(name string) (SheetInfo, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = wb.nextSheetName()
	}
	if wb.nameTaken(name, "") {
		return SheetInfo{}, NewApplicationError(AlreadyExists, fmt.Sprintf("sheet already exists: %s", name))
	}
	return wb.info(wb.addSheet(name)), nil
}

// RemoveSheet deletes a sheet. the last sheet cannot be removed; removing
// the active sheet activates its neighbour.
func (wb *Workbook) RemoveSheet(id string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	idx := wb.indexOf(id)
	if idx < 0 {
		return NewApplicationError(NotFound, fmt.Sprintf("sheet not found: %s", id))
	}
	if len(wb.sheets) == 1 {
		return NewApplicationError(FailedPrecondition, "cannot remove the last sheet")
	}

	wb.sheets = slices.Delete(wb.sheets, idx, idx+1)
	if wb.activeSheetID == id {
		wb.activeSheetID = wb.sheets[min(idx, len(wb.sheets)-1)].ID
	}
	return nil
}

// RenameSheet changes a sheet's name
func (wb *Workbook) RenameSheet(id, name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	sheet, err := wb.sheet(id)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewApplicationError(InvalidArgument, "sheet name cannot be empty")
	}
	if wb.nameTaken(name, id) {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("sheet already exists: %s", name))
	}
	sheet.Name = name
	return nil
}

// SetActiveSheet switches the active sheet
func (wb *Workbook) SetActiveSheet(id string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if _, err := wb.sheet(id); err != nil {
		return err
	}
	wb.activeSheetID = id
	return nil
}

// CycleSheet activates the sheet delta positions away, wrapping around
func (wb *Workbook) CycleSheet(delta int) SheetInfo {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	n := len(wb.sheets)
	idx := max(wb.indexOf(wb.activeSheetID), 0)
	next := ((idx+delta)%n + n) % n
	wb.activeSheetID = wb.sheets[next].ID
	return wb.info(wb.sheets[next])
}

// Sheets lists the sheets in tab order
func (wb *Workbook) Sheets() []SheetInfo {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	result := make([]SheetInfo, 0, len(wb.sheets))
	for _, s := range wb.sheets {
		result = append(result, wb.info(s))
	}
	return result
}

// ActiveSheet describes the active sheet
func (wb *Workbook) ActiveSheet() SheetInfo {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.info(wb.active())
}

// Submit writes raw input to a cell of the active sheet
func (wb *Workbook) Submit(address, raw string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Set(address, raw)
}

// SubmitTo writes raw input to a cell of the given sheet
func (wb *Workbook) SubmitTo(sheetID, address, raw string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	sheet, err := wb.sheet(sheetID)
	if err != nil {
		return err
	}
	return sheet.Set(address, raw)
}

// Value returns the derived value of a cell of the active sheet
func (wb *Workbook) Value(address string) (Primitive, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Get(address)
}

// Display returns the display string of a cell of the active sheet
func (wb *Workbook) Display(address string) string {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Display(address)
}

// Cell returns a copy of a cell of the active sheet
func (wb *Workbook) Cell(address string) (Cell, bool) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Cell(address)
}

// Remove clears a cell of the active sheet
func (wb *Workbook) Remove(address string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Remove(address)
}

// SetFormat formats a cell of the active sheet
func (wb *Workbook) SetFormat(address string, format CellFormat) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().SetFormat(address, format)
}

// Select moves the selection of the active sheet
func (wb *Workbook) Select(address string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().Select(address)
}

// SelectRange selects a rectangle on the active sheet
func (wb *Workbook) SelectRange(start, end string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.active().SelectRange(start, end)
}

// View runs fn against the active sheet with the lock held. fn must not
// call back into the workbook.
func (wb *Workbook) View(fn func(*Sheet)) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	fn(wb.active())
}

// Update runs fn against the given sheet with the lock held
func (wb *Workbook) Update(sheetID string, fn func(*Sheet) error) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	sheet, err := wb.sheet(sheetID)
	if err != nil {
		return err
	}
	return fn(sheet)
}

// RefreshVolatile refreshes the volatile cells of every sheet. the result
// maps sheet id to refreshed cells and omits sheets where nothing changed.
func (wb *Workbook) RefreshVolatile() map[string][]CellAddress {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	refreshed := make(map[string][]CellAddress)
	for _, s := range wb.sheets {
		if cells := s.RefreshVolatile(); len(cells) > 0 {
			refreshed[s.ID] = cells
		}
	}
	return refreshed
}

// ApplyTemplate adds a sheet filled from t and makes it active
func (wb *Workbook) ApplyTemplate(t Template) (SheetInfo, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	modified := wb.opts.clock.Now()
	// resolve against a throwaway sheet so a bad entry adds nothing
	probe := newSheet("", "", wb.opts)
	addrs := make([]CellAddress, len(t.Entries))
	for i, entry := range t.Entries {
		addr, err := probe.resolveAddress(entry.Address)
		if err != nil {
			return SheetInfo{}, WrapApplicationError(InvalidArgument, fmt.Sprintf("template %q", t.Name), err)
		}
		addrs[i] = addr
	}

	name := strings.TrimSpace(t.Name)
	if name == "" {
		name = wb.nextSheetName()
	}
	sheet := wb.addSheet(wb.uniqueName(name))
	for i, entry := range t.Entries {
		if entry.Raw != "" {
			sheet.store(addrs[i], entry.Raw, modified)
		}
		if !entry.Format.IsZero() {
			cell, exists := sheet.cells[addrs[i]]
			if !exists {
				cell = &Cell{Type: CellTypeEmpty, LastModified: modified}
				sheet.cells[addrs[i]] = cell
			}
			cell.Format = entry.Format
		}
	}
	sheet.RecalculateAll()
	return wb.info(sheet), nil
}

// Snapshot captures the workbook for persistence
func (wb *Workbook) Snapshot() WorkbookSnapshot {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	snap := WorkbookSnapshot{
		ID:            wb.id,
		Name:          wb.name,
		ActiveSheetID: wb.activeSheetID,
		AutoSave:      wb.autoSave,
		LastSaved:     wb.lastSaved,
		Sheets:        make([]SheetSnapshot, 0, len(wb.sheets)),
	}
	for _, s := range wb.sheets {
		snap.Sheets = append(snap.Sheets, s.Snapshot())
	}
	return snap
}

// FromSnapshot rebuilds a workbook, recomputing every derived value
func FromSnapshot(snap WorkbookSnapshot, opts ...Option) (*Workbook, error) {
	if snap.ID == "" {
		return nil, NewApplicationError(InvalidArgument, "workbook snapshot has no id")
	}
	if len(snap.Sheets) == 0 {
		return nil, NewApplicationError(InvalidArgument, "workbook snapshot has no sheets")
	}

	wb := &Workbook{
		id:        snap.ID,
		name:      snap.Name,
		autoSave:  snap.AutoSave,
		lastSaved: snap.LastSaved,
		opts:      buildOptions(opts),
	}
	for _, sheetSnap := range snap.Sheets {
		if wb.indexOf(sheetSnap.ID) >= 0 {
			return nil, NewApplicationError(InvalidArgument, fmt.Sprintf("duplicate sheet id: %s", sheetSnap.ID))
		}
		sheet, err := sheetFromSnapshot(sheetSnap, wb.opts)
		if err != nil {
			return nil, err
		}
		wb.sheets = append(wb.sheets, sheet)
	}

	wb.activeSheetID = snap.ActiveSheetID
	if wb.indexOf(wb.activeSheetID) < 0 {
		wb.activeSheetID = wb.sheets[0].ID
	}
	return wb, nil
}
