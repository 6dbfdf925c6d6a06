package spreadsheet

import (
	"fmt"
	"time"
)

// Sheet is a sparse grid of cells with its own dependency graph. it is not
// safe for concurrent use, Workbook serializes access.
type Sheet struct {
	ID            string
	Name          string
	RowCount      uint32
	ColumnCount   uint32
	SelectedCell  CellAddress
	SelectedRange []CellAddress
	LastModified  time.Time

	cells     map[CellAddress]*Cell
	asts      map[CellAddress]ASTNode
	graph     *DependencyGraph
	functions *BuiltInFunctions
	clock     Clock
}

var (
	_ Context = (*Sheet)(nil)
	_ Bounded = (*Sheet)(nil)
)

// NewSheet creates an empty sheet
func NewSheet(id, name string, opts ...Option) *Sheet {
	return newSheet(id, name, buildOptions(opts))
}

func newSheet(id, name string, o options) *Sheet {
	return &Sheet{
		ID:           id,
		Name:         name,
		RowCount:     o.rows,
		ColumnCount:  o.columns,
		LastModified: o.clock.Now(),
		cells:        make(map[CellAddress]*Cell),
		asts:         make(map[CellAddress]ASTNode),
		graph:        NewDependencyGraph(),
		functions:    NewBuiltInFunctions(o.clock, o.rng),
		clock:        o.clock,
	}
}

// Value implements Context, empty cells are nil
func (s *Sheet) Value(addr CellAddress) Primitive {
	if cell, exists := s.cells[addr]; exists {
		return cell.Value
	}
	return nil
}

// resolveAddress parses an address and checks it against the extents
func (s *Sheet) resolveAddress(address string) (CellAddress, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return CellAddress{}, err
	}
	if err := s.checkBounds(addr); err != nil {
		return CellAddress{}, err
	}
	return addr, nil
}

// InBounds implements Bounded
func (s *Sheet) InBounds(addr CellAddress) bool {
	return addr.Row < s.RowCount && addr.Column < s.ColumnCount
}

func (s *Sheet) checkBounds(addr CellAddress) error {
	if !s.InBounds(addr) {
		return NewApplicationError(OutOfRange, fmt.Sprintf("cell %s is outside the sheet (%d rows, %d columns)", addr, s.RowCount, s.ColumnCount))
	}
	return nil
}

// Get retrieves the value of a cell
func (s *Sheet) Get(address string) (Primitive, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	return s.Value(addr), nil
}

// Set submits raw input to a cell and recalculates what depends on it
func (s *Sheet) Set(address string, raw string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	s.SetAt(addr, raw)
	return nil
}

// SetAt is Set for an already resolved address
func (s *Sheet) SetAt(addr CellAddress, raw string) {
	if raw == "" {
		s.RemoveAt(addr)
		return
	}
	s.store(addr, raw, s.clock.Now())
	if s.graph.IsFormula(addr) {
		s.graph.MarkDirty(addr)
	}
	s.markAffectedDirty(addr)
	s.Recalculate()
}

// store records raw input and rebuilds the cell's edges, without
// recalculating anything
func (s *Sheet) store(addr CellAddress, raw string, modified time.Time) {
	cell, exists := s.cells[addr]
	if !exists {
		cell = &Cell{}
		s.cells[addr] = cell
	}

	cellType, value := classifyInput(raw)
	cell.Raw = raw
	cell.Type = cellType
	cell.Value = value
	cell.Formula = ""
	cell.LastModified = modified
	s.LastModified = modified

	s.graph.ClearDependencies(addr)
	s.graph.UnmarkVolatile(addr)
	delete(s.asts, addr)

	if cellType != CellTypeFormula {
		s.graph.SetFormula(addr, false)
		return
	}

	cell.Formula = raw
	node, err := Parse(raw)
	if err != nil {
		cell.Value = errorValue(err)
		s.graph.SetFormula(addr, false)
		return
	}

	s.asts[addr] = node
	s.graph.SetFormula(addr, true)
	cells, ranges := references(node)
	for _, precedent := range cells {
		s.graph.AddCellDependency(addr, precedent)
	}
	for _, rng := range ranges {
		s.graph.AddRangeDependency(addr, rng)
	}
	if containsVolatile(node) {
		s.graph.MarkVolatile(addr)
	}
}

func (s *Sheet) markAffectedDirty(addr CellAddress) {
	for _, affected := range s.graph.GetAffectedCells(addr) {
		s.graph.MarkDirty(affected)
	}
}

// Cell returns a copy of the cell record
func (s *Sheet) Cell(address string) (Cell, bool) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return Cell{}, false
	}
	return s.CellAt(addr)
}

// CellAt is Cell for an already resolved address
func (s *Sheet) CellAt(addr CellAddress) (Cell, bool) {
	cell, exists := s.cells[addr]
	if !exists {
		return Cell{}, false
	}
	return *cell, true
}

// Remove clears a cell, dependents then read it as empty
func (s *Sheet) Remove(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	s.RemoveAt(addr)
	return nil
}

// RemoveAt is Remove for an already resolved address
func (s *Sheet) RemoveAt(addr CellAddress) {
	if _, exists := s.cells[addr]; !exists {
		return
	}
	delete(s.cells, addr)
	delete(s.asts, addr)
	s.graph.RemoveNode(addr)
	s.LastModified = s.clock.Now()

	s.markAffectedDirty(addr)
	s.Recalculate()
}

// SetFormat sets the display format of a cell, creating an empty cell if
// needed. formatting never dirties anything.
func (s *Sheet) SetFormat(address string, format CellFormat) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	cell, exists := s.cells[addr]
	if !exists {
		cell = &Cell{Type: CellTypeEmpty}
		s.cells[addr] = cell
	}
	cell.Format = format
	cell.LastModified = s.clock.Now()
	s.LastModified = cell.LastModified
	return nil
}

// Select moves the selected cell
func (s *Sheet) Select(address string) error {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return err
	}
	s.SelectedCell = addr
	return nil
}

// SelectRange selects the rectangle between two corners, row-major
func (s *Sheet) SelectRange(start, end string) error {
	startAddr, err := s.resolveAddress(start)
	if err != nil {
		return err
	}
	endAddr, err := s.resolveAddress(end)
	if err != nil {
		return err
	}

	rng := NewRangeAddress(startAddr, endAddr)
	selected := make([]CellAddress, 0, rng.Size())
	for addr := range rng.Cells() {
		selected = append(selected, addr)
	}
	s.SelectedRange = selected
	return nil
}

// Recalculate evaluates every dirty formula cell in dependency order and
// returns the cells it evaluated
func (s *Sheet) Recalculate() []CellAddress {
	var roots []CellAddress
	for _, addr := range s.graph.DirtyCells() {
		if s.graph.IsFormula(addr) {
			roots = append(roots, addr)
		}
	}
	if len(roots) == 0 {
		s.graph.ClearAllDirty()
		return nil
	}

	order, cyclic := s.graph.CalculationOrder(roots)
	evaluator := NewEvaluator(s, s.functions)

	var recalculated []CellAddress
	for _, addr := range order {
		if !s.graph.IsDirty(addr) {
			continue
		}
		cell, exists := s.cells[addr]
		node, parsed := s.asts[addr]
		if !exists || !parsed {
			s.graph.ClearDirty(addr)
			continue
		}

		if _, onCycle := cyclic[addr]; onCycle {
			cell.Value = NewSpreadsheetError(ErrorCodeCircular, fmt.Sprintf("circular reference at %s", addr))
		} else {
			result := evaluator.Eval(node)
			if result == nil {
				result = 0.0
			}
			cell.Value = result
		}
		s.graph.ClearDirty(addr)
		recalculated = append(recalculated, addr)
	}

	s.graph.ClearAllDirty()
	return recalculated
}

// RecalculateAll marks every formula cell dirty and recalculates
func (s *Sheet) RecalculateAll() []CellAddress {
	for _, addr := range s.graph.FormulaCells() {
		s.graph.MarkDirty(addr)
	}
	return s.Recalculate()
}

// RefreshVolatile recalculates only the volatile cells and what depends on
// them, returning the refreshed cells sorted
func (s *Sheet) RefreshVolatile() []CellAddress {
	if len(s.graph.GetVolatileCells()) == 0 {
		return nil
	}
	s.graph.MarkAllVolatileDirty()
	return sortAddresses(s.Recalculate())
}

// VolatileCells returns the cells calling NOW or RAND, sorted
func (s *Sheet) VolatileCells() []CellAddress {
	return s.graph.GetVolatileCells()
}

// Addresses returns the occupied cells, sorted row-major
func (s *Sheet) Addresses() []CellAddress {
	result := make([]CellAddress, 0, len(s.cells))
	for addr := range s.cells {
		result = append(result, addr)
	}
	return sortAddresses(result)
}

// FormulaCount returns the number of parsed formula cells
func (s *Sheet) FormulaCount() int {
	return len(s.asts)
}

// Display returns what the cell shows, empty for invalid addresses
func (s *Sheet) Display(address string) string {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return ""
	}
	return s.DisplayAt(addr)
}

// DisplayAt is Display for an already resolved address
func (s *Sheet) DisplayAt(addr CellAddress) string {
	return FormatValue(s.Value(addr))
}

// Precedents lists the cells a formula cell reads directly, ranges
// expanded, sorted
func (s *Sheet) Precedents(address string) ([]CellAddress, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	cell, exists := s.cells[addr]
	if !exists || cell.Type != CellTypeFormula {
		return nil, nil
	}
	return Dependencies(cell.Formula)
}

// Dependents lists every cell that would recalculate if address changed
func (s *Sheet) Dependents(address string) ([]CellAddress, error) {
	addr, err := s.resolveAddress(address)
	if err != nil {
		return nil, err
	}
	return s.graph.GetAffectedCells(addr), nil
}
