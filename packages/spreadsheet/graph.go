package spreadsheet

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	Addr CellAddress

	// cell-to-cell edges
	CellPrecedents map[CellAddress]struct{} // cells this cell depends on
	CellDependents map[CellAddress]struct{} // cells that depend on this cell

	// ranges this cell depends on, resolved through rangeObservers
	RangePrecedents map[RangeAddress]struct{}

	// IsFormula is set for cells whose value is computed
	IsFormula bool
}

// DependencyGraph manages cell dependencies and calculation order
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode           // all nodes in the graph
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that depend on it
	dirtySet       map[CellAddress]struct{}                  // cells needing recalculation
	volatileCells  map[CellAddress]struct{}                  // cells calling NOW or RAND
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
		dirtySet:       make(map[CellAddress]struct{}),
		volatileCells:  make(map[CellAddress]struct{}),
	}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}

	node := &DependencyNode{
		Addr:            addr,
		CellPrecedents:  make(map[CellAddress]struct{}),
		CellDependents:  make(map[CellAddress]struct{}),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// SetFormula flags addr as a formula cell or clears the flag
func (dg *DependencyGraph) SetFormula(addr CellAddress, isFormula bool) {
	if isFormula {
		dg.GetOrCreateNode(addr).IsFormula = true
		return
	}
	if node, exists := dg.nodes[addr]; exists {
		node.IsFormula = false
		dg.cleanupNodeIfEmpty(addr)
	}
}

// IsFormula reports whether addr is a formula cell
func (dg *DependencyGraph) IsFormula(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	return exists && node.IsFormula
}

// FormulaCells returns every formula cell, sorted row-major
func (dg *DependencyGraph) FormulaCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.nodes))
	for addr, node := range dg.nodes {
		if node.IsFormula {
			result = append(result, addr)
		}
	}
	return sortAddresses(result)
}

// RemoveNode drops a cell's outgoing edges and its formula flag. edges
// from dependents are kept so they see the cell as empty.
func (dg *DependencyGraph) RemoveNode(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	if !exists {
		return false
	}

	dg.ClearDependencies(addr)
	node.IsFormula = false
	delete(dg.dirtySet, addr)
	delete(dg.volatileCells, addr)
	dg.cleanupNodeIfEmpty(addr)
	return true
}

// cleanupNodeIfEmpty removes a node if it has no edges and no formula
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	if node.IsFormula ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}

	delete(dg.nodes, addr)
	delete(dg.dirtySet, addr)
}

// AddCellDependency adds a cell-to-cell dependency (from depends on to)
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)

	fromNode.CellPrecedents[to] = struct{}{}
	toNode.CellDependents[from] = struct{}{}
}

// RemoveCellDependency removes a cell-to-cell dependency
func (dg *DependencyGraph) RemoveCellDependency(from, to CellAddress) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]
	if !fromExists || !toExists {
		return false
	}

	delete(fromNode.CellPrecedents, to)
	delete(toNode.CellDependents, from)

	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)
	return true
}

// AddRangeDependency adds a cell-to-range dependency (from depends on range)
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, rangeAddr RangeAddress) {
	node := dg.GetOrCreateNode(from)
	node.RangePrecedents[rangeAddr] = struct{}{}

	if dg.rangeObservers[rangeAddr] == nil {
		dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[rangeAddr][from] = struct{}{}
}

// RemoveRangeDependency removes a cell-to-range dependency
func (dg *DependencyGraph) RemoveRangeDependency(from CellAddress, rangeAddr RangeAddress) bool {
	node, exists := dg.nodes[from]
	if !exists {
		return false
	}

	delete(node.RangePrecedents, rangeAddr)
	if observers, exists := dg.rangeObservers[rangeAddr]; exists {
		delete(observers, from)
		if len(observers) == 0 {
			delete(dg.rangeObservers, rangeAddr)
		}
	}

	dg.cleanupNodeIfEmpty(from)
	return true
}

// ClearDependencies clears all outgoing dependencies for a cell
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	for precedentAddr := range node.CellPrecedents {
		dg.RemoveCellDependency(addr, precedentAddr)
	}
	for rangeAddr := range node.RangePrecedents {
		dg.RemoveRangeDependency(addr, rangeAddr)
	}
}

// MarkDirty marks a cell as needing recalculation
func (dg *DependencyGraph) MarkDirty(addr CellAddress) {
	dg.dirtySet[addr] = struct{}{}
}

// IsDirty reports whether a cell awaits recalculation
func (dg *DependencyGraph) IsDirty(addr CellAddress) bool {
	_, dirty := dg.dirtySet[addr]
	return dirty
}

// ClearDirty clears the dirty flag for a cell
func (dg *DependencyGraph) ClearDirty(addr CellAddress) {
	delete(dg.dirtySet, addr)
}

// ClearAllDirty clears all dirty flags
func (dg *DependencyGraph) ClearAllDirty() {
	clear(dg.dirtySet)
}

// DirtyCells returns the dirty set, sorted row-major
func (dg *DependencyGraph) DirtyCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.dirtySet))
	for addr := range dg.dirtySet {
		result = append(result, addr)
	}
	return sortAddresses(result)
}

// GetDirectDependents returns cells directly depending on this cell,
// through a cell edge or an observed range
func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	seen := make(map[CellAddress]struct{})
	if node, exists := dg.nodes[addr]; exists {
		for dependentAddr := range node.CellDependents {
			seen[dependentAddr] = struct{}{}
		}
	}
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observerAddr := range observers {
				seen[observerAddr] = struct{}{}
			}
		}
	}

	result := make([]CellAddress, 0, len(seen))
	for dependentAddr := range seen {
		result = append(result, dependentAddr)
	}
	return sortAddresses(result)
}

// GetAllDependents returns the transitive closure over cell edges only
func (dg *DependencyGraph) GetAllDependents(addr CellAddress) []CellAddress {
	visited := map[CellAddress]struct{}{addr: {}}
	var result []CellAddress

	queue := []CellAddress{addr}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, exists := dg.nodes[current]
		if !exists {
			continue
		}
		for dependentAddr := range node.CellDependents {
			if _, seen := visited[dependentAddr]; seen {
				continue
			}
			visited[dependentAddr] = struct{}{}
			result = append(result, dependentAddr)
			queue = append(queue, dependentAddr)
		}
	}
	return sortAddresses(result)
}

// GetAffectedCells returns all cells that need recalculation when a
// cell changes. this includes direct and transitive dependents, plus
// observers of ranges containing any of them. addr itself is only
// included when it depends on itself.
func (dg *DependencyGraph) GetAffectedCells(addr CellAddress) []CellAddress {
	affected := make(map[CellAddress]struct{})

	queue := []CellAddress{addr}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dependentAddr := range dg.GetDirectDependents(current) {
			if _, seen := affected[dependentAddr]; seen {
				continue
			}
			affected[dependentAddr] = struct{}{}
			queue = append(queue, dependentAddr)
		}
	}

	result := make([]CellAddress, 0, len(affected))
	for affectedAddr := range affected {
		result = append(result, affectedAddr)
	}
	return sortAddresses(result)
}

// formulaPrecedents lists the formula cells addr reads, directly or
// through a range, sorted row-major
func (dg *DependencyGraph) formulaPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}

	seen := make(map[CellAddress]struct{})
	for precedentAddr := range node.CellPrecedents {
		if dg.IsFormula(precedentAddr) {
			seen[precedentAddr] = struct{}{}
		}
	}
	for rangeAddr := range node.RangePrecedents {
		for _, formulaAddr := range dg.formulasIn(rangeAddr) {
			seen[formulaAddr] = struct{}{}
		}
	}

	result := make([]CellAddress, 0, len(seen))
	for precedentAddr := range seen {
		result = append(result, precedentAddr)
	}
	return sortAddresses(result)
}

// formulasIn finds the formula cells inside a range, walking whichever of
// the range or the node set is smaller
func (dg *DependencyGraph) formulasIn(rangeAddr RangeAddress) []CellAddress {
	var result []CellAddress
	if rangeAddr.Size() <= len(dg.nodes) {
		for addr := range rangeAddr.Cells() {
			if dg.IsFormula(addr) {
				result = append(result, addr)
			}
		}
		return result
	}
	for addr, node := range dg.nodes {
		if node.IsFormula && rangeAddr.Contains(addr) {
			result = append(result, addr)
		}
	}
	return result
}

// CalculationOrder returns the given cells and the formula cells they read,
// ordered so every cell comes after its precedents, along with the cells
// that sit on a dependency cycle. it runs Tarjan's strongly connected
// components over precedent edges; components come out precedents first.
// roots and neighbours are visited row-major so the order is stable.
func (dg *DependencyGraph) CalculationOrder(cells []CellAddress) ([]CellAddress, map[CellAddress]struct{}) {
	roots := sortAddresses(append([]CellAddress(nil), cells...))

	index := make(map[CellAddress]int)
	lowLink := make(map[CellAddress]int)
	onStack := make(map[CellAddress]bool)
	var stack []CellAddress
	var order []CellAddress
	cyclic := make(map[CellAddress]struct{})
	next := 0

	var strongConnect func(addr CellAddress)
	strongConnect = func(addr CellAddress) {
		index[addr] = next
		lowLink[addr] = next
		next++
		stack = append(stack, addr)
		onStack[addr] = true

		selfLoop := false
		for _, precedentAddr := range dg.formulaPrecedents(addr) {
			if precedentAddr == addr {
				selfLoop = true
				continue
			}
			if _, visited := index[precedentAddr]; !visited {
				strongConnect(precedentAddr)
				lowLink[addr] = min(lowLink[addr], lowLink[precedentAddr])
			} else if onStack[precedentAddr] {
				lowLink[addr] = min(lowLink[addr], index[precedentAddr])
			}
		}

		if lowLink[addr] != index[addr] {
			return
		}

		// pop the component rooted at addr
		var component []CellAddress
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == addr {
				break
			}
		}

		if len(component) > 1 || selfLoop {
			for _, member := range component {
				cyclic[member] = struct{}{}
			}
		}
		order = append(order, sortAddresses(component)...)
	}

	for _, addr := range roots {
		if _, visited := index[addr]; !visited {
			strongConnect(addr)
		}
	}

	return order, cyclic
}

// HasCycle checks if any formula cell sits on a circular dependency
func (dg *DependencyGraph) HasCycle() bool {
	_, cyclic := dg.CalculationOrder(dg.FormulaCells())
	return len(cyclic) > 0
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// RangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}

// Clear removes all nodes and dependencies from the graph
func (dg *DependencyGraph) Clear() {
	clear(dg.nodes)
	clear(dg.rangeObservers)
	clear(dg.dirtySet)
	clear(dg.volatileCells)
}

// MarkVolatile marks a cell as containing volatile functions
func (dg *DependencyGraph) MarkVolatile(addr CellAddress) {
	dg.volatileCells[addr] = struct{}{}
}

// UnmarkVolatile removes volatile marking from a cell
func (dg *DependencyGraph) UnmarkVolatile(addr CellAddress) {
	delete(dg.volatileCells, addr)
}

// IsVolatile checks if a cell contains volatile functions
func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, isVolatile := dg.volatileCells[addr]
	return isVolatile
}

// GetVolatileCells returns all cells marked as volatile, sorted row-major
func (dg *DependencyGraph) GetVolatileCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.volatileCells))
	for addr := range dg.volatileCells {
		result = append(result, addr)
	}
	return sortAddresses(result)
}

// MarkAllVolatileDirty marks every volatile cell and everything downstream
// of it as dirty, returning the marked cells
func (dg *DependencyGraph) MarkAllVolatileDirty() []CellAddress {
	marked := make(map[CellAddress]struct{})
	for addr := range dg.volatileCells {
		marked[addr] = struct{}{}
		for _, affected := range dg.GetAffectedCells(addr) {
			marked[affected] = struct{}{}
		}
	}

	result := make([]CellAddress, 0, len(marked))
	for addr := range marked {
		dg.MarkDirty(addr)
		result = append(result, addr)
	}
	return sortAddresses(result)
}
