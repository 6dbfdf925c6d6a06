package spreadsheet

import "fmt"

// MaxDependencyCells caps how many addresses Dependencies will expand
const MaxDependencyCells = 1 << 20

// ValidateFormula checks that formula lexes and parses
func ValidateFormula(formula string) error {
	if _, err := Parse(formula); err != nil {
		return WrapApplicationError(InvalidArgument, "invalid formula", err)
	}
	return nil
}

// Dependencies returns every cell formula references, ranges expanded,
// deduplicated and sorted row-major
func Dependencies(formula string) ([]CellAddress, error) {
	node, err := Parse(formula)
	if err != nil {
		return nil, WrapApplicationError(InvalidArgument, "invalid formula", err)
	}

	cells, ranges := references(node)
	size := len(cells)
	for _, rng := range ranges {
		size += rng.Size()
	}
	if size > MaxDependencyCells {
		return nil, NewApplicationError(OutOfRange, fmt.Sprintf("formula references %d cells, at most %d are expanded", size, MaxDependencyCells))
	}

	seen := make(map[CellAddress]struct{}, len(cells))
	for _, addr := range cells {
		seen[addr] = struct{}{}
	}
	for _, rng := range ranges {
		for addr := range rng.Cells() {
			seen[addr] = struct{}{}
		}
	}

	deps := make([]CellAddress, 0, len(seen))
	for addr := range seen {
		deps = append(deps, addr)
	}
	return sortAddresses(deps), nil
}

// Walk visits node and its children depth first. returning false from fn
// skips the children of that node.
func Walk(node ASTNode, fn func(ASTNode) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *BinaryOpNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryOpNode:
		Walk(n.Operand, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}

// references lists the direct cell and range references of a formula
func references(node ASTNode) (cells []CellAddress, ranges []RangeAddress) {
	Walk(node, func(n ASTNode) bool {
		switch ref := n.(type) {
		case *CellRefNode:
			cells = append(cells, ref.Addr)
		case *RangeNode:
			ranges = append(ranges, ref.Range)
		}
		return true
	})
	return cells, ranges
}

// containsVolatile reports whether the formula calls NOW or RAND
func containsVolatile(node ASTNode) bool {
	volatile := false
	Walk(node, func(n ASTNode) bool {
		if call, ok := n.(*FunctionCallNode); ok && call.Kind.Volatile() {
			volatile = true
		}
		return !volatile
	})
	return volatile
}
