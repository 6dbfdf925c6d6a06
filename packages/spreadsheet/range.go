package spreadsheet

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// MaxColumns is the column limit imposed by single-letter addresses
const MaxColumns = 26

// CellAddress is a zero-based row/column position within a sheet
type CellAddress struct {
	Row    uint32
	Column uint32
}

// String renders the address in A1 notation
func (a CellAddress) String() string {
	return fmt.Sprintf("%c%d", 'A'+rune(a.Column), a.Row+1)
}

// Less orders addresses row-major
func (a CellAddress) Less(b CellAddress) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

func compareAddresses(a, b CellAddress) int {
	switch {
	case a == b:
		return 0
	case a.Less(b):
		return -1
	default:
		return 1
	}
}

// sortAddresses sorts addresses row-major in place and returns them
func sortAddresses(addrs []CellAddress) []CellAddress {
	slices.SortFunc(addrs, compareAddresses)
	return addrs
}

// ParseAddress parses an address like "B7" into a CellAddress. the column
// is a single letter A-Z (case-insensitive), the row is 1-based.
func ParseAddress(address string) (CellAddress, error) {
	if len(address) < 2 {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell address: %q", address))
	}

	letter := address[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid column in address: %q", address))
	}

	rowStr := address[1:]
	for i := 0; i < len(rowStr); i++ {
		if rowStr[i] < '0' || rowStr[i] > '9' {
			return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid row in address: %q", address))
		}
	}
	rowNum, err := strconv.ParseUint(rowStr, 10, 32)
	if err != nil || rowNum < 1 {
		return CellAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("row number must be positive: %q", address))
	}

	return CellAddress{Row: uint32(rowNum - 1), Column: uint32(letter - 'A')}, nil
}

// MustParseAddress is ParseAddress for literals known to be valid
func MustParseAddress(address string) CellAddress {
	addr, err := ParseAddress(address)
	if err != nil {
		panic(err)
	}
	return addr
}

// RangeAddress represents a rectangle of cells. Start is always the
// top-left corner and End the bottom-right one.
type RangeAddress struct {
	Start CellAddress
	End   CellAddress
}

// NewRangeAddress builds a normalized range from two arbitrary corners
func NewRangeAddress(a, b CellAddress) RangeAddress {
	return RangeAddress{
		Start: CellAddress{Row: min(a.Row, b.Row), Column: min(a.Column, b.Column)},
		End:   CellAddress{Row: max(a.Row, b.Row), Column: max(a.Column, b.Column)},
	}
}

// ParseRange parses "A1:B3" into a normalized range
func ParseRange(input string) (RangeAddress, error) {
	first, second, found := strings.Cut(input, ":")
	if !found {
		return RangeAddress{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid range format: %q", input))
	}
	start, err := ParseAddress(first)
	if err != nil {
		return RangeAddress{}, err
	}
	end, err := ParseAddress(second)
	if err != nil {
		return RangeAddress{}, err
	}
	return NewRangeAddress(start, end), nil
}

func (r RangeAddress) String() string {
	return r.Start.String() + ":" + r.End.String()
}

// Contains checks if a cell is within the range
func (r RangeAddress) Contains(addr CellAddress) bool {
	return addr.Row >= r.Start.Row && addr.Row <= r.End.Row &&
		addr.Column >= r.Start.Column && addr.Column <= r.End.Column
}

// Size returns the number of cells covered by the range
func (r RangeAddress) Size() int {
	return (int(r.End.Row) - int(r.Start.Row) + 1) * (int(r.End.Column) - int(r.Start.Column) + 1)
}

// Cells iterates every address of the range in row-major order
func (r RangeAddress) Cells() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Column; col <= r.End.Column; col++ {
				if !yield(CellAddress{Row: row, Column: col}) {
					return
				}
			}
		}
	}
}

// Range is what a RangeNode evaluates to
type Range interface {
	Address() RangeAddress
	IterateValues() iter.Seq[Primitive]
}

// CellRange is a Range backed by an evaluation context
type CellRange struct {
	addr RangeAddress
	ctx  Context
}

func (cr *CellRange) Address() RangeAddress {
	return cr.addr
}

// IterateValues yields the value of every cell in the range, nil for
// empty cells
func (cr *CellRange) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for addr := range cr.addr.Cells() {
			if !yield(cr.ctx.Value(addr)) {
				return
			}
		}
	}
}
