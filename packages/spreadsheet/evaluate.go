package spreadsheet

import "fmt"

// MaxDepth bounds nested function calls within one formula
const MaxDepth = 10

// Context resolves cell addresses to already known values
type Context interface {
	Value(addr CellAddress) Primitive
}

// Bounded is implemented by contexts with finite extents. references
// outside them evaluate to #ERROR without being read.
type Bounded interface {
	InBounds(addr CellAddress) bool
}

// MapContext is a Context over a plain map, missing cells are empty
type MapContext map[CellAddress]Primitive

func (m MapContext) Value(addr CellAddress) Primitive {
	return m[addr]
}

// Evaluator carries the state of one formula evaluation
type Evaluator struct {
	ctx       Context
	functions *BuiltInFunctions
	depth     int
}

// NewEvaluator creates an evaluator reading cells from ctx
func NewEvaluator(ctx Context, functions *BuiltInFunctions) *Evaluator {
	if functions == nil {
		functions = NewDefaultBuiltInFunctions()
	}
	if ctx == nil {
		ctx = MapContext(nil)
	}
	return &Evaluator{ctx: ctx, functions: functions}
}

// checkReference rejects addresses outside a bounded context
func (e *Evaluator) checkReference(addr CellAddress) error {
	if bounded, ok := e.ctx.(Bounded); ok && !bounded.InBounds(addr) {
		return NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("reference %s is outside the sheet", addr))
	}
	return nil
}

// operand evaluates a node and folds a returned error into an error value
func (e *Evaluator) operand(node ASTNode) Primitive {
	val, err := node.Eval(e)
	if err != nil {
		return errorValue(err)
	}
	return val
}

// scalar evaluates a node whose result must not be a range
func (e *Evaluator) scalar(node ASTNode) (Primitive, error) {
	val := e.operand(node)
	if err := checkForError(val); err != nil {
		return nil, err
	}
	if isRange(val) {
		return nil, NewSpreadsheetError(ErrorCodeError, "range used as a value")
	}
	return val, nil
}

// Eval evaluates a parsed formula to a final cell value. failures come
// back as *SpreadsheetError values.
func (e *Evaluator) Eval(node ASTNode) Primitive {
	e.depth = 0
	val, err := e.scalar(node)
	if err != nil {
		return errorValue(err)
	}
	return val
}

func errorValue(err error) *SpreadsheetError {
	if spreadsheetErr, ok := err.(*SpreadsheetError); ok {
		return spreadsheetErr
	}
	return NewSpreadsheetError(ErrorCodeError, err.Error())
}

// Evaluate evaluates formula text against ctx. text without a leading '='
// is returned unchanged, a formula that does not parse is #ERROR.
func Evaluate(formula string, ctx Context) Primitive {
	return EvaluateWith(formula, ctx, nil)
}

// EvaluateWith is Evaluate with explicit built-in functions
func EvaluateWith(formula string, ctx Context, functions *BuiltInFunctions) Primitive {
	if formula == "" || formula[0] != '=' {
		return formula
	}
	node, err := Parse(formula)
	if err != nil {
		return errorValue(err)
	}
	return NewEvaluator(ctx, functions).Eval(node)
}
