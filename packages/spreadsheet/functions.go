package spreadsheet

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// NowLayout is how NOW() renders the clock
const NowLayout = "2006-01-02 15:04:05"

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// FunctionKind is the closed set of functions a formula may call
type FunctionKind uint8

const (
	FuncUnknown FunctionKind = iota
	FuncSum
	FuncAverage
	FuncMax
	FuncMin
	FuncCount
	FuncIf
	FuncConcatenate
	FuncNow
	FuncRand
)

var functionNames = map[string]FunctionKind{
	"SUM":         FuncSum,
	"AVERAGE":     FuncAverage,
	"MAX":         FuncMax,
	"MIN":         FuncMin,
	"COUNT":       FuncCount,
	"IF":          FuncIf,
	"CONCATENATE": FuncConcatenate,
	"NOW":         FuncNow,
	"RAND":        FuncRand,
}

// LookupFunction resolves a function name, case-insensitively
func LookupFunction(name string) (FunctionKind, bool) {
	kind, ok := functionNames[strings.ToUpper(name)]
	return kind, ok
}

func (k FunctionKind) String() string {
	switch k {
	case FuncSum:
		return "SUM"
	case FuncAverage:
		return "AVERAGE"
	case FuncMax:
		return "MAX"
	case FuncMin:
		return "MIN"
	case FuncCount:
		return "COUNT"
	case FuncIf:
		return "IF"
	case FuncConcatenate:
		return "CONCATENATE"
	case FuncNow:
		return "NOW"
	case FuncRand:
		return "RAND"
	default:
		return "UNKNOWN"
	}
}

// Volatile reports whether the function can change without any cell edit
func (k FunctionKind) Volatile() bool {
	return k == FuncNow || k == FuncRand
}

// IsRangeFunction reports whether the function aggregates over ranges
func (k FunctionKind) IsRangeFunction() bool {
	switch k {
	case FuncSum, FuncAverage, FuncMax, FuncMin, FuncCount:
		return true
	default:
		return false
	}
}

func (k FunctionKind) checkArity(n int) error {
	var ok bool
	var want string
	switch {
	case k == FuncIf:
		ok, want = n == 2 || n == 3, "2 or 3 arguments"
	case k.Volatile():
		ok, want = n == 0, "no arguments"
	default:
		ok, want = n >= 1, "at least 1 argument"
	}
	if !ok {
		return NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("%s takes %s, got %d", k, want, n))
	}
	return nil
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions with default
// implementations
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return NewBuiltInFunctions(&WallClock{}, &DefaultRandomGenerator{})
}

// NewBuiltInFunctions creates a BuiltInFunctions with the given clock and rng,
// nil selects the default
func NewBuiltInFunctions(clock Clock, rng RandomGenerator) *BuiltInFunctions {
	if clock == nil {
		clock = &WallClock{}
	}
	if rng == nil {
		rng = &DefaultRandomGenerator{}
	}
	return &BuiltInFunctions{clock: clock, rng: rng}
}

// checkForError returns the error if value is a *SpreadsheetError, nil otherwise
func checkForError(value Primitive) *SpreadsheetError {
	if err, ok := value.(*SpreadsheetError); ok {
		return err
	}
	return nil
}

// Call invokes a built-in function with already evaluated arguments. IF is
// handled by the evaluator since its branches are lazy.
func (bf *BuiltInFunctions) Call(kind FunctionKind, args ...Primitive) (Primitive, error) {
	switch kind {
	case FuncSum:
		return bf.SUM(args...)
	case FuncAverage:
		return bf.AVERAGE(args...)
	case FuncMax:
		return bf.MAX(args...)
	case FuncMin:
		return bf.MIN(args...)
	case FuncCount:
		return bf.COUNT(args...)
	case FuncIf:
		return bf.IF(args...)
	case FuncConcatenate:
		return bf.CONCATENATE(args...)
	case FuncNow:
		return bf.NOW(args...)
	case FuncRand:
		return bf.RAND(args...)
	default:
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("unknown function: %s", kind))
	}
}

// numbers collects the numeric inputs of a range function. only float64
// values count, everything else inside a range is skipped. error scalars
// propagate.
func numbers(args []Primitive) ([]float64, error) {
	var nums []float64
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if r, ok := arg.(Range); ok {
			for value := range r.IterateValues() {
				if num, ok := value.(float64); ok {
					nums = append(nums, num)
				}
			}
			continue
		}
		if num, ok := arg.(float64); ok {
			nums = append(nums, num)
		}
	}
	return nums, nil
}

func (bf *BuiltInFunctions) SUM(args ...Primitive) (Primitive, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	return total(nums), nil
}

func (bf *BuiltInFunctions) AVERAGE(args ...Primitive) (Primitive, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	return total(nums) / float64(len(nums)), nil
}

// total is the unrounded sum shared by SUM and AVERAGE
func total(nums []float64) float64 {
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return sum
}

func (bf *BuiltInFunctions) MAX(args ...Primitive) (Primitive, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := math.Inf(-1)
	for _, num := range nums {
		result = max(result, num)
	}
	return result, nil
}

func (bf *BuiltInFunctions) MIN(args ...Primitive) (Primitive, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	result := math.Inf(1)
	for _, num := range nums {
		result = min(result, num)
	}
	return result, nil
}

func (bf *BuiltInFunctions) COUNT(args ...Primitive) (Primitive, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	return float64(len(nums)), nil
}

// IF over already evaluated arguments, used when a caller has no AST
func (bf *BuiltInFunctions) IF(args ...Primitive) (Primitive, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewSpreadsheetError(ErrorCodeError, "IF takes 2 or 3 arguments")
	}
	if err := checkForError(args[0]); err != nil {
		return nil, err
	}
	if isTruthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return false, nil
}

func (bf *BuiltInFunctions) CONCATENATE(args ...Primitive) (Primitive, error) {
	var result strings.Builder
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if isRange(arg) {
			return nil, NewSpreadsheetError(ErrorCodeError, "CONCATENATE does not accept ranges")
		}
		result.WriteString(toString(arg))
	}
	return result.String(), nil
}

func (bf *BuiltInFunctions) NOW(args ...Primitive) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeError, "NOW takes no arguments")
	}
	return bf.clock.Now().Local().Format(NowLayout), nil
}

func (bf *BuiltInFunctions) RAND(args ...Primitive) (Primitive, error) {
	if len(args) != 0 {
		return nil, NewSpreadsheetError(ErrorCodeError, "RAND takes no arguments")
	}
	return bf.rng.Float64(), nil
}

func isRange(value Primitive) bool {
	_, ok := value.(Range)
	return ok
}

// toNumber converts value to number for arithmetic, returning ok=false if
// conversion fails. empty reads as 0.
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		return parseNumber(v)
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// toString converts value to its display string
func toString(value Primitive) string {
	return FormatValue(value)
}

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}
