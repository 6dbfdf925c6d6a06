package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values
//   - string: text values
//   - bool: boolean values produced by comparisons and IF
//   - nil: empty cells
//   - *SpreadsheetError: sentinel error values (#ERROR, #CIRCULAR)
type Primitive any

// ErrorCode represents the sentinel error values a cell can display
type ErrorCode uint8

const (
	ErrorCodeError    ErrorCode = 1 // #ERROR - parse miss or arithmetic failure
	ErrorCodeCircular ErrorCode = 2 // #CIRCULAR - cycle or nesting depth exceeded
)

// String returns the sentinel displayed for the code
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeError:
		return "#ERROR"
	case ErrorCodeCircular:
		return "#CIRCULAR"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// SpreadsheetError is a formula failure stored as a cell value. the message
// carries detail for logs, the sentinel is what gets displayed.
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorCode.String()
}

// Sentinel returns the display string for the error
func (e *SpreadsheetError) Sentinel() string {
	return e.ErrorCode.String()
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = code.String()
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellType classifies the raw input of a cell
type CellType uint8

const (
	CellTypeEmpty   CellType = 0
	CellTypeText    CellType = 1
	CellTypeNumber  CellType = 2
	CellTypeFormula CellType = 3
)

func (t CellType) String() string {
	switch t {
	case CellTypeText:
		return "text"
	case CellTypeNumber:
		return "number"
	case CellTypeFormula:
		return "formula"
	default:
		return "empty"
	}
}

// Alignment is the horizontal alignment of a cell
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// CellFormat holds display formatting. it never affects evaluation.
type CellFormat struct {
	Bold       bool      `json:"bold,omitempty"`
	Italic     bool      `json:"italic,omitempty"`
	Underline  bool      `json:"underline,omitempty"`
	Color      string    `json:"color,omitempty"`
	Background string    `json:"background,omitempty"`
	FontSize   int       `json:"fontSize,omitempty"`
	Align      Alignment `json:"align,omitempty"`
}

// IsZero reports whether no formatting is set
func (f CellFormat) IsZero() bool {
	return f == CellFormat{}
}

// Cell represents a spreadsheet cell with its data and metadata
type Cell struct {
	Raw          string     // text as submitted
	Type         CellType   // classification of Raw
	Value        Primitive  // derived value
	Formula      string     // Raw, for formula cells only
	Format       CellFormat // display formatting
	LastModified time.Time
}

// classifyInput decides how raw input is stored. formulas have a leading
// '=', numbers must parse to a finite float, everything else is text.
func classifyInput(raw string) (CellType, Primitive) {
	if raw == "" {
		return CellTypeEmpty, nil
	}
	if raw[0] == '=' {
		return CellTypeFormula, nil
	}
	if num, ok := parseNumber(raw); ok {
		return CellTypeNumber, num
	}
	return CellTypeText, raw
}

// parseNumber parses trimmed numeric text, rejecting NaN and infinities
func parseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// FormatValue renders a primitive the way a cell displays it
func FormatValue(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return v
	case *SpreadsheetError:
		return v.Sentinel()
	default:
		return ""
	}
}
