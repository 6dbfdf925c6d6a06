package spreadsheet

import (
	"errors"
	"fmt"
	"testing"
)

func parseFormula(formula string) bool {
	lexer := NewLexer(formula)
	tokens, lexErrors := lexer.Tokenize()

	if len(lexErrors) > 0 {
		return false
	}

	if len(tokens) == 0 {
		return false
	}

	_, err := NewParser(tokens).Parse()
	return err == nil
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=a1",
		"=SUM(A1:A10)",
		"=sum(a1:a10)",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"=SUM(1,2,3)",
		"=AVERAGE(A1:B2)",
		"=IF(A1>0,1)",
		"=IF(A1>0,1,2)",
		"=NOW()",
		"=RAND()",
		"= 1 + 2 ",
		"=-A1",
		"=50%",
		"=(1+2)*3",
		"=1<>2",
		"=1!=2",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		`="a"&"b"`,
		"=TRUE",
		"=.5",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if !parseFormula(formula) {
				t.Errorf("Failed to parse valid formula: %s", formula)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"",
		"1+2",
		"=",
		"=SUM(",
		"=SUM(A1:A2))",
		"=A1:",
		`="hello`,
		"=1+",
		"=1 2",
		"=AA1",
		"=A0",
		"=FOO(1)",
		"=SUM()",
		"=IF(1)",
		"=IF(1,2,3,4)",
		"=NOW(1)",
		"=RAND(A1)",
		"=myname",
		"=1!2",
		"=#",
		"=,",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if parseFormula(formula) {
				t.Errorf("Expected formula to fail but it succeeded: %s", formula)
			}
		})
	}
}

func TestParserToString(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=1-2-3", "((1-2)-3)"},
		{"=2^3^2", "(2^(3^2))"},
		{"=-A1", "-A1"},
		{"=5%", "(5%)"},
		{"=a1&b2", "(A1&B2)"},
		{"=1!=2", "(1<>2)"},
		{"=sum(b2:a1)", "SUM(A1:B2)"},
		{`=IF(A1>=10,"big","small")`, `IF((A1>=10),"big","small")`},
		{`="say ""hi"""`, `"say ""hi"""`},
		{"=TRUE", "TRUE"},
		{"=NOW()", "NOW()"},
		{"=1.5e2", "150"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			node, err := Parse(tt.formula)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.formula, err)
			}
			if got := node.ToString(); got != tt.want {
				t.Errorf("ToString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParserFunctionKinds(t *testing.T) {
	tests := map[string]FunctionKind{
		"=SUM(A1)":          FuncSum,
		"=average(A1)":      FuncAverage,
		"=MAX(A1)":          FuncMax,
		"=MIN(A1)":          FuncMin,
		"=COUNT(A1)":        FuncCount,
		"=IF(A1,1)":         FuncIf,
		`=CONCATENATE("a")`: FuncConcatenate,
		"=NOW()":            FuncNow,
		"=RAND()":           FuncRand,
	}

	for formula, want := range tests {
		t.Run(formula, func(t *testing.T) {
			node, err := Parse(formula)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", formula, err)
			}
			call, ok := node.(*FunctionCallNode)
			if !ok {
				t.Fatalf("Parse(%q) = %T, want *FunctionCallNode", formula, node)
			}
			if call.Kind != want {
				t.Errorf("kind = %v, want %v", call.Kind, want)
			}
			if call.Kind.Volatile() != (want == FuncNow || want == FuncRand) {
				t.Errorf("%v volatile = %v", call.Kind, call.Kind.Volatile())
			}
		})
	}

	if _, ok := LookupFunction("VLOOKUP"); ok {
		t.Error("LookupFunction(VLOOKUP) succeeded")
	}
	if FuncUnknown.String() != "UNKNOWN" {
		t.Errorf("FuncUnknown.String() = %q", FuncUnknown.String())
	}
}

func TestParserErrorMessages(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=FOO(1)", "unknown function: FOO"},
		{"=AA1", "unknown name: AA1"},
		{"=SUM()", "SUM takes at least 1 argument, got 0"},
		{"=IF(1)", "IF takes 2 or 3 arguments, got 1"},
		{"=RAND(1)", "RAND takes no arguments, got 1"},
		{"=SUM(", "unbalanced parentheses: missing closing parenthesis"},
		{"=1)", "unbalanced parentheses: too many closing parentheses"},
		{"=1+", "unexpected end of formula"},
		{"=1 2", "unexpected number: 2"},
		{`="a`, "unclosed string literal"},
		{"1", "formula must start with '='"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := Parse(tt.formula)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded", tt.formula)
			}
			var spreadsheetErr *SpreadsheetError
			if !errors.As(err, &spreadsheetErr) {
				t.Fatalf("Parse(%q) error = %T, want *SpreadsheetError", tt.formula, err)
			}
			if spreadsheetErr.ErrorCode != ErrorCodeError {
				t.Errorf("error code = %v, want %v", spreadsheetErr.ErrorCode, ErrorCodeError)
			}
			if spreadsheetErr.Message != tt.want {
				t.Errorf("message = %q, want %q", spreadsheetErr.Message, tt.want)
			}
		})
	}
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		formula string
		want    []TokenType
	}{
		{"=1+2", []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"=-1", []TokenType{TokenEquals, TokenUnaryPrefixOp, TokenNumber, TokenEOF}},
		{"=1-1", []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"=A1:B2", []TokenType{TokenEquals, TokenRange, TokenEOF}},
		{"=SUM(A1,2)", []TokenType{TokenEquals, TokenFunction, TokenLeftParen, TokenCell, TokenComma, TokenNumber, TokenRightParen, TokenEOF}},
		{"=5%", []TokenType{TokenEquals, TokenNumber, TokenUnaryPostfixOp, TokenEOF}},
		{`="x"`, []TokenType{TokenEquals, TokenString, TokenEOF}},
		{"=false", []TokenType{TokenEquals, TokenBoolean, TokenEOF}},
		{"=1>=2", []TokenType{TokenEquals, TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			tokens, errs := NewLexer(tt.formula).Tokenize()
			if len(errs) > 0 {
				t.Fatalf("Tokenize(%q) errors: %v", tt.formula, errs)
			}
			if len(tokens) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %d tokens, want %d", tt.formula, len(tokens), len(tt.want))
			}
			for i, tok := range tokens {
				if tok.Type != tt.want[i] {
					t.Errorf("token %d = %v, want %v", i, tok.Type, tt.want[i])
				}
			}
		})
	}

	t.Run("Normalized values", func(t *testing.T) {
		tokens, _ := NewLexer("=sum(a1:b2)&c3<=true").Tokenize()
		var values []string
		for _, tok := range tokens {
			values = append(values, tok.Value)
		}
		want := "[= SUM ( A1:B2 ) & C3 <= TRUE ]"
		if got := fmt.Sprint(values); got != want {
			t.Errorf("values = %s, want %s", got, want)
		}
	})
}

func TestEvaluate(t *testing.T) {
	ctx := MapContext{
		MustParseAddress("A1"): 10.0,
		MustParseAddress("A2"): 20.0,
		MustParseAddress("A3"): "text",
	}
	functions := NewBuiltInFunctions(&fixedClock{now: testTime}, &sequenceRandom{values: []float64{0.5}})

	tests := []struct {
		formula string
		want    Primitive
	}{
		{"plain text", "plain text"},
		{"", ""},
		{"=A1+A2", 30.0},
		{"=SUM(A1:A3)", 30.0},
		{"=COUNT(A1:A3)", 2.0},
		{"=A1&A3", "10text"},
		{"=RAND()*2", 1.0},
		{"=NOW()", "2024-03-15 09:30:00"},
		{"=IF(A1<A2,A3)", "text"},
		{"=A9", nil},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			if got := EvaluateWith(tt.formula, ctx, functions); got != tt.want {
				t.Errorf("EvaluateWith(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}

	t.Run("Errors", func(t *testing.T) {
		for _, formula := range []string{"=A3*2", "=1/0", "=SUM(", "=A1:A2"} {
			got := Evaluate(formula, ctx)
			if err, ok := got.(*SpreadsheetError); !ok || err.ErrorCode != ErrorCodeError {
				t.Errorf("Evaluate(%q) = %v, want #ERROR", formula, got)
			}
		}
	})

	t.Run("Nil context", func(t *testing.T) {
		if got := Evaluate("=A1+1", nil); got != 1.0 {
			t.Errorf("Evaluate with nil context = %v, want 1", got)
		}
	})
}

func TestValidateFormula(t *testing.T) {
	if err := ValidateFormula("=SUM(A1:B2)*2"); err != nil {
		t.Errorf("ValidateFormula failed: %v", err)
	}

	err := ValidateFormula("=SUM(")
	if CodeOf(err) != InvalidArgument {
		t.Fatalf("ValidateFormula error code = %v, want %v", CodeOf(err), InvalidArgument)
	}
	var spreadsheetErr *SpreadsheetError
	if !errors.As(err, &spreadsheetErr) {
		t.Errorf("ValidateFormula error does not wrap the parse error: %v", err)
	}
}

func TestDependencies(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2", "[]"},
		{"=B2+A1", "[A1 B2]"},
		{"=A1+A1", "[A1]"},
		{"=SUM(A1:B2)+A1", "[A1 B1 A2 B2]"},
		{"=IF(C3>0,SUM(A1:A2),B1)", "[A1 B1 A2 C3]"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			deps, err := Dependencies(tt.formula)
			if err != nil {
				t.Fatalf("Dependencies(%q) failed: %v", tt.formula, err)
			}
			if got := fmt.Sprint(deps); got != tt.want {
				t.Errorf("Dependencies(%q) = %s, want %s", tt.formula, got, tt.want)
			}
		})
	}

	if _, err := Dependencies("=FOO()"); CodeOf(err) != InvalidArgument {
		t.Errorf("Dependencies of invalid formula = %v, want invalid_argument", err)
	}
	if _, err := Dependencies("=SUM(A1:Z4294967295)"); CodeOf(err) != OutOfRange {
		t.Errorf("Dependencies of huge range = %v, want out_of_range", err)
	}
	if deps, err := Dependencies("=SUM(A1:Z40000)"); err != nil || len(deps) != 26*40000 {
		t.Errorf("Dependencies of range at the cap = %d cells, %v", len(deps), err)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		want  CellAddress
		ok    bool
	}{
		{"A1", CellAddress{Row: 0, Column: 0}, true},
		{"b7", CellAddress{Row: 6, Column: 1}, true},
		{"Z1000", CellAddress{Row: 999, Column: 25}, true},
		{"A0", CellAddress{}, false},
		{"AA1", CellAddress{}, false},
		{"1A", CellAddress{}, false},
		{"A", CellAddress{}, false},
		{"A-1", CellAddress{}, false},
		{"", CellAddress{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseAddress(%q) failed: %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("ParseAddress(%q) = %v, want %v", tt.input, got, tt.want)
				}
				if got.String() != MustParseAddress(got.String()).String() {
					t.Errorf("address %v does not round trip", got)
				}
				return
			}
			if CodeOf(err) != InvalidArgument {
				t.Errorf("ParseAddress(%q) error = %v, want invalid_argument", tt.input, err)
			}
		})
	}

	t.Run("Range", func(t *testing.T) {
		rng, err := ParseRange("C3:A1")
		if err != nil {
			t.Fatal(err)
		}
		if rng.String() != "A1:C3" || rng.Size() != 9 {
			t.Errorf("range = %s size %d, want A1:C3 size 9", rng, rng.Size())
		}
		if !rng.Contains(MustParseAddress("B2")) || rng.Contains(MustParseAddress("D1")) {
			t.Error("Contains mismatch")
		}
		if _, err := ParseRange("A1"); CodeOf(err) != InvalidArgument {
			t.Errorf("ParseRange without colon = %v", err)
		}
	})
}
