package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is a parsed formula expression. the tree is walked for
// evaluation, dependency extraction and volatile detection.
type ASTNode interface {
	Eval(e *Evaluator) (Primitive, error)
	GetPosition() NodePosition
	ToString() string
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(e *Evaluator) (Primitive, error) {
	return n.Value, nil
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(e *Evaluator) (Primitive, error) {
	return n.Value, nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(e *Evaluator) (Primitive, error) {
	return n.Value, nil
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// CellRefNode represents a reference to a single cell
type CellRefNode struct {
	Addr     CellAddress
	Position NodePosition
}

func (n *CellRefNode) Eval(e *Evaluator) (Primitive, error) {
	if err := e.checkReference(n.Addr); err != nil {
		return nil, err
	}
	return e.ctx.Value(n.Addr), nil
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Addr.String()
}

// RangeNode represents a rectangle of cells
type RangeNode struct {
	Range    RangeAddress
	Position NodePosition
}

func (n *RangeNode) Eval(e *Evaluator) (Primitive, error) {
	if err := e.checkReference(n.Range.End); err != nil {
		return nil, err
	}
	return &CellRange{addr: n.Range, ctx: e.ctx}, nil
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	return n.Range.String()
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(e *Evaluator) (Primitive, error) {
	leftVal := e.operand(n.Left)
	rightVal := e.operand(n.Right)

	// propagate errors
	if err := checkForError(leftVal); err != nil {
		return nil, err
	}
	if err := checkForError(rightVal); err != nil {
		return nil, err
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		return arithmetic(n.Op, leftVal, rightVal)

	case BinOpConcat:
		if isRange(leftVal) || isRange(rightVal) {
			return nil, NewSpreadsheetError(ErrorCodeError, "range used as a value")
		}
		return toString(leftVal) + toString(rightVal), nil
	}

	if isRange(leftVal) || isRange(rightVal) {
		return nil, NewSpreadsheetError(ErrorCodeError, "range used as a value")
	}
	cmp := comparePrimitives(leftVal, rightVal)
	switch n.Op {
	case BinOpEqual:
		return cmp == 0, nil
	case BinOpNotEqual:
		return cmp != 0, nil
	case BinOpLess:
		return cmp < 0, nil
	case BinOpLessEqual:
		return cmp <= 0, nil
	case BinOpGreater:
		return cmp > 0, nil
	case BinOpGreaterEqual:
		return cmp >= 0, nil
	default:
		return nil, NewSpreadsheetError(ErrorCodeError, "unknown operator")
	}
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op.String(), n.Right.ToString())
}

func (op BinaryOp) String() string {
	switch op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	case BinOpPower:
		return "^"
	case BinOpConcat:
		return "&"
	case BinOpEqual:
		return "="
	case BinOpNotEqual:
		return "<>"
	case BinOpLess:
		return "<"
	case BinOpLessEqual:
		return "<="
	case BinOpGreater:
		return ">"
	case BinOpGreaterEqual:
		return ">="
	default:
		return "?"
	}
}

// arithmetic applies a numeric operator. nil reads as 0, non-numeric text
// and division by zero fail.
func arithmetic(op BinaryOp, left, right Primitive) (Primitive, error) {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)
	if !leftOk || !rightOk {
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("%s requires numeric values", op.String()))
	}

	var result float64
	switch op {
	case BinOpAdd:
		result = leftNum + rightNum
	case BinOpSubtract:
		result = leftNum - rightNum
	case BinOpMultiply:
		result = leftNum * rightNum
	case BinOpDivide:
		if rightNum == 0 {
			return nil, NewSpreadsheetError(ErrorCodeError, "division by zero")
		}
		result = leftNum / rightNum
	case BinOpPower:
		result = math.Pow(leftNum, rightNum)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, NewSpreadsheetError(ErrorCodeError, "result is not a finite number")
	}
	return result, nil
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(e *Evaluator) (Primitive, error) {
	val := e.operand(n.Operand)
	if err := checkForError(val); err != nil {
		return nil, err
	}

	num, ok := toNumber(val)
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeError, "unary operator requires a numeric value")
	}

	switch n.Op {
	case UnaryOpPlus:
		return num, nil
	case UnaryOpMinus:
		return -num, nil
	case UnaryOpPercent:
		return num / 100.0, nil
	default:
		return nil, NewSpreadsheetError(ErrorCodeError, "unknown unary operator")
	}
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	case UnaryOpPercent:
		return fmt.Sprintf("(%s%%)", n.Operand.ToString())
	default:
		return "+" + n.Operand.ToString()
	}
}

// FunctionCallNode represents a call to one of the built-in functions. the
// kind is resolved at parse time.
type FunctionCallNode struct {
	Kind     FunctionKind
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(e *Evaluator) (Primitive, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return nil, NewSpreadsheetError(ErrorCodeCircular, fmt.Sprintf("formula nests deeper than %d calls", MaxDepth))
	}

	// IF only evaluates the branch it picks
	if n.Kind == FuncIf {
		return n.evalIf(e)
	}

	args := make([]Primitive, len(n.Args))
	for i, argNode := range n.Args {
		args[i] = e.operand(argNode)
	}
	return e.functions.Call(n.Kind, args...)
}

func (n *FunctionCallNode) evalIf(e *Evaluator) (Primitive, error) {
	cond := e.operand(n.Args[0])
	if err := checkForError(cond); err != nil {
		return nil, err
	}
	if isRange(cond) {
		return nil, NewSpreadsheetError(ErrorCodeError, "IF condition cannot be a range")
	}

	if isTruthy(cond) {
		return e.scalar(n.Args[1])
	}
	if len(n.Args) == 3 {
		return e.scalar(n.Args[2])
	}
	return false, nil
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Kind.String(), strings.Join(args, ","))
}

// NewParser creates a new parser over lexed tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses a formula (including the leading '=') into an AST
func Parse(formula string) (ASTNode, error) {
	tokens, lexErrors := NewLexer(formula).Tokenize()
	if len(lexErrors) > 0 {
		return nil, NewSpreadsheetError(ErrorCodeError, lexErrors[0])
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, NewSpreadsheetError(ErrorCodeError, "no tokens to parse")
	}

	if p.tokens[p.pos].Type != TokenEquals {
		return nil, NewSpreadsheetError(ErrorCodeError, "formula must start with '='")
	}
	p.pos++

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.tokens) && p.tokens[p.pos].Type != TokenEOF {
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("unexpected token after expression: %s", p.tokens[p.pos].Value))
	}

	return node, nil
}

func (p *Parser) peekBinaryOp() (string, bool) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenBinaryOp {
		return "", false
	}
	return p.tokens[p.pos].Value, true
}

func binaryNode(op BinaryOp, left, right ASTNode) *BinaryOpNode {
	return &BinaryOpNode{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		value, ok := p.peekBinaryOp()
		if !ok {
			return left, nil
		}

		var op BinaryOp
		switch value {
		case "=":
			op = BinOpEqual
		case "<>", "!=":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = binaryNode(op, left, right)
	}
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		value, ok := p.peekBinaryOp()
		if !ok || value != "&" {
			return left, nil
		}

		p.pos++
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = binaryNode(BinOpConcat, left, right)
	}
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		value, ok := p.peekBinaryOp()
		if !ok {
			return left, nil
		}

		var op BinaryOp
		switch value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = binaryNode(op, left, right)
	}
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		value, ok := p.peekBinaryOp()
		if !ok {
			return left, nil
		}

		var op BinaryOp
		switch value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = binaryNode(op, left, right)
	}
}

// parsePower handles exponentiation, right-associative
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	if value, ok := p.peekBinaryOp(); ok && value == "^" {
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return binaryNode(BinOpPower, left, right), nil
	}

	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewSpreadsheetError(ErrorCodeError, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}

	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenUnaryPostfixOp {
		endPos := p.tokens[p.pos].Pos + 1
		p.pos++
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: endPos},
		}
	}

	return node, nil
}

// parsePrimary handles literals, references, functions and parentheses
func (p *Parser) parsePrimary() (ASTNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, NewSpreadsheetError(ErrorCodeError, "unexpected end of expression")
	}

	tok := p.tokens[p.pos]
	position := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(val, 0) {
			return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val, Position: position}, nil

	case TokenString:
		p.pos++
		position.End += 2 // quotes
		return &StringNode{Value: tok.Value, Position: position}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Position: position}, nil

	case TokenCell:
		p.pos++
		addr, err := ParseAddress(tok.Value)
		if err != nil {
			return nil, NewSpreadsheetError(ErrorCodeError, err.Error())
		}
		return &CellRefNode{Addr: addr, Position: position}, nil

	case TokenRange:
		p.pos++
		rng, err := ParseRange(tok.Value)
		if err != nil {
			return nil, NewSpreadsheetError(ErrorCodeError, err.Error())
		}
		return &RangeNode{Range: rng, Position: position}, nil

	case TokenIdentifier:
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("unknown name: %s", tok.Value))

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenRightParen {
			return nil, NewSpreadsheetError(ErrorCodeError, "expected closing parenthesis")
		}
		p.pos++
		return node, nil

	default:
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses a function call and checks its arity
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.tokens[p.pos]
	kind, ok := LookupFunction(funcTok.Value)
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeError, fmt.Sprintf("unknown function: %s", funcTok.Value))
	}
	p.pos++

	if p.pos >= len(p.tokens) || p.tokens[p.pos].Type != TokenLeftParen {
		return nil, NewSpreadsheetError(ErrorCodeError, "expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}
	if p.pos < len(p.tokens) && p.tokens[p.pos].Type == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.pos >= len(p.tokens) {
				return nil, NewSpreadsheetError(ErrorCodeError, "unexpected end in function arguments")
			}
			if p.tokens[p.pos].Type == TokenRightParen {
				p.pos++
				break
			}
			if p.tokens[p.pos].Type != TokenComma {
				return nil, NewSpreadsheetError(ErrorCodeError, "expected ',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	if err := kind.checkArity(len(args)); err != nil {
		return nil, err
	}

	return &FunctionCallNode{
		Kind:     kind,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
	}, nil
}

// comparePrimitives compares two primitive values. returns -1 if left < right,
// 0 if equal, 1 if left > right
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	leftNum, leftIsNum := left.(float64)
	rightNum, rightIsNum := right.(float64)
	if leftIsNum && rightIsNum {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		}
		return 0
	}

	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)
	if leftIsBool && rightIsBool {
		switch {
		case leftBool == rightBool:
			return 0
		case !leftBool:
			return -1
		}
		return 1
	}

	return strings.Compare(toString(left), toString(right))
}
