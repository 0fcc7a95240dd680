package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind identifies the category of a token inside the element tree.
type TokenKind int

const (
	None TokenKind = iota // sentinel: no value

	Literal // catch-all payload: identifier, number, char or string literal

	// Keywords
	KwFunction
	KwReturn
	KwVariable
	KwStatic
	KwIf
	KwElse
	KwLoop
	KwBreak
	KwContinue
	KwExit
	KwPrint

	// Operators
	Assign
	Plus
	Minus
	Multiply
	Divide
	Equal
	NotEqual
	Less
	Greater
	LessEqual
	GreaterEqual

	// Paired delimiters
	BracketOpen  // starts a sub-expression or block range
	BracketClose // ends it
	ArrayOpen    // marks a value held by the following Array element
	ArrayClose
)

var tokenNames = [...]string{
	None:         "none",
	Literal:      "literal",
	KwFunction:   "func",
	KwReturn:     "ret",
	KwVariable:   "let",
	KwStatic:     "static",
	KwIf:         "if",
	KwElse:       "else",
	KwLoop:       "loop",
	KwBreak:      "break",
	KwContinue:   "continue",
	KwExit:       "exit",
	KwPrint:      "print",
	Assign:       "=",
	Plus:         "+",
	Minus:        "-",
	Multiply:     "*",
	Divide:       "/",
	Equal:        "==",
	NotEqual:     "!=",
	Less:         "<",
	Greater:      ">",
	LessEqual:    "<=",
	GreaterEqual: ">=",
	BracketOpen:  "(",
	BracketClose: ")",
	ArrayOpen:    "[",
	ArrayClose:   "]",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsComparison reports whether k is one of the six comparison operators.
func (k TokenKind) IsComparison() bool {
	switch k {
	case Equal, NotEqual, Less, Greater, LessEqual, GreaterEqual:
		return true
	}
	return false
}

// IsArithmetic reports whether k is one of the four arithmetic operators.
func (k TokenKind) IsArithmetic() bool {
	switch k {
	case Plus, Minus, Multiply, Divide:
		return true
	}
	return false
}

// Token is an atomic lexical unit of the element tree. It is a plain value and
// compares with == on kind and payload.
type Token struct {
	Kind TokenKind
	Text string // payload, only meaningful for Literal
}

// Lit wraps a literal or identifier payload.
func Lit(text string) Token { return Token{Kind: Literal, Text: text} }

// Mark returns the payload-free token of kind k.
func Mark(k TokenKind) Token { return Token{Kind: k} }

// NoValue is the "no value" marker.
var NoValue = Token{Kind: None}

func (t Token) IsNone() bool { return t.Kind == None }

func (t Token) String() string {
	if t.Kind == Literal {
		return t.Text
	}
	return t.Kind.String()
}

// ValueKind is how the code generator treats a token used as a value.
type ValueKind int

const (
	Identifier ValueKind = iota
	Value
	Expression
)

func (v ValueKind) String() string {
	switch v {
	case Identifier:
		return "identifier"
	case Value:
		return "value"
	case Expression:
		return "expression"
	}
	return fmt.Sprintf("ValueKind(%d)", int(v))
}

// Classify sorts a token into expression opener, literal value or identifier.
// Numbers, character literals and string literals are values.
func Classify(t Token) ValueKind {
	if t.Kind == BracketOpen {
		return Expression
	}
	if IsNumber(t.Text) {
		return Value
	}
	if strings.HasPrefix(t.Text, "'") || strings.HasPrefix(t.Text, `"`) {
		return Value
	}
	return Identifier
}

// IsNumber reports whether s is a signed decimal or 0x-prefixed integer, or a
// decimal float. Words such as "inf" are identifiers, not numbers.
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c == '-' || c == '+' {
		if len(s) == 1 {
			return false
		}
		c = s[1]
	}
	if c < '0' || c > '9' {
		return false
	}
	if _, err := strconv.ParseInt(s, 0, 64); err == nil {
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// IsString reports whether t is a double-quoted string literal.
func IsString(t Token) bool {
	return t.Kind == Literal && len(t.Text) >= 2 && strings.HasPrefix(t.Text, `"`) && strings.HasSuffix(t.Text, `"`)
}
