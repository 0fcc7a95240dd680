// Package lang defines the element tree that the frontend hands to the code
// generator: tokens, elements, types and the variable and function
// descriptors they carry.
//
// A source file is a flat []Element. Sub-expressions and blocks are ranges of
// that slice: an element carrying a BracketOpen token opens a level which the
// matching Other(BracketClose) closes.
package lang

import (
	"fmt"
	"strings"
)

// Element is one node of the parsed program.
type Element interface {
	element()
	String() string
}

// Assembly is a raw line of inline assembly, emitted verbatim.
type Assembly struct {
	Code string
}

// Operation is a binary operation or an assignment.
//
//	x = y + 1
//	    ^^^^^  Operation{Operator: Plus, Left: y, Right: 1}
type Operation struct {
	Operator TokenKind
	Left     Token
	Right    Token
}

// Return ends the current function; Value is NoValue for a bare "ret".
type Return struct {
	Value Token
}

// Array holds the literal values of an array assignment.
type Array struct {
	Values []Token
}

// Parameters holds call arguments. Each argument is a single Other element or
// a bracketed range.
type Parameters struct {
	Elements []Element
}

// Other is a standalone token: a keyword marker, a delimiter, a value or a
// function call target.
type Other struct {
	Token Token
}

// Variable is a declared variable. Offset is the byte distance from the frame
// base, assigned by the symbol table when the declaration is lowered.
type Variable struct {
	ID     string
	Type   Type
	Value  Token
	Offset int
	Static bool
}

// Function is a function declaration. Its body follows it, either as a
// bracketed range or flat up to the next function.
type Function struct {
	ID         string
	Params     []Variable
	ReturnType string
}

func (*Assembly) element()   {}
func (*Operation) element()  {}
func (*Return) element()     {}
func (*Array) element()      {}
func (*Parameters) element() {}
func (*Other) element()      {}
func (*Variable) element()   {}
func (*Function) element()   {}

func (a *Assembly) String() string { return fmt.Sprintf("asm %q", a.Code) }

func (o *Operation) String() string {
	return fmt.Sprintf("(%s %s %s)", o.Left, o.Operator, o.Right)
}

func (r *Return) String() string {
	if r.Value.IsNone() {
		return "ret"
	}
	return "ret " + r.Value.String()
}

func (a *Array) String() string {
	vals := make([]string, len(a.Values))
	for i, v := range a.Values {
		vals[i] = v.String()
	}
	return "[" + strings.Join(vals, ", ") + "]"
}

func (p *Parameters) String() string {
	args := make([]string, len(p.Elements))
	for i, e := range p.Elements {
		args[i] = e.String()
	}
	return "params(" + strings.Join(args, " ") + ")"
}

func (o *Other) String() string { return o.Token.String() }

func (v *Variable) String() string {
	kw := "let"
	if v.Static {
		kw = "static"
	}
	if v.Value.IsNone() {
		return fmt.Sprintf("%s %s: %s", kw, v.ID, v.Type)
	}
	return fmt.Sprintf("%s %s: %s = %s", kw, v.ID, v.Type, v.Value)
}

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.ID + ": " + p.Type.String()
	}
	s := fmt.Sprintf("func %s(%s)", f.ID, strings.Join(params, ", "))
	if f.ReturnType != "" {
		s += ": " + f.ReturnType
	}
	return s
}

// Opens is the number of sub-expression levels e opens.
func Opens(e Element) int {
	switch n := e.(type) {
	case *Other:
		if n.Token.Kind == BracketOpen {
			return 1
		}
	case *Operation:
		count := 0
		if n.Left.Kind == BracketOpen {
			count++
		}
		if n.Right.Kind == BracketOpen {
			count++
		}
		return count
	case *Variable:
		if n.Value.Kind == BracketOpen {
			return 1
		}
	case *Return:
		if n.Value.Kind == BracketOpen {
			return 1
		}
	}
	return 0
}

// IsClose reports whether e closes a sub-expression level.
func IsClose(e Element) bool {
	o, ok := e.(*Other)
	return ok && o.Token.Kind == BracketClose
}

// IsMark reports whether e is the standalone marker of kind k.
func IsMark(e Element, k TokenKind) bool {
	o, ok := e.(*Other)
	return ok && o.Token.Kind == k
}

// MatchClose finds the element closing the level opened just before from.
// Nested opens are counted; the first close at depth zero is returned.
func MatchClose(elems []Element, from int) (int, error) {
	depth := 0
	for i := from; i < len(elems); i++ {
		if IsClose(elems[i]) {
			if depth == 0 {
				return i, nil
			}
			depth--
			continue
		}
		depth += Opens(elems[i])
	}
	return 0, fmt.Errorf("unbalanced brackets: no close for range starting at %d", from)
}
