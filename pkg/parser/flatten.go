package parser

import (
	"fmt"
	"strings"

	"juc/pkg/lang"
)

// expr is a parsed expression before it is flattened into elements.
type expr interface {
	String() string
}

// leaf is a literal, a variable or a constant-indexed array element.
type leaf struct{ text string }

type binary struct {
	op          lang.TokenKind
	left, right expr
}

type call struct {
	name string
	args []expr
}

func (l *leaf) String() string { return l.text }

func (b *binary) String() string { return fmt.Sprintf("(%s %s %s)", b.left, b.op, b.right) }

func (c *call) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	return c.name + "(" + strings.Join(args, ", ") + ")"
}

func open() lang.Element    { return mark(lang.BracketOpen) }
func closing() lang.Element { return mark(lang.BracketClose) }

func mark(k lang.TokenKind) lang.Element { return &lang.Other{Token: lang.Mark(k)} }

// flatten emits e as a statement unit:
//
//	a + (b * c)  ->  Operation(+, a, open) Operation(*, b, c) close
//	f(x, y + 1)  ->  Other(f) Parameters(x open Operation(+, y, 1) close)
func flatten(e expr) []lang.Element {
	switch n := e.(type) {
	case *leaf:
		return []lang.Element{&lang.Other{Token: lang.Lit(n.text)}}
	case *binary:
		left, lrange := valueToken(n.left)
		right, rrange := valueToken(n.right)
		out := []lang.Element{&lang.Operation{Operator: n.op, Left: left, Right: right}}
		out = append(out, lrange...)
		return append(out, rrange...)
	case *call:
		params := &lang.Parameters{}
		for _, a := range n.args {
			if l, ok := a.(*leaf); ok {
				params.Elements = append(params.Elements, &lang.Other{Token: lang.Lit(l.text)})
				continue
			}
			params.Elements = append(params.Elements, open())
			params.Elements = append(params.Elements, flatten(a)...)
			params.Elements = append(params.Elements, closing())
		}
		return []lang.Element{&lang.Other{Token: lang.Lit(n.name)}, params}
	}
	panic(fmt.Sprintf("flatten: unknown expression %T", e))
}

// valueToken returns the token an element carries for e. Anything but a leaf
// becomes BracketOpen, and the returned elements are its range including the
// closing marker.
func valueToken(e expr) (lang.Token, []lang.Element) {
	if l, ok := e.(*leaf); ok {
		return lang.Lit(l.text), nil
	}
	return lang.Mark(lang.BracketOpen), append(flatten(e), closing())
}
