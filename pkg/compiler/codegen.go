package compiler

import (
	"fmt"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

// Options controls one file's generation.
type Options struct {
	Module  string // label prefix of the file's functions and statics
	Target  Target // LinuxAMD64 when nil
	Library bool   // no entry stub
}

// CodeGen lowers the elements of one source file into a listing.
type CodeGen struct {
	opts Options
	tgt  Target
	cc   Convention

	out   *asm.Listing
	syms  *SymbolTable
	scope Scope

	condCount  int
	loopCount  int
	skipCount  int
	printCount int
	loops      []LoopLabel

	// testing is set while a conditional or loop test is lowered; a
	// comparison then records its operator in pendingCmp instead of
	// materialising a boolean.
	testing    bool
	pendingCmp lang.TokenKind
	depth      int // sub-expression nesting

	funcs   map[string]string // function id -> label
	defined map[string]bool   // labels defined in this file
	called  []string          // call targets in first-use order
	strs    map[string]string // string literal -> data label
}

// LoopLabel holds the labels of one loop instance.
type LoopLabel struct {
	Test string // where continue jumps to
	Core string
	End  string
}

func newCodeGen(opts Options) *CodeGen {
	if opts.Target == nil {
		opts.Target = LinuxAMD64{}
	}
	cg := &CodeGen{
		opts:    opts,
		tgt:     opts.Target,
		cc:      opts.Target.Convention(),
		out:     asm.NewListing(),
		syms:    NewSymbolTable(),
		funcs:   make(map[string]string),
		defined: make(map[string]bool),
		strs:    make(map[string]string),
	}
	cg.scope.Reset(opts.Module)
	return cg
}

func (cg *CodeGen) line(mnemonic string, ops ...asm.Operand) { cg.out.Line(mnemonic, ops...) }

func (cg *CodeGen) comment(format string, args ...any) { cg.out.Comment(format, args...) }

func (cg *CodeGen) label(name string) { cg.out.Label(name) }

// walk lowers elems in order. Each handler returns the index of the first
// element it did not consume.
func (cg *CodeGen) walk(elems []lang.Element) error {
	for i := 0; i < len(elems); {
		next, err := cg.step(elems, i)
		if err != nil {
			return err
		}
		i = next
	}
	return nil
}

func (cg *CodeGen) step(elems []lang.Element, i int) (int, error) {
	switch n := elems[i].(type) {
	case *lang.Assembly:
		cg.out.Raw(n.Code)
		return i + 1, nil
	case *lang.Function:
		return cg.function(elems, i)
	case *lang.Operation:
		if n.Operator == lang.Assign {
			return cg.assignment(elems, i)
		}
		return cg.binary(elems, i)
	case *lang.Return:
		return cg.ret(elems, i)
	case *lang.Variable:
		return cg.declare(elems, i)
	case *lang.Array, *lang.Parameters:
		// consumed by the element before them
		return i + 1, nil
	case *lang.Other:
		return cg.other(elems, i)
	}
	return 0, fmt.Errorf("%w: unknown element %T", ErrInternal, elems[i])
}

func (cg *CodeGen) other(elems []lang.Element, i int) (int, error) {
	tok := elems[i].(*lang.Other).Token
	switch tok.Kind {
	case lang.BracketOpen:
		return cg.block(elems, i)
	case lang.KwIf:
		return cg.cond(elems, i)
	case lang.KwLoop:
		return cg.loop(elems, i)
	case lang.KwBreak, lang.KwContinue:
		return cg.jumpOut(tok.Kind, i)
	case lang.KwExit:
		return cg.exit(elems, i)
	case lang.KwPrint:
		return cg.print(elems, i)
	case lang.Literal:
		return cg.value(elems, i)
	}
	return 0, fmt.Errorf("%w: unexpected %s", ErrInternal, tok)
}

// block lowers a bracketed range. At statement level the range is a block with
// its own scope; inside an expression it is a parenthesised group.
func (cg *CodeGen) block(elems []lang.Element, i int) (int, error) {
	end, err := lang.MatchClose(elems, i+1)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if cg.depth > 0 {
		return end + 1, cg.walk(elems[i+1 : end])
	}
	cg.syms.EnterScope()
	defer cg.syms.ExitScope()
	return end + 1, cg.walk(elems[i+1 : end])
}

// value lowers a bare token: a literal or variable is loaded into the result
// register, any other identifier is a call.
func (cg *CodeGen) value(elems []lang.Element, i int) (int, error) {
	tok := elems[i].(*lang.Other).Token
	if lang.Classify(tok) == lang.Identifier && !cg.isVariable(tok.Text) {
		return cg.call(elems, i)
	}
	op, err := cg.operand(tok)
	if err != nil {
		return 0, err
	}
	cg.load(cg.cc.Result, op)
	return i + 1, nil
}

// stmtEnd returns the index just past the statement starting at i.
func stmtEnd(elems []lang.Element, i int) (int, error) {
	if i >= len(elems) {
		return 0, fmt.Errorf("%w: missing statement at end of range", ErrInternal)
	}
	switch n := elems[i].(type) {
	case *lang.Other:
		switch n.Token.Kind {
		case lang.BracketOpen:
			end, err := lang.MatchClose(elems, i+1)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrInternal, err)
			}
			return end + 1, nil
		case lang.KwIf:
			test, err := stmtEnd(elems, i+1)
			if err != nil {
				return 0, err
			}
			body, err := stmtEnd(elems, test)
			if err != nil {
				return 0, err
			}
			if body < len(elems) && lang.IsMark(elems[body], lang.KwElse) {
				return stmtEnd(elems, body+1)
			}
			return body, nil
		case lang.KwLoop:
			body := i + 2
			if hasLoopTest(elems, i) {
				var err error
				if body, err = stmtEnd(elems, i+1); err != nil {
					return 0, err
				}
			}
			return stmtEnd(elems, body)
		case lang.KwExit, lang.KwPrint:
			return stmtEnd(elems, i+1)
		case lang.Literal:
			if i+1 < len(elems) {
				switch elems[i+1].(type) {
				case *lang.Parameters, *lang.Array:
					return i + 2, nil
				}
			}
		}
		return i + 1, nil
	case *lang.Function:
		_, next, err := functionBody(elems, i)
		return next, err
	}
	return operandRangesEnd(elems, i)
}

// operandRangesEnd skips the ranges and array literal carried by the element
// at i.
func operandRangesEnd(elems []lang.Element, i int) (int, error) {
	_, end, err := ranges(elems, i)
	if err != nil {
		return 0, err
	}
	if carriesArray(elems[i]) {
		if end >= len(elems) {
			return 0, fmt.Errorf("%w: %s expects an array literal", ErrInternal, elems[i])
		}
		if _, ok := elems[end].(*lang.Array); !ok {
			return 0, fmt.Errorf("%w: %s expects an array literal, got %s", ErrInternal, elems[i], elems[end])
		}
		end++
	}
	return end, nil
}

// span is the half-open element range [from, to) of one sub-expression.
type span struct{ from, to int }

// ranges returns the sub-expression ranges the element at i opens, in order,
// and the index following the last one.
func ranges(elems []lang.Element, i int) ([]span, int, error) {
	n := lang.Opens(elems[i])
	spans := make([]span, 0, n)
	next := i + 1
	for k := 0; k < n; k++ {
		end, err := lang.MatchClose(elems, next)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		spans = append(spans, span{next, end})
		next = end + 1
	}
	return spans, next, nil
}

func carriesArray(e lang.Element) bool {
	switch n := e.(type) {
	case *lang.Variable:
		return n.Value.Kind == lang.ArrayOpen
	case *lang.Operation:
		return n.Operator == lang.Assign && n.Right.Kind == lang.ArrayOpen
	}
	return false
}

// hasLoopTest reports whether the loop at i has a test. A loop without one
// is followed by the none marker.
func hasLoopTest(elems []lang.Element, i int) bool {
	return i+1 >= len(elems) || !lang.IsMark(elems[i+1], lang.None)
}

// subexpr lowers a sub-expression range, leaving its value in the result
// register. A comparison inside is always materialised.
func (cg *CodeGen) subexpr(elems []lang.Element) error {
	saved := cg.testing
	cg.testing = false
	cg.depth++
	err := cg.walk(elems)
	cg.depth--
	cg.testing = saved
	return err
}
