package compiler

import (
	"fmt"
	"strings"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

// declare allocates the variable at i and assigns its initial value.
// A T[] variable initialised by an array literal is sized from it.
func (cg *CodeGen) declare(elems []lang.Element, i int) (int, error) {
	v := elems[i].(*lang.Variable)
	next, err := operandRangesEnd(elems, i)
	if err != nil {
		return 0, err
	}
	var lit *lang.Array
	if carriesArray(v) {
		lit = elems[next-1].(*lang.Array)
	}

	typ := v.Type
	if typ.Kind == lang.StaticArray && lit != nil {
		typ = lang.NewArray(typ.ElemType(), len(lit.Values))
	}
	if v.Static {
		return next, cg.static(v, typ, lit)
	}

	sym, err := cg.syms.Declare(v.ID, typ)
	if err != nil {
		return 0, err
	}
	v.Offset = sym.Offset
	cg.comment("let %s: %s at offset %d", v.ID, typ, sym.Offset)
	return next, cg.assign(sym, v.Value, elems, i, lit)
}

// assignment lowers "x = value" for a declared variable or array element.
func (cg *CodeGen) assignment(elems []lang.Element, i int) (int, error) {
	op := elems[i].(*lang.Operation)
	next, err := operandRangesEnd(elems, i)
	if err != nil {
		return 0, err
	}
	base, index, indexed, err := splitIndex(op.Left.Text)
	if err != nil {
		return 0, err
	}
	sym, ok := cg.syms.Lookup(base)
	if !ok {
		return 0, fmt.Errorf("%w: assignment to unknown identifier %q", ErrInternal, op.Left.Text)
	}
	if sym.Static && sym.Type.Kind == lang.Str {
		return 0, fmt.Errorf("%w: assignment to static string %q", ErrUnsupported, sym.Name)
	}

	var lit *lang.Array
	if carriesArray(op) {
		lit = elems[next-1].(*lang.Array)
	}
	if indexed {
		dst, err := cg.variable(op.Left.Text)
		if err != nil {
			return 0, err
		}
		return next, cg.assignTo(dst, fmt.Sprintf("%s[%d]", base, index), op.Right, elems, i)
	}
	return next, cg.assign(sym, op.Right, elems, i, lit)
}

// assign stores value into sym. The element at i carries value; a nested
// value is the range following it and an array value is lit.
func (cg *CodeGen) assign(sym Symbol, value lang.Token, elems []lang.Element, i int, lit *lang.Array) error {
	switch {
	case value.IsNone():
		return nil
	case value.Kind == lang.ArrayOpen:
		return cg.assignArray(sym, lit)
	case sym.Type.IsArray():
		return fmt.Errorf("%w: array %q assigned from %s", ErrUnsupported, sym.Name, value)
	}
	dst, err := cg.variable(sym.Name)
	if err != nil {
		return err
	}
	return cg.assignTo(dst, sym.Name, value, elems, i)
}

func (cg *CodeGen) assignTo(dst asm.Operand, name string, value lang.Token, elems []lang.Element, i int) error {
	if value.Kind == lang.BracketOpen {
		spans, _, err := ranges(elems, i)
		if err != nil {
			return err
		}
		if err := cg.subexpr(elems[spans[0].from:spans[0].to]); err != nil {
			return err
		}
		cg.store(dst, asm.Reg(cg.cc.Result), name)
		return nil
	}
	src, err := cg.operand(value)
	if err != nil {
		return err
	}
	cg.store(dst, src, name)
	return nil
}

// assignArray stores each literal value into its element slot: element k of
// an array based at offset b lives at b - size*k.
func (cg *CodeGen) assignArray(sym Symbol, lit *lang.Array) error {
	if !sym.Type.IsArray() {
		return fmt.Errorf("%w: array literal assigned to %s %q", ErrInternal, sym.Type, sym.Name)
	}
	if sym.Type.Kind == lang.FixedArray && len(lit.Values) > sym.Type.Len {
		return fmt.Errorf("%w: %d values for %s %q", ErrInternal, len(lit.Values), sym.Type, sym.Name)
	}
	elem := sym.Type.ElemType()
	es := elem.SizeOf()
	for k, val := range lit.Values {
		var dst asm.Operand
		if sym.Static {
			dst = asm.Static(fmt.Sprintf("%s+%d", sym.Label, es*k), es)
		} else {
			dst = cg.slot(sym.Offset-es*k, es)
		}
		src, err := cg.operand(val)
		if err != nil {
			return err
		}
		cg.store(dst, src, fmt.Sprintf("%s[%d]", sym.Name, k))
	}
	return nil
}

// static places v in the data section under a label qualified by the
// current scope. Initialisers must be literals.
func (cg *CodeGen) static(v *lang.Variable, typ lang.Type, lit *lang.Array) error {
	label := cg.scope.Qualify(v.ID)
	dir := typ.Directive()

	var values []string
	switch {
	case lit != nil:
		for _, tok := range lit.Values {
			s, err := staticValue(tok, typ.ElemType())
			if err != nil {
				return fmt.Errorf("static %s: %w", v.ID, err)
			}
			values = append(values, s)
		}
	case v.Value.IsNone():
	default:
		s, err := staticValue(v.Value, typ)
		if err != nil {
			return fmt.Errorf("static %s: %w", v.ID, err)
		}
		values = append(values, s)
	}

	cg.syms.DeclareStatic(v.ID, label, typ)
	switch {
	case len(values) > 0:
		if typ.Kind == lang.FixedArray && len(values) > typ.Len {
			return fmt.Errorf("%w: %d values for %s %q", ErrInternal, len(values), typ, v.ID)
		}
		cg.out.Define(label, dir, strings.Join(values, ", "))
		if typ.Kind == lang.FixedArray && len(values) < typ.Len {
			cg.out.Define("", "times", fmt.Sprintf("%d %s 0", typ.Len-len(values), dir))
		}
	case typ.Kind == lang.Str:
		cg.out.Define(label, "db", "0")
	default:
		cg.out.Define(label, "times", fmt.Sprintf("%d db 0", typ.SizeOf()))
	}
	return nil
}

// staticValue renders a literal for a data directive. Strings become
// NUL-terminated backquoted strings.
func staticValue(tok lang.Token, typ lang.Type) (string, error) {
	if lang.Classify(tok) != lang.Value {
		return "", fmt.Errorf("%w: initialiser %s is not a literal", ErrUnsupported, tok)
	}
	if lang.IsString(tok) {
		if typ.Kind != lang.Str {
			return "", fmt.Errorf("%w: string initialiser for %s", ErrUnsupported, typ)
		}
		return nasmString(tok.Text), nil
	}
	return tok.Text, nil
}
