package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

// operand resolves a value or identifier token. Expression tokens are
// lowered by the caller, which then uses the result register.
func (cg *CodeGen) operand(tok lang.Token) (asm.Operand, error) {
	switch lang.Classify(tok) {
	case lang.Expression:
		return asm.Reg(cg.cc.Result), nil
	case lang.Value:
		if lang.IsString(tok) {
			return asm.Addr(cg.intern(tok.Text)), nil
		}
		if lang.IsNumber(tok.Text) {
			if _, err := strconv.ParseInt(tok.Text, 0, 64); err != nil {
				return asm.Operand{}, fmt.Errorf("%w: floating-point literal %s", ErrUnsupported, tok.Text)
			}
		}
		return asm.Imm(tok.Text), nil
	}
	if tok.Kind != lang.Literal {
		return asm.Operand{}, fmt.Errorf("%w: %s is not a value", ErrInternal, tok)
	}
	return cg.variable(tok.Text)
}

// variable returns the operand of a variable or of a constant-indexed element
// name[k]. Arrays and static strings resolve to their address.
func (cg *CodeGen) variable(name string) (asm.Operand, error) {
	base, index, indexed, err := splitIndex(name)
	if err != nil {
		return asm.Operand{}, err
	}
	sym, ok := cg.syms.Lookup(base)
	if !ok {
		return asm.Operand{}, fmt.Errorf("%w: unknown identifier %q", ErrInternal, name)
	}
	if indexed {
		if !sym.Type.IsArray() {
			return asm.Operand{}, fmt.Errorf("%w: %q is not an array", ErrInternal, base)
		}
		if sym.Type.Kind == lang.FixedArray && index >= sym.Type.Len {
			return asm.Operand{}, fmt.Errorf("%w: index %d out of range for %q", ErrInternal, index, sym.Name)
		}
		es := sym.Type.ElemType().SizeOf()
		if sym.Static {
			return asm.Static(fmt.Sprintf("%s+%d", sym.Label, es*index), es), nil
		}
		return cg.slot(sym.Offset-es*index, es), nil
	}

	switch {
	case sym.Static && (sym.Type.IsArray() || sym.Type.Kind == lang.Str):
		return asm.Addr(sym.Label), nil
	case sym.Static:
		return asm.Static(sym.Label, sym.Type.SizeOf()), nil
	case sym.Type.IsArray():
		return asm.LocalAddr(cg.cc.FrameBase, -sym.Offset), nil
	}
	return cg.slot(sym.Offset, sym.Type.SizeOf()), nil
}

// spill parks the result register in a new frame temporary.
func (cg *CodeGen) spill() (asm.Operand, error) {
	off, err := cg.syms.Temp()
	if err != nil {
		return asm.Operand{}, err
	}
	tmp := cg.slot(off, 8)
	cg.line("mov", tmp, asm.Reg(cg.cc.Result))
	return tmp, nil
}

// slot is the frame operand [frame_base - offset].
func (cg *CodeGen) slot(offset, size int) asm.Operand {
	return asm.Mem(cg.cc.FrameBase, -offset, size)
}

// splitIndex splits "name[k]" into name and k.
func splitIndex(name string) (string, int, bool, error) {
	base, rest, ok := strings.Cut(name, "[")
	if !ok {
		return name, 0, false, nil
	}
	idx, found := strings.CutSuffix(rest, "]")
	if !found {
		return "", 0, false, fmt.Errorf("%w: malformed index in %q", ErrInternal, name)
	}
	k, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: non-constant index in %q", ErrUnsupported, name)
	}
	if k < 0 {
		return "", 0, false, fmt.Errorf("%w: negative index in %q", ErrInternal, name)
	}
	return base, k, true, nil
}

func (cg *CodeGen) isVariable(name string) bool {
	base, _, _ := strings.Cut(name, "[")
	_, ok := cg.syms.Lookup(base)
	return ok
}

// intern places a string literal in the data section once and returns its
// label.
func (cg *CodeGen) intern(lit string) string {
	if label, ok := cg.strs[lit]; ok {
		return label
	}
	label := fmt.Sprintf("str_%d", len(cg.strs))
	cg.strs[lit] = label
	cg.out.Define(label, "db", nasmString(lit))
	return label
}

// nasmString renders a double-quoted literal as a NUL-terminated NASM
// backquoted string, which understands the same escapes.
func nasmString(lit string) string {
	body := strings.TrimSuffix(strings.TrimPrefix(lit, `"`), `"`)
	body = strings.ReplaceAll(body, "`", "\\`")
	return "`" + body + "`, 0"
}

// load moves op into the 64-bit register dst, sign-extending narrow memory.
func (cg *CodeGen) load(dst asm.Register, op asm.Operand) {
	switch op.Kind {
	case asm.KindRegister:
		if op.Reg != dst {
			cg.line("mov", asm.Reg(dst), asm.Reg(op.Reg))
		}
	case asm.KindAddress:
		cg.line("lea", asm.Reg(dst), op)
	case asm.KindMemory:
		switch op.Size {
		case 1, 2:
			cg.line("movsx", asm.Reg(dst), op)
		case 4:
			cg.line("movsxd", asm.Reg(dst), op)
		default:
			cg.line("mov", asm.Reg(dst), op)
		}
	default:
		cg.line("mov", asm.Reg(dst), op)
	}
}

// store moves src into the memory operand dst. Memory, address and wide
// immediate sources are staged through the scratch register.
func (cg *CodeGen) store(dst, src asm.Operand, note string) {
	switch {
	case src.Kind == asm.KindRegister:
		src = asm.RegN(src.Reg, dst.Size)
	case src.Kind == asm.KindImmediate && fitsImm32(src.Text):
	default:
		cg.load(cg.cc.Scratch, src)
		src = asm.RegN(cg.cc.Scratch, dst.Size)
	}
	cg.out.Emit(asm.Op("mov", dst, src).WithComment(note))
}

// rhs makes op usable as the second operand of a 64-bit instruction, loading
// it into scratch when it is narrow memory, an address or a wide immediate.
func (cg *CodeGen) rhs(op asm.Operand, scratch asm.Register) asm.Operand {
	switch op.Kind {
	case asm.KindRegister:
		return asm.Reg(op.Reg)
	case asm.KindImmediate:
		if fitsImm32(op.Text) {
			return op
		}
	case asm.KindMemory:
		if op.Size == 8 {
			return op
		}
	}
	cg.load(scratch, op)
	return asm.Reg(scratch)
}

// fitsImm32 reports whether an immediate can be encoded as a sign-extended
// 32-bit value. Character constants and symbols always fit.
func fitsImm32(text string) bool {
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return true
	}
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// prepare resolves the operands of the binary operation at i, lowering its
// sub-expressions. With both sides nested the left value is parked in a frame
// temporary while the right one is computed, then both move to the operand
// registers.
func (cg *CodeGen) prepare(elems []lang.Element, i int) (left, right asm.Operand, next int, err error) {
	op := elems[i].(*lang.Operation)
	spans, next, err := ranges(elems, i)
	if err != nil {
		return left, right, 0, err
	}
	lexpr := op.Left.Kind == lang.BracketOpen
	rexpr := op.Right.Kind == lang.BracketOpen

	switch {
	case lexpr && rexpr:
		if err := cg.subexpr(elems[spans[0].from:spans[0].to]); err != nil {
			return left, right, 0, err
		}
		tmp, err := cg.spill()
		if err != nil {
			return left, right, 0, err
		}
		if err := cg.subexpr(elems[spans[1].from:spans[1].to]); err != nil {
			return left, right, 0, err
		}
		cg.line("mov", asm.Reg(cg.cc.Right), asm.Reg(cg.cc.Result))
		cg.load(cg.cc.Left, tmp)
		return asm.Reg(cg.cc.Left), asm.Reg(cg.cc.Right), next, nil

	case lexpr:
		if err := cg.subexpr(elems[spans[0].from:spans[0].to]); err != nil {
			return left, right, 0, err
		}
		left = asm.Reg(cg.cc.Result)
		if right, err = cg.operand(op.Right); err != nil {
			return left, right, 0, err
		}
		return left, right, next, nil

	case rexpr:
		if err := cg.subexpr(elems[spans[0].from:spans[0].to]); err != nil {
			return left, right, 0, err
		}
		cg.line("mov", asm.Reg(cg.cc.Right), asm.Reg(cg.cc.Result))
		right = asm.Reg(cg.cc.Right)
		if left, err = cg.operand(op.Left); err != nil {
			return left, right, 0, err
		}
		return left, right, next, nil
	}

	if left, err = cg.operand(op.Left); err != nil {
		return left, right, 0, err
	}
	if right, err = cg.operand(op.Right); err != nil {
		return left, right, 0, err
	}
	return left, right, next, nil
}
