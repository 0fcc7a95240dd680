package compiler

import (
	"fmt"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

// setcc materialises a comparison result.
var setcc = map[lang.TokenKind]string{
	lang.Equal:        "sete",
	lang.NotEqual:     "setne",
	lang.Less:         "setl",
	lang.Greater:      "setg",
	lang.LessEqual:    "setle",
	lang.GreaterEqual: "setge",
}

// jumpIf jumps when the comparison holds.
var jumpIf = map[lang.TokenKind]string{
	lang.Equal:        "je",
	lang.NotEqual:     "jne",
	lang.Less:         "jl",
	lang.Greater:      "jg",
	lang.LessEqual:    "jle",
	lang.GreaterEqual: "jge",
}

// jumpUnless jumps when the comparison fails, skipping a body.
var jumpUnless = map[lang.TokenKind]string{
	lang.Equal:        "jne",
	lang.NotEqual:     "je",
	lang.Less:         "jge",
	lang.Greater:      "jle",
	lang.LessEqual:    "jg",
	lang.GreaterEqual: "jl",
}

// binary lowers an arithmetic or comparison operation into the result
// register.
func (cg *CodeGen) binary(elems []lang.Element, i int) (int, error) {
	op := elems[i].(*lang.Operation)
	if !op.Operator.IsArithmetic() && !op.Operator.IsComparison() {
		return 0, fmt.Errorf("%w: operator %s in %s", ErrInternal, op.Operator, op)
	}
	left, right, next, err := cg.prepare(elems, i)
	if err != nil {
		return 0, err
	}

	switch op.Operator {
	case lang.Plus:
		cg.additive("add", left, right)
	case lang.Minus:
		cg.additive("sub", left, right)
	case lang.Multiply:
		cg.multiply(left, right)
	case lang.Divide:
		cg.divide(left, right)
	default:
		cg.compare(op.Operator, left, right)
	}
	return next, nil
}

func (cg *CodeGen) additive(mnemonic string, left, right asm.Operand) {
	cg.load(cg.cc.Result, left)
	cg.line(mnemonic, asm.Reg(cg.cc.Result), cg.rhs(right, cg.cc.Scratch))
}

func (cg *CodeGen) multiply(left, right asm.Operand) {
	acc := asm.Reg(cg.cc.Accumulator)
	cg.load(cg.cc.Accumulator, left)
	if right.Kind == asm.KindImmediate && fitsImm32(right.Text) {
		cg.line("imul", acc, acc, right)
	} else {
		cg.line("imul", acc, cg.rhs(right, cg.cc.Scratch))
	}
	cg.line("mov", asm.Reg(cg.cc.Result), acc)
}

// divide leaves the quotient in the result register. Division by zero faults
// at run time.
func (cg *CodeGen) divide(left, right asm.Operand) {
	cg.load(cg.cc.Accumulator, left)
	cg.load(cg.cc.Divisor, right)
	cg.line("cqo")
	cg.line("idiv", asm.Reg(cg.cc.Divisor))
	cg.line("mov", asm.Reg(cg.cc.Result), asm.Reg(cg.cc.Accumulator))
}

// compare sets the flags for left <op> right. Under a test the operator is
// left for the conditional or loop to jump on; otherwise the 0/1 result is
// zero-extended into the result register.
func (cg *CodeGen) compare(k lang.TokenKind, left, right asm.Operand) {
	cg.load(cg.cc.Scratch, left)
	cg.line("cmp", asm.Reg(cg.cc.Scratch), cg.rhs(right, cg.cc.Result))
	if cg.testing {
		cg.pendingCmp = k
		return
	}
	cg.line(setcc[k], asm.RegN(cg.cc.Result, 1))
	cg.line("movzx", asm.Reg(cg.cc.Result), asm.RegN(cg.cc.Result, 1))
	cg.pendingCmp = lang.None
}
