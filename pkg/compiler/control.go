package compiler

import (
	"fmt"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

func (cg *CodeGen) newCond() string {
	cg.condCount++
	return fmt.Sprintf("cond_%d", cg.condCount)
}

// test lowers the test statement elems[from:to] and returns the operator the
// flags were set for. A test that is not a comparison is compared against
// zero and reported as NotEqual.
func (cg *CodeGen) test(elems []lang.Element, from, to int) (lang.TokenKind, error) {
	cg.testing = true
	cg.pendingCmp = lang.None
	err := cg.walk(elems[from:to])
	cg.testing = false
	if err != nil {
		return lang.None, err
	}
	k := cg.pendingCmp
	cg.pendingCmp = lang.None
	if k == lang.None {
		cg.line("cmp", asm.Reg(cg.cc.Result), asm.Imm("0"))
		k = lang.NotEqual
	}
	return k, nil
}

// cond lowers
//
//	if <test> <body> [else <body>]
//
// The test jumps over the body to cond_N when it fails. An else branch ends
// the body with a jump to cond_M, past the else body.
func (cg *CodeGen) cond(elems []lang.Element, i int) (int, error) {
	skip := cg.newCond()
	testEnd, err := stmtEnd(elems, i+1)
	if err != nil {
		return 0, err
	}
	k, err := cg.test(elems, i+1, testEnd)
	if err != nil {
		return 0, err
	}
	cg.line(jumpUnless[k], asm.Label(skip))

	bodyEnd, err := cg.body(elems, testEnd)
	if err != nil {
		return 0, err
	}
	if bodyEnd >= len(elems) || !lang.IsMark(elems[bodyEnd], lang.KwElse) {
		cg.label(skip)
		return bodyEnd, nil
	}

	end := cg.newCond()
	cg.line("jmp", asm.Label(end))
	cg.label(skip)
	elseEnd, err := cg.body(elems, bodyEnd+1)
	if err != nil {
		return 0, err
	}
	cg.label(end)
	return elseEnd, nil
}

// body lowers the single statement starting at i: one element unit or a
// block.
func (cg *CodeGen) body(elems []lang.Element, i int) (int, error) {
	end, err := stmtEnd(elems, i)
	if err != nil {
		return 0, err
	}
	return end, cg.walk(elems[i:end])
}

// loop lowers
//
//	loop [<test>] <body>
//
// into loop_test_N, loop_core_N and loop_end_N. Without a test the loop runs
// until a break or a return.
func (cg *CodeGen) loop(elems []lang.Element, i int) (int, error) {
	cg.loopCount++
	n := cg.loopCount
	labels := LoopLabel{
		Test: fmt.Sprintf("loop_test_%d", n),
		Core: fmt.Sprintf("loop_core_%d", n),
		End:  fmt.Sprintf("loop_end_%d", n),
	}
	cg.loops = append(cg.loops, labels)
	defer func() { cg.loops = cg.loops[:len(cg.loops)-1] }()

	cg.label(labels.Test)
	bodyStart := i + 2
	if hasLoopTest(elems, i) {
		testEnd, err := stmtEnd(elems, i+1)
		if err != nil {
			return 0, err
		}
		k, err := cg.test(elems, i+1, testEnd)
		if err != nil {
			return 0, err
		}
		cg.line(jumpIf[k], asm.Label(labels.Core))
		cg.line("jmp", asm.Label(labels.End))
		bodyStart = testEnd
	}
	cg.label(labels.Core)
	next, err := cg.body(elems, bodyStart)
	if err != nil {
		return 0, err
	}
	cg.line("jmp", asm.Label(labels.Test))
	cg.label(labels.End)
	return next, nil
}

// jumpOut lowers break and continue against the innermost loop.
func (cg *CodeGen) jumpOut(k lang.TokenKind, i int) (int, error) {
	if len(cg.loops) == 0 {
		return 0, fmt.Errorf("%w: %s outside of loop", ErrInternal, k)
	}
	top := cg.loops[len(cg.loops)-1]
	if k == lang.KwBreak {
		cg.line("jmp", asm.Label(top.End))
	} else {
		cg.line("jmp", asm.Label(top.Test))
	}
	return i + 1, nil
}

// exit terminates the process with the value of the following statement.
func (cg *CodeGen) exit(elems []lang.Element, i int) (int, error) {
	val, next, err := cg.valueOf(elems, i+1)
	if err != nil {
		return 0, err
	}
	dst := cg.cc.Params[0]
	cg.load(dst, val)
	cg.tgt.Exit(cg.out, asm.Reg(dst))
	return next, nil
}

// print writes the string the following statement evaluates to.
func (cg *CodeGen) print(elems []lang.Element, i int) (int, error) {
	val, next, err := cg.valueOf(elems, i+1)
	if err != nil {
		return 0, err
	}
	ptr := cg.cc.Params[1]
	cg.load(ptr, val)
	cg.printCount++
	cg.tgt.Print(cg.out, asm.Reg(ptr), cg.printCount)
	return next, nil
}

// valueOf resolves the statement at i as a value. A single variable or
// literal is used directly; anything else is lowered into the result
// register.
func (cg *CodeGen) valueOf(elems []lang.Element, i int) (asm.Operand, int, error) {
	end, err := stmtEnd(elems, i)
	if err != nil {
		return asm.Operand{}, 0, err
	}
	if o, ok := elems[i].(*lang.Other); ok && end == i+1 && o.Token.Kind == lang.Literal {
		if lang.Classify(o.Token) != lang.Identifier || cg.isVariable(o.Token.Text) {
			op, err := cg.operand(o.Token)
			return op, end, err
		}
	}
	if err := cg.subexpr(elems[i:end]); err != nil {
		return asm.Operand{}, 0, err
	}
	return asm.Reg(cg.cc.Result), end, nil
}
