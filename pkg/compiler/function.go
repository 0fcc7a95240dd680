package compiler

import (
	"fmt"
	"strings"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

// entryPoint keeps its bare label so the entry stub and the linker find it.
const entryPoint = "main"

// functionBody returns the body range of the function at i and the index
// after it. A function followed by a block owns that block; otherwise its body
// runs flat up to the next function of the same range.
func functionBody(elems []lang.Element, i int) (span, int, error) {
	if i+1 < len(elems) && lang.IsMark(elems[i+1], lang.BracketOpen) {
		end, err := lang.MatchClose(elems, i+2)
		if err != nil {
			return span{}, 0, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return span{i + 2, end}, end + 1, nil
	}
	j := i + 1
	for j < len(elems) {
		if _, ok := elems[j].(*lang.Function); ok {
			break
		}
		next, err := stmtEnd(elems, j)
		if err != nil {
			return span{}, 0, err
		}
		j = next
	}
	return span{i + 1, j}, j, nil
}

// functionLabel qualifies id with the current scope path. Only a top-level
// main stays bare.
func (cg *CodeGen) functionLabel(id string) string {
	if id == entryPoint && cg.scope.Depth() <= 1 {
		return entryPoint
	}
	return cg.scope.Qualify(id)
}

// function lowers a function definition: prologue, parameter spills, body
// and an implicit "ret 0" when the body does not end in a return. The frame
// size is patched into the prologue once the body is known. Nested functions
// are jumped over by the enclosing code.
func (cg *CodeGen) function(elems []lang.Element, i int) (int, error) {
	fn := elems[i].(*lang.Function)
	if len(fn.Params) > len(cg.cc.Params) {
		return 0, fmt.Errorf("%w: function %s takes %d parameters, at most %d are passed in registers",
			ErrUnsupported, fn.ID, len(fn.Params), len(cg.cc.Params))
	}
	body, next, err := functionBody(elems, i)
	if err != nil {
		return 0, err
	}

	label := cg.functionLabel(fn.ID)
	cg.funcs[fn.ID] = label
	cg.defined[label] = true

	var skip string
	if cg.syms.InFunction() {
		cg.skipCount++
		skip = fmt.Sprintf("fn_skip_%d", cg.skipCount)
		cg.line("jmp", asm.Label(skip))
	} else if label == entryPoint && !cg.opts.Library {
		cg.tgt.EntryStub(cg.out, entryPoint)
	}

	saved := cg.scope.Clone()
	savedLoops := cg.loops
	cg.scope.Push(fn.ID)
	cg.loops = nil
	defer func() {
		cg.scope.Restore(saved)
		cg.loops = savedLoops
	}()

	cg.out.Global(label)
	cg.label(label)
	cg.comment("%s", fn)
	fixup := cg.tgt.Prologue(cg.out)
	cg.syms.EnterFunction()

	if err := cg.params(fn); err != nil {
		return 0, err
	}
	if err := cg.walk(elems[body.from:body.to]); err != nil {
		return 0, err
	}
	if last, ok := cg.out.Last(); !ok || last.Mnemonic != "ret" {
		cg.comment("implicit ret 0")
		cg.line("mov", asm.Reg(cg.cc.Return), asm.Imm("0"))
		cg.tgt.Epilogue(cg.out)
	}

	cg.tgt.PatchFrame(cg.out, fixup, cg.syms.ExitFunction())
	if skip != "" {
		cg.label(skip)
	}
	return next, nil
}

// params declares each parameter in order and spills its register into the
// new slot.
func (cg *CodeGen) params(fn *lang.Function) error {
	for k, p := range fn.Params {
		if p.Type.IsArray() {
			return fmt.Errorf("%w: array parameter %s of %s", ErrUnsupported, p.ID, fn.ID)
		}
		sym, err := cg.syms.Declare(p.ID, p.Type)
		if err != nil {
			return err
		}
		cg.store(cg.slot(sym.Offset, p.Type.SizeOf()), asm.Reg(cg.cc.Params[k]), p.ID)
	}
	return nil
}

// ret moves the returned value into the return register and closes the frame.
func (cg *CodeGen) ret(elems []lang.Element, i int) (int, error) {
	r := elems[i].(*lang.Return)
	if !cg.syms.InFunction() {
		return 0, fmt.Errorf("%w: ret outside of a function", ErrInternal)
	}
	next := i + 1
	switch {
	case r.Value.IsNone():
		cg.line("mov", asm.Reg(cg.cc.Return), asm.Imm("0"))
	case r.Value.Kind == lang.BracketOpen:
		spans, end, err := ranges(elems, i)
		if err != nil {
			return 0, err
		}
		if err := cg.subexpr(elems[spans[0].from:spans[0].to]); err != nil {
			return 0, err
		}
		cg.load(cg.cc.Return, asm.Reg(cg.cc.Result))
		next = end
	default:
		op, err := cg.operand(r.Value)
		if err != nil {
			return 0, err
		}
		cg.load(cg.cc.Return, op)
	}
	cg.tgt.Epilogue(cg.out)
	return next, nil
}

// callTarget returns the label a call to name jumps to, recording it for the
// extern declarations. Dotted names already name another module's function.
func (cg *CodeGen) callTarget(name string) string {
	label, ok := cg.funcs[name]
	if !ok {
		switch {
		case strings.Contains(name, "."):
			label = name
		case name == entryPoint:
			label = entryPoint
		default:
			label = cg.opts.Module + "." + name
		}
	}
	cg.called = append(cg.called, label)
	return label
}

// call lowers a call of the identifier at i. Arguments come from the
// following Parameters or Array element; inside an expression a following
// sub-expression is the single argument. Nested arguments are computed into
// frame temporaries first, then every argument is moved to its register,
// last first.
func (cg *CodeGen) call(elems []lang.Element, i int) (int, error) {
	name := elems[i].(*lang.Other).Token.Text
	var args []argument
	next := i + 1
	if next < len(elems) {
		switch n := elems[next].(type) {
		case *lang.Parameters:
			var err error
			if args, err = splitArgs(n.Elements); err != nil {
				return 0, err
			}
			next++
		case *lang.Array:
			for _, tok := range n.Values {
				args = append(args, argument{tok: tok})
			}
			next++
		case *lang.Other:
			if cg.depth > 0 && n.Token.Kind == lang.BracketOpen {
				end, err := lang.MatchClose(elems, next+1)
				if err != nil {
					return 0, fmt.Errorf("%w: %v", ErrInternal, err)
				}
				args = []argument{{expr: elems[next+1 : end], nested: true}}
				next = end + 1
			}
		}
	}
	if len(args) > len(cg.cc.Params) {
		return 0, fmt.Errorf("%w: call of %s with %d arguments, at most %d are passed in registers",
			ErrUnsupported, name, len(args), len(cg.cc.Params))
	}

	temps := make([]asm.Operand, len(args))
	for k, a := range args {
		if !a.nested {
			continue
		}
		if err := cg.subexpr(a.expr); err != nil {
			return 0, err
		}
		tmp, err := cg.spill()
		if err != nil {
			return 0, err
		}
		temps[k] = tmp
	}
	for k := len(args) - 1; k >= 0; k-- {
		reg := cg.cc.Params[k]
		if args[k].nested {
			cg.load(reg, temps[k])
			continue
		}
		op, err := cg.operand(args[k].tok)
		if err != nil {
			return 0, err
		}
		cg.load(reg, op)
	}
	cg.line("call", asm.Label(cg.callTarget(name)))
	cg.line("mov", asm.Reg(cg.cc.Result), asm.Reg(cg.cc.Return))
	return next, nil
}

// argument is one call argument: a token or a nested range.
type argument struct {
	tok    lang.Token
	expr   []lang.Element
	nested bool
}

func splitArgs(elems []lang.Element) ([]argument, error) {
	var args []argument
	for j := 0; j < len(elems); {
		if lang.IsMark(elems[j], lang.BracketOpen) {
			end, err := lang.MatchClose(elems, j+1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternal, err)
			}
			args = append(args, argument{expr: elems[j+1 : end], nested: true})
			j = end + 1
			continue
		}
		o, ok := elems[j].(*lang.Other)
		if !ok {
			return nil, fmt.Errorf("%w: argument %s is neither a value nor a range", ErrInternal, elems[j])
		}
		args = append(args, argument{tok: o.Token})
		j++
	}
	return args, nil
}
