package compiler

import (
	"fmt"

	"juc/pkg/asm"
)

const (
	sysWrite = 1
	sysExit  = 60
)

// LinuxAMD64 targets x86-64 Linux ELF objects with raw system calls.
type LinuxAMD64 struct{}

var linuxConvention = Convention{
	Return:      asm.RAX,
	Result:      asm.R10,
	Scratch:     asm.R11,
	Left:        asm.R8,
	Right:       asm.R9,
	Accumulator: asm.RAX,
	Divisor:     asm.R11,
	FrameBase:   asm.RBP,
	Params:      []asm.Register{asm.RDI, asm.RSI, asm.RDX, asm.RCX},
}

func (LinuxAMD64) Convention() Convention { return linuxConvention }

func (LinuxAMD64) ObjectFormat() string { return "elf64" }

func (LinuxAMD64) Prologue(l *asm.Listing) int {
	l.Line("push", asm.Reg(asm.RBP))
	l.Line("mov", asm.Reg(asm.RBP), asm.Reg(asm.RSP))
	return l.Line("sub", asm.Reg(asm.RSP), asm.Imm("0"))
}

func (LinuxAMD64) PatchFrame(l *asm.Listing, at, size int) {
	if size == 0 {
		l.Patch(at, asm.Instruction{Comment: "no locals"})
		return
	}
	l.Patch(at, asm.Op("sub", asm.Reg(asm.RSP), asm.Immf("%d", size)))
}

func (LinuxAMD64) Epilogue(l *asm.Listing) {
	l.Line("mov", asm.Reg(asm.RSP), asm.Reg(asm.RBP))
	l.Line("pop", asm.Reg(asm.RBP))
	l.Line("ret")
}

func (LinuxAMD64) EntryStub(l *asm.Listing, main string) {
	l.Global("_start")
	l.Label("_start")
	l.Line("call", asm.Label(main))
	l.Line("mov", asm.Reg(asm.RDI), asm.Reg(asm.RAX))
	l.Line("mov", asm.Reg(asm.RAX), asm.Immf("%d", sysExit))
	l.Line("syscall")
}

func (LinuxAMD64) Exit(l *asm.Listing, code asm.Operand) {
	if code.Kind != asm.KindRegister || code.Reg != asm.RDI {
		l.Line("mov", asm.Reg(asm.RDI), code)
	}
	l.Line("mov", asm.Reg(asm.RAX), asm.Immf("%d", sysExit))
	l.Line("syscall")
}

func (LinuxAMD64) Print(l *asm.Listing, ptr asm.Operand, id int) {
	scan := fmt.Sprintf("print_scan_%d", id)
	done := fmt.Sprintf("print_done_%d", id)
	if ptr.Kind != asm.KindRegister || ptr.Reg != asm.RSI {
		l.Line("mov", asm.Reg(asm.RSI), ptr)
	}
	l.Line("xor", asm.Reg(asm.RDX), asm.Reg(asm.RDX))
	l.Label(scan)
	l.Line("cmp", asm.Text("byte [rsi+rdx]"), asm.Imm("0"))
	l.Line("je", asm.Label(done))
	l.Line("inc", asm.Reg(asm.RDX))
	l.Line("jmp", asm.Label(scan))
	l.Label(done)
	l.Line("mov", asm.Reg(asm.RAX), asm.Immf("%d", sysWrite))
	l.Line("mov", asm.Reg(asm.RDI), asm.Imm("1"))
	l.Line("syscall")
}

// Finish marks the stack non-executable; without the note ld warns on
// standard error.
func (LinuxAMD64) Finish(l *asm.Listing) {
	l.Trailer("section .note.GNU-stack noalloc noexec nowrite progbits")
}
