package asm

import (
	"fmt"
	"strings"
)

// Register is a 64-bit general-purpose register.
type Register string

const (
	RAX Register = "rax"
	RBX Register = "rbx"
	RCX Register = "rcx"
	RDX Register = "rdx"
	RSI Register = "rsi"
	RDI Register = "rdi"
	RBP Register = "rbp"
	RSP Register = "rsp"
	R8  Register = "r8"
	R9  Register = "r9"
	R10 Register = "r10"
	R11 Register = "r11"
)

// legacy sub-register names; r8-r15 use the d/w/b suffixes instead.
var subRegisters = map[Register][3]string{
	RAX: {"eax", "ax", "al"},
	RBX: {"ebx", "bx", "bl"},
	RCX: {"ecx", "cx", "cl"},
	RDX: {"edx", "dx", "dl"},
	RSI: {"esi", "si", "sil"},
	RDI: {"edi", "di", "dil"},
	RBP: {"ebp", "bp", "bpl"},
	RSP: {"esp", "sp", "spl"},
}

// Sized returns the name of the low size bytes of r.
func (r Register) Sized(size int) string {
	idx := -1
	switch size {
	case 4:
		idx = 0
	case 2:
		idx = 1
	case 1:
		idx = 2
	default:
		return string(r)
	}
	if names, ok := subRegisters[r]; ok {
		return names[idx]
	}
	return string(r) + [...]string{"d", "w", "b"}[idx]
}

// SizeKeyword is the NASM size specifier for a memory operand of size bytes.
func SizeKeyword(size int) string {
	switch size {
	case 1:
		return "byte"
	case 2:
		return "word"
	case 4:
		return "dword"
	default:
		return "qword"
	}
}

// OperandKind classifies an Operand.
type OperandKind int

const (
	KindImmediate OperandKind = iota
	KindRegister
	KindMemory
	KindAddress // address of a label, loaded with lea
	KindLabel   // jump/call target or bare symbol
	KindText    // preformatted text
)

// Operand is one instruction operand.
type Operand struct {
	Kind OperandKind
	Text string   // immediate, label or preformatted text
	Reg  Register // register operand or memory base
	Disp int      // memory displacement from Reg
	Size int      // operand width in bytes; memory operands always carry one
}

func Imm(text string) Operand { return Operand{Kind: KindImmediate, Text: text} }

func Immf(format string, args ...any) Operand { return Imm(fmt.Sprintf(format, args...)) }

func Reg(r Register) Operand { return Operand{Kind: KindRegister, Reg: r, Size: 8} }

// RegN is a sub-register view of r of size bytes.
func RegN(r Register, size int) Operand { return Operand{Kind: KindRegister, Reg: r, Size: size} }

// Mem is the memory operand [base+disp] of size bytes.
func Mem(base Register, disp, size int) Operand {
	return Operand{Kind: KindMemory, Reg: base, Disp: disp, Size: size}
}

// Static is the RIP-relative memory operand [rel label].
func Static(label string, size int) Operand {
	return Operand{Kind: KindMemory, Text: label, Size: size}
}

func Addr(label string) Operand { return Operand{Kind: KindAddress, Text: label, Size: 8} }

// LocalAddr is the address base+disp, loaded with lea.
func LocalAddr(base Register, disp int) Operand {
	return Operand{Kind: KindAddress, Reg: base, Disp: disp, Size: 8}
}

func Label(name string) Operand { return Operand{Kind: KindLabel, Text: name} }

func Text(s string) Operand { return Operand{Kind: KindText, Text: s} }

func (o Operand) IsMemory() bool { return o.Kind == KindMemory }

func (o Operand) String() string {
	switch o.Kind {
	case KindRegister:
		return o.Reg.Sized(o.Size)
	case KindMemory:
		return SizeKeyword(o.Size) + " " + o.Address()
	case KindAddress:
		return o.Address()
	default:
		return o.Text
	}
}

// Address is the bracketed effective address of a memory or address operand,
// without size keyword.
func (o Operand) Address() string {
	if o.Text != "" {
		return "[rel " + o.Text + "]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(string(o.Reg))
	switch {
	case o.Disp < 0:
		fmt.Fprintf(&sb, "-%d", -o.Disp)
	case o.Disp > 0:
		fmt.Fprintf(&sb, "+%d", o.Disp)
	}
	sb.WriteByte(']')
	return sb.String()
}
