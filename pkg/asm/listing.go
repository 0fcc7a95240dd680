// Package asm models NASM-syntax x86-64 assembly as an appendable listing of
// instructions, with a separate accumulator for static data.
package asm

import (
	"fmt"
	"io"
	"strings"
)

// Instruction is one line of a listing: a label, a mnemonic with operands, or
// a raw line. Comment is appended after the instruction.
type Instruction struct {
	Label    string
	Mnemonic string
	Operands []Operand
	Raw      string
	Comment  string
}

// Op builds an instruction.
func Op(mnemonic string, operands ...Operand) Instruction {
	return Instruction{Mnemonic: mnemonic, Operands: operands}
}

// WithComment returns a copy of in carrying the trailing comment c.
func (in Instruction) WithComment(c string) Instruction {
	in.Comment = c
	return in
}

func (in Instruction) String() string {
	var sb strings.Builder
	switch {
	case in.Label != "":
		sb.WriteString(in.Label)
		sb.WriteByte(':')
		if in.Mnemonic != "" {
			sb.WriteByte(' ')
			sb.WriteString(in.Mnemonic)
			writeOperands(&sb, in.Operands)
		}
	case in.Raw != "":
		sb.WriteString(in.Raw)
	default:
		sb.WriteString("    ")
		sb.WriteString(in.Mnemonic)
		writeOperands(&sb, in.Operands)
	}
	if in.Comment != "" {
		sb.WriteString("    ; ")
		sb.WriteString(in.Comment)
	}
	return sb.String()
}

func writeOperands(sb *strings.Builder, ops []Operand) {
	for i, op := range ops {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(op.String())
	}
}

// Listing accumulates the assembly of one source file.
type Listing struct {
	globals []string
	externs []string
	seen    map[string]bool

	text     []Instruction
	data     []Instruction
	trailing []string
}

func NewListing() *Listing {
	return &Listing{seen: make(map[string]bool)}
}

// Emit appends an instruction to the text section and returns its index.
func (l *Listing) Emit(in Instruction) int {
	l.text = append(l.text, in)
	return len(l.text) - 1
}

// Line appends mnemonic with operands.
func (l *Listing) Line(mnemonic string, operands ...Operand) int {
	return l.Emit(Op(mnemonic, operands...))
}

// Label appends a label definition.
func (l *Listing) Label(name string) int {
	return l.Emit(Instruction{Label: name})
}

// Raw appends a line verbatim.
func (l *Listing) Raw(line string) int {
	return l.Emit(Instruction{Raw: line})
}

// Comment appends a comment-only line.
func (l *Listing) Comment(format string, args ...any) int {
	return l.Emit(Instruction{Comment: fmt.Sprintf(format, args...)})
}

// Patch replaces the instruction at index i.
func (l *Listing) Patch(i int, in Instruction) {
	l.text[i] = in
}

// Last returns the last text instruction that is not a comment.
func (l *Listing) Last() (Instruction, bool) {
	for i := len(l.text) - 1; i >= 0; i-- {
		in := l.text[i]
		if in.Label == "" && in.Raw == "" && in.Mnemonic == "" {
			continue
		}
		return in, true
	}
	return Instruction{}, false
}

// Text returns a copy of the text section.
func (l *Listing) Text() []Instruction {
	return append([]Instruction(nil), l.text...)
}

// Data returns a copy of the data section.
func (l *Listing) Data() []Instruction {
	return append([]Instruction(nil), l.data...)
}

// Global declares name global. Repeated declarations are ignored.
func (l *Listing) Global(name string) {
	if l.seen["g:"+name] {
		return
	}
	l.seen["g:"+name] = true
	l.globals = append(l.globals, name)
}

// Extern declares name as defined in another object file.
func (l *Listing) Extern(name string) {
	if l.seen["e:"+name] {
		return
	}
	l.seen["e:"+name] = true
	l.externs = append(l.externs, name)
}

// Define appends a labelled data definition, e.g. "msg: db `hi`, 0".
func (l *Listing) Define(label, directive, value string) {
	l.data = append(l.data, Instruction{Label: label, Mnemonic: directive, Operands: []Operand{Text(value)}})
}

// Trailer appends a line written after the data section, such as another
// section directive.
func (l *Listing) Trailer(line string) {
	l.trailing = append(l.trailing, line)
}

// WriteTo writes the whole listing: directives, the text section, the data
// section, then the trailer lines.
func (l *Listing) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString("section .text\n")
	for _, g := range l.globals {
		fmt.Fprintf(&sb, "    global %s\n", g)
	}
	for _, e := range l.externs {
		fmt.Fprintf(&sb, "    extern %s\n", e)
	}
	for _, in := range l.text {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("\nsection .data\n")
	for _, in := range l.data {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	for _, line := range l.trailing {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String dumps the listing as WriteTo does.
func (l *Listing) String() string {
	var sb strings.Builder
	l.WriteTo(&sb)
	return sb.String()
}
