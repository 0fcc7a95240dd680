package compiler

import "juc/pkg/asm"

// Convention fixes the registers the generator uses for each role.
type Convention struct {
	Return      asm.Register // function return value
	Result      asm.Register // expression result
	Scratch     asm.Register
	Left, Right asm.Register // sub-expression operands of a binary operation
	Accumulator asm.Register // multiply and divide
	Divisor     asm.Register
	FrameBase   asm.Register
	Params      []asm.Register
}

// Target emits the platform-specific sequences. The generator owns the walk
// and calls into the target for frames, process entry and system calls.
type Target interface {
	Convention() Convention

	// ObjectFormat is the assembler output format, e.g. "elf64".
	ObjectFormat() string

	// Prologue opens a frame and returns the index of the instruction that
	// reserves it, fixed later by PatchFrame.
	Prologue(l *asm.Listing) int
	PatchFrame(l *asm.Listing, at, size int)
	Epilogue(l *asm.Listing)

	// EntryStub emits the process entry point that calls main and exits with
	// its result.
	EntryStub(l *asm.Listing, main string)
	Exit(l *asm.Listing, code asm.Operand)
	// Print writes the NUL-terminated string at ptr to standard output.
	// id keeps the scan labels unique.
	Print(l *asm.Listing, ptr asm.Operand, id int)

	// Finish appends what the object file needs after the data section.
	Finish(l *asm.Listing)
}
