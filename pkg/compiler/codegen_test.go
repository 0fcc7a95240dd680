package compiler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"juc/pkg/asm"
	"juc/pkg/lang"
)

func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("Expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

func compileSource(t *testing.T, src string) *asm.Listing {
	t.Helper()
	l, _, err := Compile(src, Options{Module: "prog"})
	require.NoError(t, err)
	return l
}

// textLines returns the text section without comments or indentation.
func textLines(l *asm.Listing) []string {
	var out []string
	for _, in := range l.Text() {
		in.Comment = ""
		if s := strings.TrimSpace(in.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// assertSequence checks that want appears in lines as one contiguous run.
// On failure the run following the first match of want[0] is diffed.
func assertSequence(t *testing.T, lines []string, want ...string) {
	t.Helper()
	first := -1
	for i := 0; i+len(want) <= len(lines); i++ {
		if lines[i] != want[0] {
			continue
		}
		if cmp.Equal(want, lines[i:i+len(want)]) {
			return
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		t.Errorf("sequence starting with %q not found in:\n%s", want[0], strings.Join(lines, "\n"))
		return
	}
	t.Errorf("sequence starting at %q differs (-want +got):\n%s", want[0], cmp.Diff(want, lines[first:first+len(want)]))
}

func count(lines []string, line string) int {
	n := 0
	for _, l := range lines {
		if l == line {
			n++
		}
	}
	return n
}

func TestGenerate_DeclareAndReturn(t *testing.T) {
	l := compileSource(t, `
func main(): int {
    let a: int = 1
    ret a
}
`)
	lines := textLines(l)
	assertSequence(t, lines,
		"_start:",
		"call main",
		"mov rdi, rax",
		"mov rax, 60",
		"syscall",
		"main:",
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 16",
		"mov dword [rbp-4], 1",
		"movsxd rax, dword [rbp-4]",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
	)
	dump := l.String()
	assertContains(t, dump, "global _start")
	assertContains(t, dump, "global main")
	assertContains(t, dump, "mov dword [rbp-4], 1    ; a")
	assertContains(t, dump, "section .note.GNU-stack noalloc noexec nowrite progbits")
}

func TestGenerate_IfElse(t *testing.T) {
	l := compileSource(t, `
func pick(a: int, b: int): int {
    if a == b { ret 1 } else { ret 0 }
}
`)
	lines := textLines(l)
	assertSequence(t, lines,
		"prog.pick:",
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 16",
		"mov dword [rbp-4], edi",
		"mov dword [rbp-8], esi",
		"movsxd r11, dword [rbp-4]",
		"movsxd r10, dword [rbp-8]",
		"cmp r11, r10",
		"jne cond_1",
		"mov rax, 1",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
		"jmp cond_2",
		"cond_1:",
		"mov rax, 0",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
		"cond_2:",
	)
	if count(lines, "_start:") != 0 {
		t.Error("entry stub emitted without main")
	}
}

func TestGenerate_TooManyParameters(t *testing.T) {
	_, _, err := Compile(`
func f(a: int, b: int, c: int, d: int, e: int): int {
    ret e
}
`, Options{Module: "prog"})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestGenerate_ComparisonContext(t *testing.T) {
	ops := []struct {
		src  string
		kind lang.TokenKind
	}{
		{"==", lang.Equal},
		{"!=", lang.NotEqual},
		{"<", lang.Less},
		{">", lang.Greater},
		{"<=", lang.LessEqual},
		{">=", lang.GreaterEqual},
	}
	for _, op := range ops {
		t.Run(op.src, func(t *testing.T) {
			standalone := textLines(compileSource(t, `
func main(): int {
    let a: int = 1
    let c: int = a `+op.src+` 2
    ret c
}
`))
			assertSequence(t, standalone,
				"movsxd r11, dword [rbp-4]",
				"cmp r11, 2",
				setcc[op.kind]+" r10b",
				"movzx r10, r10b",
				"mov dword [rbp-8], r10d",
			)

			tested := textLines(compileSource(t, `
func main(): int {
    let a: int = 1
    if a `+op.src+` 2 { ret 1 }
    ret 0
}
`))
			assertSequence(t, tested,
				"cmp r11, 2",
				jumpUnless[op.kind]+" cond_1",
			)
			for _, line := range tested {
				if strings.HasPrefix(line, "set") || strings.HasPrefix(line, "movzx") {
					t.Errorf("test comparison materialised: %q", line)
				}
			}
		})
	}
}

func TestGenerate_NonComparisonTest(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let flag: int = 1
    if flag { ret 1 }
    loop flag { break }
    ret 0
}
`))
	assertSequence(t, lines,
		"movsxd r10, dword [rbp-4]",
		"cmp r10, 0",
		"je cond_1",
	)
	assertSequence(t, lines,
		"loop_test_1:",
		"movsxd r10, dword [rbp-4]",
		"cmp r10, 0",
		"jne loop_core_1",
		"jmp loop_end_1",
		"loop_core_1:",
	)
}

func TestGenerate_Loops(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let i: int = 0
    loop i < 10 {
        i = i + 1
        loop {
            break
        }
        if i == 5 { continue }
    }
    ret i
}
`))
	assertSequence(t, lines,
		"loop_test_1:",
		"movsxd r11, dword [rbp-4]",
		"cmp r11, 10",
		"jl loop_core_1",
		"jmp loop_end_1",
		"loop_core_1:",
		"movsxd r10, dword [rbp-4]",
		"add r10, 1",
		"mov dword [rbp-4], r10d",
		"loop_test_2:",
		"loop_core_2:",
		"jmp loop_end_2",
		"jmp loop_test_2",
		"loop_end_2:",
		"movsxd r11, dword [rbp-4]",
		"cmp r11, 5",
		"jne cond_1",
		"jmp loop_test_1",
		"cond_1:",
		"jmp loop_test_1",
		"loop_end_1:",
	)
}

func TestGenerate_BlockAfterLoop(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let n: int = 0
    loop {
        n = n + 1
        if n == 3 { break }
    }
    {
        let k: int = 7
        n = k
    }
    ret n
}
`))
	assertSequence(t, lines,
		"loop_test_1:",
		"loop_core_1:",
		"movsxd r10, dword [rbp-4]",
		"add r10, 1",
		"mov dword [rbp-4], r10d",
		"movsxd r11, dword [rbp-4]",
		"cmp r11, 3",
		"jne cond_1",
		"jmp loop_end_1",
		"cond_1:",
		"jmp loop_test_1",
		"loop_end_1:",
		"mov dword [rbp-8], 7",
	)
}

func TestGenerate_LabelCountersAreUnique(t *testing.T) {
	lines := textLines(compileSource(t, `
func a(x: int): int {
    if x { ret 1 }
    loop { break }
}
func b(x: int): int {
    if x { ret 1 } else { ret 2 }
    loop { break }
}
`))
	seen := make(map[string]bool)
	for _, line := range lines {
		if !strings.HasSuffix(line, ":") {
			continue
		}
		if seen[line] {
			t.Errorf("label %s defined twice", line)
		}
		seen[line] = true
	}
	for _, want := range []string{"cond_1:", "cond_2:", "cond_3:", "loop_end_1:", "loop_end_2:"} {
		if !seen[want] {
			t.Errorf("missing label %s", want)
		}
	}
}

func TestGenerate_BreakOutsideLoop(t *testing.T) {
	_, _, err := Compile("func main(): int { break }", Options{Module: "prog"})
	require.ErrorIs(t, err, ErrInternal)
}

func TestGenerate_Arithmetic(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let a: int = 6
    let b: int = 3
    let s: int = a + b
    let d: int = a - 2
    let m: int = a * 3
    let q: int = a / b
    ret s
}
`))
	assertSequence(t, lines,
		"movsxd r10, dword [rbp-4]",
		"movsxd r11, dword [rbp-8]",
		"add r10, r11",
		"mov dword [rbp-12], r10d",
		"movsxd r10, dword [rbp-4]",
		"sub r10, 2",
		"mov dword [rbp-16], r10d",
		"movsxd rax, dword [rbp-4]",
		"imul rax, rax, 3",
		"mov r10, rax",
		"mov dword [rbp-20], r10d",
		"movsxd rax, dword [rbp-4]",
		"movsxd r11, dword [rbp-8]",
		"cqo",
		"idiv r11",
		"mov r10, rax",
		"mov dword [rbp-24], r10d",
	)
}

func TestGenerate_NestedOperands(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let a: int = 1
    let b: int = 2
    ret (a + 1) * (b + 2) - a
}
`))
	assertSequence(t, lines,
		"movsxd r10, dword [rbp-4]",
		"add r10, 1",
		"mov qword [rbp-16], r10",
		"movsxd r10, dword [rbp-8]",
		"add r10, 2",
		"mov r9, r10",
		"mov r8, qword [rbp-16]",
		"mov rax, r8",
		"imul rax, r9",
		"mov r10, rax",
		"movsxd r11, dword [rbp-4]",
		"sub r10, r11",
		"mov rax, r10",
	)
}

func TestGenerate_OperandsHeldAcrossCalls(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    ret ext.f(1) + ext.g(2)
}
`))
	assertSequence(t, lines,
		"sub rsp, 16",
		"mov rdi, 1",
		"call ext.f",
		"mov r10, rax",
		"mov qword [rbp-8], r10",
		"mov rdi, 2",
		"call ext.g",
		"mov r10, rax",
		"mov r9, r10",
		"mov r8, qword [rbp-8]",
	)
	for _, line := range lines {
		if line == "push r10" || line == "pop r8" {
			t.Errorf("stack used for an operand: %q", line)
		}
	}
}

func TestGenerate_RightNestedOperand(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let a: int = 8
    ret a - a / 2
}
`))
	assertSequence(t, lines,
		"movsxd rax, dword [rbp-4]",
		"mov r11, 2",
		"cqo",
		"idiv r11",
		"mov r10, rax",
		"mov r9, r10",
		"movsxd r10, dword [rbp-4]",
		"sub r10, r9",
	)
}

func TestGenerate_Calls(t *testing.T) {
	l := compileSource(t, `
func add(a: int, b: int): int { ret a + b }
func main(): int {
    let x: int = 1
    util.log(x)
    ret add(x, x + 2)
}
`)
	lines := textLines(l)
	assertSequence(t, lines,
		"movsxd rdi, dword [rbp-4]",
		"call util.log",
		"mov r10, rax",
	)
	assertSequence(t, lines,
		"movsxd r10, dword [rbp-4]",
		"add r10, 2",
		"mov qword [rbp-16], r10",
		"mov rsi, qword [rbp-16]",
		"movsxd rdi, dword [rbp-4]",
		"call prog.add",
		"mov r10, rax",
		"mov rax, r10",
	)
	dump := l.String()
	assertContains(t, dump, "extern util.log")
	assertContains(t, dump, "global prog.add")
	if strings.Contains(dump, "extern prog.add") {
		t.Errorf("function defined in the file declared extern:\n%s", dump)
	}
}

func TestGenerate_UndefinedCallIsExtern(t *testing.T) {
	l := compileSource(t, "func main(): int { ret missing() }")
	assertContains(t, l.String(), "extern prog.missing")
	assertContains(t, l.String(), "call prog.missing")
}

func TestGenerate_TooManyArguments(t *testing.T) {
	_, _, err := Compile("func main(): int { ret f(1, 2, 3, 4, 5) }", Options{Module: "prog"})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestGenerate_CallArgumentForms(t *testing.T) {
	fn := &lang.Function{ID: "main"}
	callee := &lang.Other{Token: lang.Lit("f")}

	t.Run("Array", func(t *testing.T) {
		elems := []lang.Element{
			fn, open(),
			&lang.Return{Value: lang.Mark(lang.BracketOpen)},
			callee, &lang.Array{Values: []lang.Token{lang.Lit("4"), lang.Lit("5")}},
			closing(),
			closing(),
		}
		l, err := Generate(elems, Options{Module: "prog", Library: true})
		require.NoError(t, err)
		assertSequence(t, textLines(l), "mov rsi, 5", "mov rdi, 4", "call prog.f")
	})

	t.Run("SubExpression", func(t *testing.T) {
		elems := []lang.Element{
			fn, open(),
			&lang.Return{Value: lang.Mark(lang.BracketOpen)},
			callee, open(), &lang.Operation{Operator: lang.Plus, Left: lang.Lit("1"), Right: lang.Lit("2")}, closing(),
			closing(),
			closing(),
		}
		l, err := Generate(elems, Options{Module: "prog", Library: true})
		require.NoError(t, err)
		assertSequence(t, textLines(l),
			"mov r10, 1",
			"add r10, 2",
			"mov qword [rbp-8], r10",
			"mov rdi, qword [rbp-8]",
			"call prog.f",
		)
	})
}

func TestGenerate_Arrays(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let arr: int[3] = [7, 8, 9]
    let xs: byte[] = [1, 2]
    arr[2] = 4
    ret arr[1]
}
`))
	assertSequence(t, lines,
		"sub rsp, 16",
		"mov dword [rbp-12], 7",
		"mov dword [rbp-8], 8",
		"mov dword [rbp-4], 9",
		"mov byte [rbp-14], 1",
		"mov byte [rbp-13], 2",
		"mov dword [rbp-4], 4",
		"movsxd rax, dword [rbp-8]",
	)
}

func TestGenerate_ArrayAssignmentCount(t *testing.T) {
	for n := 1; n <= 4; n++ {
		vals := make([]lang.Token, n)
		for i := range vals {
			vals[i] = lang.Lit("1")
		}
		elems := []lang.Element{
			&lang.Function{ID: "main"}, open(),
			&lang.Variable{ID: "v", Type: lang.NewArray(lang.NewType(lang.BigInteger), n), Value: lang.Mark(lang.ArrayOpen)},
			&lang.Array{Values: vals},
			closing(),
		}
		l, err := Generate(elems, Options{Module: "prog", Library: true})
		require.NoError(t, err)

		var offsets []string
		for _, in := range l.Text() {
			if in.Mnemonic == "mov" && len(in.Operands) == 2 && in.Operands[0].IsMemory() {
				offsets = append(offsets, in.Operands[0].String())
			}
		}
		if len(offsets) != n {
			t.Fatalf("n=%d: expected %d stores, got %v", n, n, offsets)
		}
		for i, got := range offsets {
			want := asm.Mem(asm.RBP, -(8*n - 8*i), 8).String()
			if got != want {
				t.Errorf("n=%d element %d: expected %s, got %s", n, i, want, got)
			}
		}
	}
}

func TestGenerate_Statics(t *testing.T) {
	l := compileSource(t, `
static greeting: str = "hi\n"
static count: int = 5
static table: bigint[3] = [1, 2]
func main(): int {
    print greeting
    count = 7
    ret count
}
`)
	dump := l.String()
	assertContains(t, dump, "prog.greeting: db `hi\\n`, 0")
	assertContains(t, dump, "prog.count: dd 5")
	assertContains(t, dump, "prog.table: dq 1, 2\n    times 1 dq 0")

	lines := textLines(l)
	assertSequence(t, lines,
		"lea rsi, [rel prog.greeting]",
		"xor rdx, rdx",
		"print_scan_1:",
		"cmp byte [rsi+rdx], 0",
		"je print_done_1",
		"inc rdx",
		"jmp print_scan_1",
		"print_done_1:",
		"mov rax, 1",
		"mov rdi, 1",
		"syscall",
		"mov dword [rel prog.count], 7",
		"movsxd rax, dword [rel prog.count]",
	)
}

func TestGenerate_StringLiterals(t *testing.T) {
	l := compileSource(t, `
func main(): int {
    let s: str = "abc"
    print s
    print "abc"
    ret 0
}
`)
	lines := textLines(l)
	assertSequence(t, lines,
		"lea r11, [rel str_0]",
		"mov qword [rbp-8], r11",
		"mov rsi, qword [rbp-8]",
	)
	assertContains(t, l.String(), "str_0: db `abc`, 0")
	if strings.Contains(l.String(), "str_1") {
		t.Error("identical literal interned twice")
	}
}

func TestGenerate_ExitAndInlineAsm(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    @ nop
    exit 42
}
`))
	assertSequence(t, lines, "nop", "mov rdi, 42", "mov rax, 60", "syscall")
}

func TestGenerate_ImplicitReturn(t *testing.T) {
	lines := textLines(compileSource(t, `
func f(x: int) {
    x = 2
}
`))
	assertSequence(t, lines,
		"mov dword [rbp-4], 2",
		"mov rax, 0",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
	)
	if n := count(lines, "ret"); n != 1 {
		t.Errorf("expected exactly one ret, got %d", n)
	}
}

func TestGenerate_NoLocals(t *testing.T) {
	l := compileSource(t, "func f(): int { ret 3 }")
	for _, line := range textLines(l) {
		if strings.HasPrefix(line, "sub rsp") {
			t.Errorf("frame reserved without locals: %q", line)
		}
	}
	assertContains(t, l.String(), "; no locals")
}

func TestGenerate_BlockShadowing(t *testing.T) {
	lines := textLines(compileSource(t, `
func main(): int {
    let x: int = 1
    {
        let x: byte = 2
        x = 3
    }
    ret x
}
`))
	assertSequence(t, lines,
		"mov dword [rbp-4], 1",
		"mov byte [rbp-5], 2",
		"mov byte [rbp-5], 3",
		"movsxd rax, dword [rbp-4]",
	)
}

func TestGenerate_NestedFunction(t *testing.T) {
	l := compileSource(t, `
func main(): int {
    func helper(): int { ret 3 }
    ret helper()
}
`)
	lines := textLines(l)
	assertSequence(t, lines,
		"jmp fn_skip_1",
		"prog.main.helper:",
		"push rbp",
		"mov rbp, rsp",
		"mov rax, 3",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
		"fn_skip_1:",
		"call prog.main.helper",
	)
	assertContains(t, l.String(), "global prog.main.helper")
}

func TestGenerate_FlatFunctions(t *testing.T) {
	elems := []lang.Element{
		&lang.Function{ID: "f"},
		&lang.Return{Value: lang.Lit("1")},
		&lang.Function{ID: "main"},
		&lang.Variable{ID: "x", Type: lang.NewType(lang.Integer), Value: lang.Lit("2")},
		&lang.Return{Value: lang.Lit("x")},
	}
	l, err := Generate(elems, Options{Module: "prog"})
	require.NoError(t, err)
	lines := textLines(l)

	if n := count(lines, "push rbp"); n != 2 {
		t.Errorf("expected one prologue per function, got %d", n)
	}
	assertSequence(t, lines, "prog.f:", "push rbp", "mov rbp, rsp", "mov rax, 1")
	assertSequence(t, lines, "main:", "push rbp", "mov rbp, rsp", "sub rsp, 16", "mov dword [rbp-4], 2")
	if elems[3].(*lang.Variable).Offset != 4 {
		t.Errorf("variable offset not recorded: %+v", elems[3])
	}
}

func TestGenerate_ModuleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown identifier", "func main(): int { ret y }", ErrInternal},
		{"unknown assignment target", "func main(): int { y = 1 }", ErrInternal},
		{"top-level local", "let x: int = 1", ErrUnsupported},
		{"static from variable", "func main(): int { let a: int = 1\n static s: int = a }", ErrUnsupported},
		{"index out of range", "func main(): int { let a: int[2] = [1, 2]\n ret a[2] }", ErrInternal},
		{"too many values", "func main(): int { let a: int[2] = [1, 2, 3] }", ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(tt.src, Options{Module: "prog"})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerate_LibraryMode(t *testing.T) {
	l, _, err := Compile("func main(): int { ret 0 }", Options{Module: "prog", Library: true})
	require.NoError(t, err)
	if strings.Contains(l.String(), "_start") {
		t.Errorf("library listing has an entry stub:\n%s", l)
	}
}

func TestStmtEnd(t *testing.T) {
	// if (a) { ret } else { ret } tail
	elems := []lang.Element{
		mark(lang.KwIf),
		&lang.Operation{Operator: lang.Less, Left: lang.Mark(lang.BracketOpen), Right: lang.Lit("3")},
		&lang.Operation{Operator: lang.Plus, Left: lang.Lit("a"), Right: lang.Lit("1")},
		closing(),
		open(), &lang.Return{}, closing(),
		mark(lang.KwElse),
		open(), &lang.Return{}, closing(),
		&lang.Other{Token: lang.Lit("tail")},
	}
	end, err := stmtEnd(elems, 0)
	require.NoError(t, err)
	require.Equal(t, 11, end)

	end, err = stmtEnd(elems, 1)
	require.NoError(t, err)
	require.Equal(t, 4, end)

	// loop { break } { ret }
	elems = []lang.Element{
		mark(lang.KwLoop), mark(lang.None), open(), mark(lang.KwBreak), closing(),
		open(), &lang.Return{}, closing(),
	}
	end, err = stmtEnd(elems, 0)
	require.NoError(t, err)
	require.Equal(t, 5, end)
}

func open() lang.Element    { return mark(lang.BracketOpen) }
func closing() lang.Element { return mark(lang.BracketClose) }

func mark(k lang.TokenKind) lang.Element { return &lang.Other{Token: lang.Mark(k)} }
