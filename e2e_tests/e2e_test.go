package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"juc/pkg/toolchain"
)

func requireTools(t *testing.T) {
	t.Helper()
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}

// buildAndRun builds files (name -> source, linked in name order) and runs
// the executable, returning its exit status and standard output.
func buildAndRun(t *testing.T, files map[string]string) (int, string) {
	t.Helper()
	requireTools(t)

	dir := t.TempDir()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg := toolchain.DefaultConfig()
	cfg.BuildDir = filepath.Join(dir, "build")
	cfg.Output = filepath.Join(dir, "prog")
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(files[name]), 0o644))
		cfg.Sources = append(cfg.Sources, p)
	}

	_, err := toolchain.NewDriver(cfg, nil, nil).Build(context.Background())
	require.NoError(t, err)

	var stdout bytes.Buffer
	cmd := exec.Command(cfg.Output)
	cmd.Stdout = &stdout
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stdout.String()
	}
	require.NoError(t, err)
	return 0, stdout.String()
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		status int
		stdout string
	}{
		{
			name: "Recursion",
			files: map[string]string{"main.ju": `
func fib(n: int): int {
    if n < 2 { ret n }
    ret fib(n - 1) + fib(n - 2)
}
func main(): int {
    ret fib(10)
}
`},
			status: 55,
		},
		{
			name: "Loop with break and continue",
			files: map[string]string{"main.ju": `
func main(): int {
    let i: int = 0
    let s: int = 0
    loop {
        i = i + 1
        if i > 10 { break }
        if i == 5 { continue }
        s = s + i
    }
    ret s
}
`},
			status: 50,
		},
		{
			name: "Block after loop",
			files: map[string]string{"main.ju": `
func main(): int {
    let n: int = 0
    loop {
        n = n + 1
        if n == 3 { break }
    }
    {
        let k: int = 7
        n = n + k
    }
    ret n
}
`},
			status: 10,
		},
		{
			name: "Arithmetic",
			files: map[string]string{"main.ju": `
func main(): int {
    let a: bigint = 100
    let b: byte = 7
    ret (a / b) * 2 - -3
}
`},
			status: 31,
		},
		{
			name: "Arrays",
			files: map[string]string{"main.ju": `
func main(): int {
    let xs: int[] = [4, 5, 6]
    xs[1] = 10
    ret xs[0] + xs[1] + xs[2]
}
`},
			status: 20,
		},
		{
			name: "Statics",
			files: map[string]string{"main.ju": `
static count: int = 5
func main(): int {
    count = count + 2
    ret count
}
`},
			status: 7,
		},
		{
			name: "Print",
			files: map[string]string{"main.ju": `
static greeting: str = "hello\n"
func main(): int {
    print greeting
    print "bye\n"
    ret 0
}
`},
			stdout: "hello\nbye\n",
		},
		{
			name: "Exit",
			files: map[string]string{"main.ju": `
func main(): int {
    let x: int = 3
    if x == 3 { exit 9 }
    ret 1
}
`},
			status: 9,
		},
		{
			name: "Two modules",
			files: map[string]string{
				"main.ju": "func main(): int { ret util.twice(21) }",
				"util.ju": "func twice(x: int): int { ret x * 2 }",
			},
			status: 42,
		},
		{
			name: "Nested function",
			files: map[string]string{"main.ju": `
func main(): int {
    func square(x: int): int { ret x * x }
    ret square(6) + 1
}
`},
			status: 37,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, stdout := buildAndRun(t, tt.files)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.stdout, stdout)
		})
	}
}
