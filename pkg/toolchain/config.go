// Package toolchain drives a build: each source file is lowered to an
// assembly file under the build directory, assembled into an object file, and
// the objects are linked into one executable or shared library.
package toolchain

import "runtime"

// Config describes one build.
type Config struct {
	Sources  []string // .ju files, in link order
	BuildDir string   // assembly and object files go here
	Output   string   // linked executable or library
	Library  bool     // no entry stub, link with -shared
	Jobs     int      // files lowered and assembled in parallel; <1 means one per CPU

	Assembler string
	Linker    string

	EmitOnly bool // stop after writing the assembly files
	Clean    bool // remove BuildDir after a successful link
}

func DefaultConfig() Config {
	return Config{
		BuildDir:  ".junon",
		Output:    "junon.out",
		Jobs:      1,
		Assembler: "nasm",
		Linker:    "ld",
	}
}

func (c Config) jobs() int {
	if c.Jobs < 1 {
		return runtime.NumCPU()
	}
	return c.Jobs
}
