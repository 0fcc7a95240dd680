package compiler

import (
	"fmt"

	"juc/pkg/asm"
	"juc/pkg/lang"
	"juc/pkg/parser"
)

// DefaultModule prefixes labels when Options.Module is empty.
const DefaultModule = "main"

// Generate lowers the elements of one source file. Call targets the file does
// not define are declared extern.
func Generate(elems []lang.Element, opts Options) (*asm.Listing, error) {
	if opts.Module == "" {
		opts.Module = DefaultModule
	}
	cg := newCodeGen(opts)
	if err := cg.walk(elems); err != nil {
		return nil, err
	}
	for _, label := range cg.called {
		if !cg.defined[label] {
			cg.out.Extern(label)
		}
	}
	cg.tgt.Finish(cg.out)
	return cg.out, nil
}

// Compile parses src and lowers it.
func Compile(src string, opts Options) (*asm.Listing, []lang.Element, error) {
	elems, err := parser.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}
	listing, err := Generate(elems, opts)
	if err != nil {
		return nil, elems, fmt.Errorf("codegen error: %w", err)
	}
	return listing, elems, nil
}
