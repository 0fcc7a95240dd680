package main

import (
	"fmt"
	"os"

	"juc/pkg/compiler"
	"juc/pkg/parser"
	"juc/pkg/utils"
)

const testSource = `func main(): int {
    let x: int = 10
    let y: int = 20
    ret x + y
}
`

func main() {
	src := testSource
	module := compiler.DefaultModule
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		module = utils.ModuleName(os.Args[1])
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := parser.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse
	elems, err := parser.Parse(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Printf("Elements (%d)\n", len(elems))
	for i, e := range elems {
		fmt.Printf("  %3d  %s\n", i, e)
	}
	fmt.Println()

	// code Generation
	listing, err := compiler.Generate(elems, compiler.Options{Module: module})
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	fmt.Printf("Generated Assembly (%d text, %d data)\n", len(listing.Text()), len(listing.Data()))
	fmt.Print(listing)
}
