// Command juc compiles .ju sources to x86-64 assembly, assembles them with
// nasm and links the objects with ld.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"golang.org/x/term"

	"juc/pkg/toolchain"
)

func main() {
	cfg := toolchain.DefaultConfig()
	flag.StringVar(&cfg.Output, "o", cfg.Output, "output executable or library path")
	flag.BoolVar(&cfg.Library, "l", false, "build a shared library: no entry stub, link with -shared")
	flag.StringVar(&cfg.BuildDir, "build", cfg.BuildDir, "directory for assembly and object files")
	flag.IntVar(&cfg.Jobs, "j", cfg.Jobs, "files compiled and assembled in parallel (0: one per CPU)")
	flag.BoolVar(&cfg.EmitOnly, "S", false, "write the assembly files and stop")
	flag.BoolVar(&cfg.Clean, "clean", false, "remove the build directory after linking")
	flag.StringVar(&cfg.Assembler, "as", cfg.Assembler, "assembler command")
	flag.StringVar(&cfg.Linker, "ld", cfg.Linker, "linker command")
	verbose := flag.Bool("v", false, "log each build step")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: juc [flags] file.ju...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.Sources = flag.Args()
	if len(cfg.Sources) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	out := io.Discard
	if *verbose {
		out = os.Stderr
	}
	if err := run(cfg, log.New(out, "juc: ", 0)); err != nil {
		report(err)
		os.Exit(1)
	}
}

func run(cfg toolchain.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := toolchain.NewDriver(cfg, nil, logger).Build(ctx)
	if err != nil {
		return err
	}
	if cfg.EmitOnly {
		for _, p := range res.Assembly {
			fmt.Println(p)
		}
		return nil
	}
	logger.Printf("wrote %s", res.Output)
	return nil
}

// report prints err to stderr. The prefix is coloured on a terminal.
func report(err error) {
	prefix := "error:"
	if term.IsTerminal(int(os.Stderr.Fd())) {
		prefix = "\x1b[1;31merror:\x1b[0m"
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", prefix, err)
}
