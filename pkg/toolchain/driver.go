package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"juc/pkg/compiler"
	"juc/pkg/utils"
)

// Driver runs the per-file pipeline and the final link.
type Driver struct {
	cfg    Config
	runner Runner
	log    *log.Logger
	target compiler.Target
}

// NewDriver returns a driver for cfg. A nil runner runs real processes; a nil
// logger discards progress output.
func NewDriver(cfg Config, runner Runner, logger *log.Logger) *Driver {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{cfg: cfg, runner: runner, log: logger, target: compiler.LinuxAMD64{}}
}

// Result lists what a build produced.
type Result struct {
	Assembly []string // per source, in source order
	Objects  []string // empty when only emitting assembly
	Output   string   // empty when only emitting assembly
}

// Build lowers and assembles every source, then links the objects in source
// order. The first failure cancels the files still in flight and no link is
// attempted.
func (d *Driver) Build(ctx context.Context) (*Result, error) {
	if len(d.cfg.Sources) == 0 {
		return nil, errors.New("no source files")
	}
	if err := checkModules(d.cfg.Sources); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.cfg.BuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("build dir: %w", err)
	}

	res := &Result{Assembly: make([]string, len(d.cfg.Sources))}
	objs := make([]string, len(d.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.jobs())
	for i, src := range d.cfg.Sources {
		i, src := i, src
		g.Go(func() error {
			asmPath, err := d.lower(src)
			if err != nil {
				return err
			}
			res.Assembly[i] = asmPath
			if d.cfg.EmitOnly {
				return nil
			}
			obj, err := d.assemble(gctx, asmPath, src)
			if err != nil {
				return err
			}
			objs[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.cfg.EmitOnly {
		return res, nil
	}

	res.Objects = objs
	if err := d.link(ctx, objs); err != nil {
		return nil, err
	}
	res.Output = d.cfg.Output

	if d.cfg.Clean {
		d.log.Printf("removing %s", d.cfg.BuildDir)
		if err := os.RemoveAll(d.cfg.BuildDir); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}
	return res, nil
}

// lower compiles src and writes its listing to the build directory.
func (d *Driver) lower(src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	d.log.Printf("compiling %s", src)
	listing, _, err := compiler.Compile(string(data), compiler.Options{
		Module:  utils.ModuleName(src),
		Target:  d.target,
		Library: d.cfg.Library,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", src, err)
	}

	asmPath := utils.AsmPath(d.cfg.BuildDir, src)
	f, err := os.Create(asmPath)
	if err != nil {
		return "", err
	}
	if _, err := listing.WriteTo(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return asmPath, nil
}

func (d *Driver) assemble(ctx context.Context, asmPath, src string) (string, error) {
	obj := utils.ObjPath(d.cfg.BuildDir, src)
	d.log.Printf("assembling %s", asmPath)
	err := d.tool(ctx, d.cfg.Assembler, asmPath, "-f", d.target.ObjectFormat(), "-o", obj)
	return obj, err
}

func (d *Driver) link(ctx context.Context, objs []string) error {
	_, dir, err := utils.GetPathInfo(d.cfg.Output)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	args := []string{"-o", d.cfg.Output}
	if d.cfg.Library {
		args = append(args, "-shared")
	}
	args = append(args, objs...)
	d.log.Printf("linking %s", d.cfg.Output)
	return d.tool(ctx, d.cfg.Linker, args...)
}

// tool runs one external tool. Any output on standard error fails the build.
func (d *Driver) tool(ctx context.Context, name string, args ...string) error {
	d.log.Printf("running %s %s", name, strings.Join(args, " "))
	stderr, err := d.runner.Run(ctx, name, args...)
	if err == nil && strings.TrimSpace(stderr) == "" {
		return nil
	}
	terr := &ToolError{Tool: name, Args: args, Stderr: stderr, Err: err}
	d.log.Printf("%v", terr)
	return terr
}

// checkModules rejects sources that would share a module name, and with it
// their labels and build files.
func checkModules(srcs []string) error {
	seen := make(map[string]string, len(srcs))
	for _, src := range srcs {
		mod := utils.ModuleName(src)
		if prev, ok := seen[mod]; ok {
			return fmt.Errorf("%s and %s both define module %s", prev, src, mod)
		}
		seen[mod] = src
	}
	return nil
}
