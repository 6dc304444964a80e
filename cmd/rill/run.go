package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rill/internal/stdlib"
	"rill/internal/unit"
	"rill/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file>...",
	Short: "Execute bytecode units",
	Long:  "Execute one or more bytecode units. Settings in rill.toml apply unless overridden by flags.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().String("entry", "", "entry function (default from rill.toml, else main)")
	runCmd.Flags().Int("fuel", 0, "instruction budget, 0 means unlimited")
	runCmd.Flags().Bool("trace", false, "print each executed instruction to stderr")
	runCmd.Flags().Bool("ui", false, "step through execution interactively")
	runCmd.Flags().String("record", "", "write an execution log to this file")
	runCmd.Flags().Int("jobs", 0, "number of files to run in parallel, 0 means GOMAXPROCS")
}

type runOptions struct {
	Entry  string
	Fuel   int
	Trace  bool
	Record string
}

func runExecution(cmd *cobra.Command, args []string) error {
	opts, err := readRunOptions(cmd)
	if err != nil {
		return err
	}
	useUI, err := cmd.Flags().GetBool("ui")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}

	if useUI {
		if len(args) != 1 {
			return fmt.Errorf("--ui runs a single file")
		}
		if !isTerminal(os.Stdout) || !isTerminal(os.Stdin) {
			return fmt.Errorf("--ui requires a terminal")
		}
		return runStepperUI(args[0], opts)
	}
	if opts.Record != "" && len(args) != 1 {
		return fmt.Errorf("--record runs a single file")
	}
	if len(args) == 1 {
		return runOne(args[0], opts, os.Stdout)
	}
	return runParallel(cmd.Context(), args, opts, jobs)
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	defaults, err := manifestDefaults()
	if err != nil {
		return runOptions{}, err
	}
	opts := runOptions{Entry: defaults.Entry, Fuel: defaults.Fuel, Trace: defaults.Trace}
	if cmd.Flags().Changed("entry") {
		if opts.Entry, err = cmd.Flags().GetString("entry"); err != nil {
			return runOptions{}, err
		}
	}
	if cmd.Flags().Changed("fuel") {
		if opts.Fuel, err = cmd.Flags().GetInt("fuel"); err != nil {
			return runOptions{}, err
		}
		if opts.Fuel < 0 {
			return runOptions{}, fmt.Errorf("--fuel must not be negative")
		}
	}
	if cmd.Flags().Changed("trace") {
		if opts.Trace, err = cmd.Flags().GetBool("trace"); err != nil {
			return runOptions{}, err
		}
	}
	if opts.Record, err = cmd.Flags().GetString("record"); err != nil {
		return runOptions{}, err
	}
	return opts, nil
}

// runOne executes a single unit, printing natives' output and the final
// result to out.
func runOne(path string, opts runOptions, out io.Writer) error {
	u, err := loadUnit(path)
	if err != nil {
		return err
	}
	return runLoaded(path, u, opts, out)
}

func runLoaded(path string, u *unit.Unit, opts runOptions, out io.Writer) error {
	exec, err := startExecution(path, u, opts, out)
	if err != nil {
		return err
	}
	if opts.Record != "" {
		return recordRun(exec, opts, out)
	}

	var value vm.Value
	var verr *vm.VmError
	if opts.Fuel > 0 {
		value, verr = exec.CompleteWithin(opts.Fuel)
	} else {
		value, verr = exec.Complete()
	}
	if verr != nil {
		return fmt.Errorf("%s: %s", path, verr.Format())
	}
	fmt.Fprintf(out, "%s\n", value.DebugString()) //nolint:errcheck
	value.Release()
	return nil
}

// startExecution positions an execution at the entry function. Native
// console output goes to out.
func startExecution(path string, u *unit.Unit, opts runOptions, out io.Writer) (*vm.Execution, error) {
	ctx, err := stdlib.Default(out)
	if err != nil {
		return nil, err
	}
	exec, verr := vm.Execute(u, ctx, opts.Entry, nil)
	if verr != nil {
		return nil, fmt.Errorf("%s: %s", path, verr.Format())
	}
	if opts.Trace {
		exec.Vm().SetTracer(vm.NewTracer(os.Stderr).WithStack())
	}
	return exec, nil
}

// runParallel executes several files concurrently. Units are loaded once
// per unique path and shared read-only between the VMs; each run buffers
// its output so the report stays grouped per file, in argument order.
func runParallel(ctx context.Context, paths []string, opts runOptions, jobs int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	outputs := make([]bytes.Buffer, len(paths))
	errs := make([]error, len(paths))

	units := make(map[string]*unit.Unit, len(paths))
	loadErrs := make(map[string]error)
	for _, path := range paths {
		if _, ok := units[path]; ok {
			continue
		}
		if _, bad := loadErrs[path]; bad {
			continue
		}
		u, err := loadUnit(path)
		if err != nil {
			loadErrs[path] = err
			continue
		}
		units[path] = u
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		i, path := i, path
		u, ok := units[path]
		if !ok {
			errs[i] = loadErrs[path]
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			errs[i] = runLoaded(path, u, opts, &outputs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var failed int
	for i, path := range paths {
		fmt.Fprintf(os.Stdout, "=== %s\n", path)  //nolint:errcheck
		os.Stdout.Write(outputs[i].Bytes())       //nolint:errcheck
		if errs[i] != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%v\n", errs[i]) //nolint:errcheck
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(paths))
	}
	return nil
}

// recordRun drives the execution one step at a time, logging every stop
// point so the run can be replayed later.
func recordRun(exec *vm.Execution, opts runOptions, out io.Writer) error {
	f, err := os.Create(opts.Record)
	if err != nil {
		return fmt.Errorf("create record log: %w", err)
	}
	defer f.Close() //nolint:errcheck

	rec := vm.NewRecorder(f, exec)
	steps := 0
	for {
		if opts.Fuel > 0 && steps >= opts.Fuel {
			return fmt.Errorf("fuel exhausted after %d instructions", steps)
		}
		sp, ok := exec.Vm().StopPoint()
		if ok {
			rec.RecordStep(sp)
		}
		value, done, verr := exec.Step()
		steps++
		if verr != nil {
			rec.RecordPanic(verr)
			return fmt.Errorf("%s", verr.Format())
		}
		if done {
			rec.RecordResult(value)
			if rec.Err() != nil {
				return fmt.Errorf("write record log: %w", rec.Err())
			}
			fmt.Fprintf(out, "%s\n", value.DebugString()) //nolint:errcheck
			value.Release()
			return nil
		}
	}
}
