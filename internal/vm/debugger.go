package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rill/internal/unit"
)

// Debugger provides an interactive command loop over a stepped Execution.
type Debugger struct {
	exec        *Execution
	breakpoints *Breakpoints
	inspector   *Inspector

	in          *bufio.Scanner
	out         io.Writer
	interactive bool

	quit bool
}

// DebuggerResult contains the outcome of a debugger session.
type DebuggerResult struct {
	Value Value
	Done  bool
	Quit  bool
}

// NewDebugger creates a debugger over exec. interactive controls whether a
// prompt is printed before each command.
func NewDebugger(exec *Execution, in io.Reader, out io.Writer, interactive bool) *Debugger {
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}
	d := &Debugger{
		exec:        exec,
		breakpoints: NewBreakpoints(),
		out:         out,
		interactive: interactive,
	}
	d.in = bufio.NewScanner(in)
	d.inspector = NewInspector(exec.Vm(), out)
	return d
}

// Breakpoints returns the breakpoints collection.
func (d *Debugger) Breakpoints() *Breakpoints {
	if d == nil {
		return nil
	}
	return d.breakpoints
}

// Run executes the debugger session.
func (d *Debugger) Run() (DebuggerResult, *VmError) {
	if d == nil || d.exec == nil {
		return DebuggerResult{}, nil
	}

	for {
		if d.exec.Done() {
			return DebuggerResult{Value: d.exec.result, Done: true}, nil
		}
		if d.quit {
			return DebuggerResult{Quit: true}, nil
		}

		if d.interactive {
			fmt.Fprint(d.out, "(rilldb) ") //nolint:errcheck
		}
		if !d.in.Scan() {
			break
		}
		line := strings.TrimSpace(d.in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, vmErr := d.execCommand(line)
		if vmErr != nil {
			return DebuggerResult{}, vmErr
		}
		if res.Quit || res.Done {
			return res, nil
		}
	}

	// Script mode: when input ends, continue to completion (ignoring
	// breakpoints).
	if !d.interactive && !d.exec.Done() {
		v, err := d.exec.Complete()
		if err != nil {
			return DebuggerResult{}, err
		}
		return DebuggerResult{Value: v, Done: true}, nil
	}

	if d.quit {
		return DebuggerResult{Quit: true}, nil
	}
	if d.exec.Done() {
		return DebuggerResult{Value: d.exec.result, Done: true}, nil
	}
	return DebuggerResult{}, nil
}

func (d *Debugger) execCommand(line string) (DebuggerResult, *VmError) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return DebuggerResult{}, nil
	}
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		d.help()
	case "step", "s":
		return d.cmdStep()
	case "next", "n":
		return d.cmdNext()
	case "continue", "c":
		return d.cmdContinue()
	case "break":
		if len(args) != 1 {
			fmt.Fprintln(d.out, "error: break expects <file:line>") //nolint:errcheck
			return DebuggerResult{}, nil
		}
		if err := d.cmdBreak(args[0]); err != nil {
			fmt.Fprintf(d.out, "error: %s\n", err.Error()) //nolint:errcheck
		}
	case "break-fn":
		if len(args) != 1 {
			fmt.Fprintln(d.out, "error: break-fn expects <name>") //nolint:errcheck
			return DebuggerResult{}, nil
		}
		bp, err := d.breakpoints.AddFuncEntry(args[0])
		if err != nil {
			fmt.Fprintf(d.out, "error: %s\n", err.Error()) //nolint:errcheck
		} else {
			fmt.Fprintf(d.out, "breakpoint %s\n", bp.Summary()) //nolint:errcheck
		}
	case "delete":
		if len(args) != 1 {
			fmt.Fprintln(d.out, "error: delete expects <id>") //nolint:errcheck
			return DebuggerResult{}, nil
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			fmt.Fprintln(d.out, "error: invalid breakpoint id") //nolint:errcheck
			return DebuggerResult{}, nil
		}
		if !d.breakpoints.Delete(id) {
			fmt.Fprintln(d.out, "error: unknown breakpoint id") //nolint:errcheck
		}
	case "list":
		d.cmdList()
	case "stack":
		d.inspector.Window()
	case "frames":
		d.inspector.Frames()
	case "where", "w":
		d.inspector.Where()
	case "quit":
		d.quit = true
		return DebuggerResult{Quit: true}, nil
	default:
		fmt.Fprintln(d.out, "error: unknown command") //nolint:errcheck
	}

	return DebuggerResult{}, nil
}

func (d *Debugger) cmdStep() (DebuggerResult, *VmError) {
	v, done, vmErr := d.exec.Step()
	if vmErr != nil {
		return DebuggerResult{}, vmErr
	}
	if done {
		return DebuggerResult{Value: v, Done: true}, nil
	}
	d.inspector.Where()
	return DebuggerResult{}, nil
}

// cmdNext steps over calls: a call instruction runs until control is back
// at the caller's depth, stopping early on breakpoints.
func (d *Debugger) cmdNext() (DebuggerResult, *VmError) {
	vm := d.exec.Vm()
	sp, ok := vm.StopPoint()
	if !ok {
		return DebuggerResult{}, nil
	}
	if sp.Inst.Op != unit.OpCall {
		return d.cmdStep()
	}

	origDepth := vm.Depth()
	if _, done, vmErr := d.exec.Step(); vmErr != nil || done {
		return DebuggerResult{Done: done}, vmErr
	}
	for {
		sp, ok := vm.StopPoint()
		if !ok {
			break
		}
		if bp, hit := d.breakpoints.Match(vm, sp); hit {
			d.printBreakpointStop(bp, sp)
			return DebuggerResult{}, nil
		}
		if vm.Depth() <= origDepth {
			break
		}
		if _, done, vmErr := d.exec.Step(); vmErr != nil || done {
			return DebuggerResult{Done: done}, vmErr
		}
	}
	d.inspector.Where()
	return DebuggerResult{}, nil
}

func (d *Debugger) cmdContinue() (DebuggerResult, *VmError) {
	vm := d.exec.Vm()

	// If we're already sitting on a breakpoint location, advance once.
	if sp, ok := vm.StopPoint(); ok {
		if _, hit := d.breakpoints.Match(vm, sp); hit {
			if v, done, vmErr := d.exec.Step(); vmErr != nil || done {
				return DebuggerResult{Value: v, Done: done}, vmErr
			}
		}
	}

	for {
		sp, ok := vm.StopPoint()
		if !ok {
			break
		}
		if bp, hit := d.breakpoints.Match(vm, sp); hit {
			d.printBreakpointStop(bp, sp)
			return DebuggerResult{}, nil
		}
		if v, done, vmErr := d.exec.Step(); vmErr != nil || done {
			return DebuggerResult{Value: v, Done: done}, vmErr
		}
	}
	return DebuggerResult{Value: d.exec.result, Done: true}, nil
}

func (d *Debugger) cmdBreak(arg string) error {
	idx := strings.LastIndex(arg, ":")
	if idx <= 0 || idx == len(arg)-1 {
		return fmt.Errorf("expected <file:line>, got %q", arg)
	}
	line, err := strconv.Atoi(arg[idx+1:])
	if err != nil {
		return fmt.Errorf("invalid line %q", arg[idx+1:])
	}
	bp, err := d.breakpoints.AddFileLine(arg[:idx], line)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "breakpoint %s\n", bp.Summary()) //nolint:errcheck
	return nil
}

func (d *Debugger) cmdList() {
	bps := d.breakpoints.List()
	if len(bps) == 0 {
		fmt.Fprintln(d.out, "no breakpoints") //nolint:errcheck
		return
	}
	for _, bp := range bps {
		fmt.Fprintln(d.out, bp.Summary()) //nolint:errcheck
	}
}

func (d *Debugger) printBreakpointStop(bp *Breakpoint, sp StopPoint) {
	fmt.Fprintf(d.out, "hit %s at ip=%d\n", bp.Summary(), sp.IP) //nolint:errcheck
	d.inspector.Where()
}

func (d *Debugger) help() {
	fmt.Fprintln(d.out, `commands:
  step|s          execute one instruction
  next|n          step over calls
  continue|c      run until breakpoint or completion
  break F:L       set a file:line breakpoint
  break-fn NAME   break on function entry
  delete ID       remove a breakpoint
  list            list breakpoints
  stack           dump the visible stack window
  frames          print the call backtrace
  where|w         show the next instruction
  quit            abandon the execution`) //nolint:errcheck
}
