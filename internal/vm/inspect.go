package vm

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"

	"rill/internal/unit"
)

// StopPoint describes the instruction that would execute next.
type StopPoint struct {
	IP    int
	Inst  unit.Inst
	Depth int
	Fn    string
}

// StopPoint returns the next instruction, or ok=false once the execution
// has completed.
func (vm *Vm) StopPoint() (StopPoint, bool) {
	if vm == nil || vm.completed {
		return StopPoint{}, false
	}
	inst, ok := vm.unit.Inst(vm.ip)
	if !ok {
		return StopPoint{}, false
	}
	fn := vm.entry.Name
	if n := len(vm.callFrames); n > 0 {
		fn = vm.callFrames[n-1].Fn.Name
	}
	return StopPoint{IP: vm.ip, Inst: inst, Depth: len(vm.callFrames), Fn: fn}, true
}

// Inspector renders Vm state for the debugger.
type Inspector struct {
	vm  *Vm
	out io.Writer
}

// NewInspector creates an inspector over vm, writing to out.
func NewInspector(vm *Vm, out io.Writer) *Inspector {
	if vm == nil {
		return nil
	}
	return &Inspector{vm: vm, out: out}
}

const inspectValueWidth = 40

// Window prints the visible stack window, one line per slot, offset 0
// first. Values are truncated to a fixed display width.
func (i *Inspector) Window() {
	if i == nil || i.out == nil {
		return
	}
	fmt.Fprintln(i.out, "stack window:")
	values := i.vm.stack.Values()
	bottom := i.vm.stack.Bottom()
	if len(values) == bottom {
		fmt.Fprintln(i.out, "  (empty)")
		return
	}
	for idx := bottom; idx < len(values); idx++ {
		v := values[idx]
		fmt.Fprintf(i.out, "  +%d: %s %s\n",
			idx-bottom, padDisplay(v.DebugString(), inspectValueWidth), v.TypeInfo())
	}
}

// Frames prints the call backtrace, innermost first.
func (i *Inspector) Frames() {
	if i == nil || i.out == nil {
		return
	}
	fmt.Fprintln(i.out, "frames:")
	frames := i.vm.callFrames
	for depth := 0; depth < len(frames); depth++ {
		f := frames[len(frames)-1-depth]
		callIP := f.ReturnIP - 1
		fmt.Fprintf(i.out, "  %d: %s @ %s\n", depth, f.Fn.Name, i.vm.unit.FormatSpanAt(callIP))
	}
	fmt.Fprintf(i.out, "  %d: %s (entry)\n", len(frames), i.vm.entry.Name)
}

// Where prints the next instruction with its source position.
func (i *Inspector) Where() {
	if i == nil || i.out == nil {
		return
	}
	sp, ok := i.vm.StopPoint()
	if !ok {
		fmt.Fprintln(i.out, "execution finished")
		return
	}
	fmt.Fprintf(i.out, "ip=%d [depth=%d] %s @ %s\n",
		sp.IP, sp.Depth, sp.Inst, i.vm.unit.FormatSpanAt(sp.IP))
}

func padDisplay(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width-3, "...")
	}
	return runewidth.FillRight(s, width)
}
