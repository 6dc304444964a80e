package vm

import (
	"fmt"
	"io"

	"rill/internal/unit"
)

// Tracer writes one line per executed instruction.
type Tracer struct {
	w         io.Writer
	withStack bool
}

// NewTracer creates a tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// WithStack makes the tracer append the visible stack window to each line.
func (t *Tracer) WithStack() *Tracer {
	t.withStack = true
	return t
}

// TraceInst traces one instruction about to execute.
// Format: [depth=N] ip=I <inst> @ <file>:<line>:<col>
func (t *Tracer) TraceInst(vm *Vm, inst unit.Inst) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] ip=%d %s @ %s",
		vm.Depth(), vm.IP(), inst, vm.Unit().FormatSpanAt(vm.IP()))
	if entry, ok := vm.Unit().DebugAt(vm.IP()); ok && entry.Label != "" {
		fmt.Fprintf(t.w, " ; %s", entry.Label)
	}
	if t.withStack {
		fmt.Fprintf(t.w, " stack=%s", vm.Stack().Dump())
	}
	fmt.Fprintln(t.w)
}
