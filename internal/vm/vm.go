package vm

import (
	"rill/internal/hash"
	"rill/internal/unit"
)

// Vm executes one function invocation against a compiled unit. The unit and
// context are shared read-only; the stack, call frames and instruction
// pointer are exclusively owned.
type Vm struct {
	unit       *unit.Unit
	ctx        *Context
	ip         int
	stack      *Stack
	callFrames []CallFrame
	trace      *Tracer

	entry     unit.FnInfo
	completed bool
	result    Value
}

// New creates a Vm over a compiled unit and a native registry. ctx may be
// nil when the unit calls no natives.
func New(u *unit.Unit, ctx *Context) *Vm {
	if ctx == nil {
		ctx = NewContext()
	}
	return &Vm{
		unit:  u,
		ctx:   ctx,
		stack: NewStack(),
	}
}

// Unit returns the compiled unit under execution.
func (vm *Vm) Unit() *unit.Unit {
	return vm.unit
}

// Context returns the native registry.
func (vm *Vm) Context() *Context {
	return vm.ctx
}

// Stack returns the operand stack, for natives and inspection tools.
func (vm *Vm) Stack() *Stack {
	return vm.stack
}

// IP returns the instruction pointer of the next instruction.
func (vm *Vm) IP() int {
	return vm.ip
}

// Depth returns the number of pushed call frames. The entry invocation
// itself has depth 0.
func (vm *Vm) Depth() int {
	return len(vm.callFrames)
}

// SetTracer installs an instruction tracer; nil disables tracing.
func (vm *Vm) SetTracer(t *Tracer) {
	vm.trace = t
}

// setup positions the Vm at the entry of the named function with args on
// the stack. Arity is checked before any state changes.
func (vm *Vm) setup(name string, args []Value) *VmError {
	h := hash.Name(name)
	info, ok := vm.unit.Lookup(h)
	if !ok {
		return errMissingFunction(h)
	}
	if info.Args != len(args) {
		return errBadArgumentCount(len(args), info.Args)
	}
	for _, a := range args {
		vm.stack.Push(a)
	}
	vm.ip = info.Offset
	vm.entry = info
	return nil
}

// Entry returns the function this Vm was set up to run.
func (vm *Vm) Entry() unit.FnInfo {
	return vm.entry
}

// frameInfos captures the call backtrace for unwinding, callers first. The
// recorded ip of each frame is the call site, one before its return
// address.
func (vm *Vm) frameInfos() []FrameInfo {
	out := make([]FrameInfo, len(vm.callFrames))
	for i, f := range vm.callFrames {
		out[i] = FrameInfo{IP: f.ReturnIP - 1, StackBottom: f.StackBottom}
	}
	return out
}

// run executes at most budget instructions, unlimited when budget is
// negative. It reports true once the entry function has returned; the
// result is then held by the Vm. Errors come back unwound.
func (vm *Vm) run(budget int) (bool, *VmError) {
	for n := 0; budget < 0 || n < budget; n++ {
		if vm.completed {
			return true, nil
		}
		if err := vm.step(); err != nil {
			return false, err.Unwind(vm.ip, vm.unit, vm.frameInfos())
		}
	}
	return vm.completed, nil
}

// step executes exactly one instruction.
func (vm *Vm) step() *VmError {
	inst, ok := vm.unit.Inst(vm.ip)
	if !ok {
		return newError(KindIpOutOfBounds, "instruction pointer %d outside unit of %d instructions", vm.ip, vm.unit.Len())
	}
	if vm.trace != nil {
		vm.trace.TraceInst(vm, inst)
	}
	next := vm.ip + 1
	if err := vm.execInst(inst, &next); err != nil {
		return err
	}
	vm.ip = next
	return nil
}

// call dispatches a call instruction: unit functions first, then natives.
// Arity mismatches are reported before any frame state changes.
func (vm *Vm) call(h hash.Hash, argc int, next *int) *VmError {
	if info, ok := vm.unit.Lookup(h); ok {
		if info.Args != argc {
			return errBadArgumentCount(argc, info.Args)
		}
		old, err := vm.stack.SwapBottom(argc)
		if err != nil {
			return err
		}
		vm.callFrames = append(vm.callFrames, CallFrame{
			ReturnIP:    *next,
			StackBottom: old,
			Fn:          info,
		})
		*next = info.Offset
		return nil
	}
	if info, ok := vm.ctx.Lookup(h); ok {
		return vm.callNative(info, argc)
	}
	return errMissingFunction(h)
}

// callNative runs a host function against a stack windowed to its own
// arguments and enforces the one-result convention.
func (vm *Vm) callNative(info NativeInfo, argc int) *VmError {
	if info.Arity != ArityAny && info.Arity != argc {
		return errBadArgumentCount(argc, info.Arity)
	}
	old, err := vm.stack.SwapBottom(argc)
	if err != nil {
		return err
	}
	if err := info.Fn(vm, vm.stack, argc); err != nil {
		return err
	}
	if got := vm.stack.Len() - vm.stack.Bottom(); got != 1 {
		return newError(KindBadNativeResult, "native %s left %d values above its frame, want 1", info.Name, got)
	}
	result, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	if err := vm.stack.PopFrame(old); err != nil {
		return err
	}
	vm.stack.Push(result)
	return nil
}

// ret leaves result where the caller expects it. Returning from the entry
// invocation completes the Vm. With the result popped, the frame must be
// exactly empty; leftovers mean the unit producer or the dispatcher is
// broken.
func (vm *Vm) ret(result Value, next *int) *VmError {
	if err := vm.stack.CheckTop(0); err != nil {
		result.Release()
		return err
	}
	if len(vm.callFrames) == 0 {
		if err := vm.stack.PopFrame(0); err != nil {
			return err
		}
		vm.completed = true
		vm.result = result
		return nil
	}
	frame := vm.callFrames[len(vm.callFrames)-1]
	vm.callFrames = vm.callFrames[:len(vm.callFrames)-1]
	if err := vm.stack.PopFrame(frame.StackBottom); err != nil {
		return err
	}
	vm.stack.Push(result)
	*next = frame.ReturnIP
	return nil
}
