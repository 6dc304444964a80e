package vm

import (
	"rill/internal/unit"
)

// Execution drives one function invocation. Callers either Complete it or
// repeatedly Step it; it is terminal once a value or error has been
// produced. Abandoning an Execution before completion simply drops it:
// guards held by stack values go away with the Vm.
type Execution struct {
	vm     *Vm
	done   bool
	result Value
	err    *VmError
}

// Execute positions a fresh Vm at the entry of the named function and
// returns the Execution driving it. Arity is checked up front; no
// instruction runs until Complete or Step.
func Execute(u *unit.Unit, ctx *Context, name string, args []Value) (*Execution, *VmError) {
	vm := New(u, ctx)
	if err := vm.setup(name, args); err != nil {
		return nil, err
	}
	return &Execution{vm: vm}, nil
}

// Vm exposes the underlying machine for inspection tools.
func (e *Execution) Vm() *Vm {
	return e.vm
}

// Done reports whether the execution has produced its value or error.
func (e *Execution) Done() bool {
	return e.done
}

// Complete runs until the entry function returns and yields its value.
func (e *Execution) Complete() (Value, *VmError) {
	return e.resume(-1)
}

// CompleteWithin is Complete with a caller-imposed instruction budget.
// Exhausting it yields a distinct limited error so callers can tell "out
// of budget" from "program error".
func (e *Execution) CompleteWithin(fuel int) (Value, *VmError) {
	return e.resume(fuel)
}

func (e *Execution) resume(budget int) (Value, *VmError) {
	if e.done {
		return e.result, e.err
	}
	done, err := e.vm.run(budget)
	if err != nil {
		e.done = true
		e.err = err
		return Value{}, err
	}
	if !done {
		return Value{}, newError(KindLimited, "execution budget of %d instructions exhausted", budget)
	}
	e.done = true
	e.result = e.vm.result
	return e.result, nil
}

// Step executes exactly one instruction. It returns ok=false while the
// function has not yet returned; on completion it returns the final value
// with ok=true. Step N then Step N+1 is equivalent to the corresponding
// instructions of one Complete call.
func (e *Execution) Step() (Value, bool, *VmError) {
	if e.done {
		return e.result, true, e.err
	}
	done, err := e.vm.run(1)
	if err != nil {
		e.done = true
		e.err = err
		return Value{}, false, err
	}
	if !done {
		return Value{}, false, nil
	}
	e.done = true
	e.result = e.vm.result
	return e.result, true, nil
}
