// Package stdlib provides the native functions installed into a default
// Context: console output, collection helpers and string formatting.
package stdlib

import (
	"fmt"
	"io"
	"strings"

	"rill/internal/vm"
)

// Install registers every stdlib module into ctx. Console output goes to w.
func Install(ctx *vm.Context, w io.Writer) error {
	for _, m := range []*vm.Module{IO(w), Vec(), Str()} {
		if err := ctx.Install(m); err != nil {
			return err
		}
	}
	return nil
}

// Default builds a Context with the full stdlib installed.
func Default(w io.Writer) (*vm.Context, error) {
	ctx := vm.NewContext()
	if err := Install(ctx, w); err != nil {
		return nil, err
	}
	return ctx, nil
}

// IO is the console module: print and println render their arguments with
// debug previews and return unit.
func IO(w io.Writer) *vm.Module {
	m := vm.NewModule("io")
	emit := func(newline bool) vm.NativeFn {
		return func(_ *vm.Vm, stack *vm.Stack, args int) *vm.VmError {
			values, err := stack.Drain(args)
			if err != nil {
				return err
			}
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = displayValue(v)
				v.Release()
			}
			fmt.Fprint(w, strings.Join(parts, " "))
			if newline {
				fmt.Fprintln(w)
			}
			stack.Push(vm.MakeUnit())
			return nil
		}
	}
	m.Function("print", vm.ArityAny, emit(false))
	m.Function("println", vm.ArityAny, emit(true))
	return m
}

// Vec is the vector module.
func Vec() *vm.Module {
	m := vm.NewModule("vec")
	m.Function("len", 1, func(_ *vm.Vm, stack *vm.Stack, _ int) *vm.VmError {
		v, err := stack.Pop()
		if err != nil {
			return err
		}
		defer v.Release()
		ref, err := v.BorrowVecRef()
		if err != nil {
			return err
		}
		n := len(*ref.Get())
		ref.Release()
		stack.Push(vm.MakeInt(int64(n)))
		return nil
	})
	m.Function("push", 2, func(_ *vm.Vm, stack *vm.Stack, _ int) *vm.VmError {
		item, err := stack.Pop()
		if err != nil {
			return err
		}
		v, err := stack.Pop()
		if err != nil {
			return err
		}
		mut, err := v.BorrowVecMut()
		if err != nil {
			return err
		}
		*mut.Get() = append(*mut.Get(), item)
		mut.Release()
		stack.Push(v)
		return nil
	})
	m.Function("pop", 1, func(_ *vm.Vm, stack *vm.Stack, _ int) *vm.VmError {
		v, err := stack.Pop()
		if err != nil {
			return err
		}
		defer v.Release()
		mut, err := v.BorrowVecMut()
		if err != nil {
			return err
		}
		defer mut.Release()
		items := *mut.Get()
		if len(items) == 0 {
			return vm.NewError(vm.KindUnsupported, "cannot pop from an empty vector")
		}
		last := items[len(items)-1]
		*mut.Get() = items[:len(items)-1]
		stack.Push(last)
		return nil
	})
	return m
}

// Str is the string module.
func Str() *vm.Module {
	m := vm.NewModule("str")
	m.Function("len", 1, func(_ *vm.Vm, stack *vm.Stack, _ int) *vm.VmError {
		v, err := stack.Pop()
		if err != nil {
			return err
		}
		defer v.Release()
		ref, err := v.BorrowStringRef()
		if err != nil {
			return err
		}
		n := len(*ref.Get())
		ref.Release()
		stack.Push(vm.MakeInt(int64(n)))
		return nil
	})
	m.Function("format", vm.ArityAny, func(_ *vm.Vm, stack *vm.Stack, args int) *vm.VmError {
		values, err := stack.Drain(args)
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, v := range values {
			sb.WriteString(displayValue(v))
			v.Release()
		}
		out := sb.String()
		stack.Push(vm.MakeString(&out))
		return nil
	})
	return m
}

// displayValue renders strings bare and everything else as its debug
// preview.
func displayValue(v vm.Value) string {
	if v.Kind() == vm.VKString {
		if ref, err := v.BorrowStringRef(); err == nil {
			s := *ref.Get()
			ref.Release()
			return s
		}
	}
	return v.DebugString()
}
