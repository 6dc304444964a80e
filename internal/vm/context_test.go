package vm

import (
	"testing"

	"rill/internal/source"
	"rill/internal/unit"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext()
	m := NewModule("test")
	m.Function("sum", ArityAny, func(_ *Vm, stack *Stack, args int) *VmError {
		values, err := stack.Drain(args)
		if err != nil {
			return err
		}
		var total int64
		for _, v := range values {
			n, err := v.Int()
			if err != nil {
				return err
			}
			total += n
		}
		stack.Push(MakeInt(total))
		return nil
	})
	m.Function("push", 2, func(_ *Vm, stack *Stack, _ int) *VmError {
		item, err := stack.Pop()
		if err != nil {
			return err
		}
		vec, err := stack.Pop()
		if err != nil {
			return err
		}
		mut, err := vec.BorrowVecMut()
		if err != nil {
			return err
		}
		*mut.Get() = append(*mut.Get(), item)
		mut.Release()
		stack.Push(vec)
		return nil
	})
	m.Function("leaky", 0, func(_ *Vm, stack *Stack, _ int) *VmError {
		stack.Push(MakeInt(1))
		stack.Push(MakeInt(2))
		return nil
	})
	if err := ctx.Install(m); err != nil {
		t.Fatalf("install: %v", err)
	}
	return ctx
}

func TestNativeCall(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 3}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::sum"), N: 3}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	v, err := runMain(t, u, testContext(t))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n, _ := v.Int(); n != 6 {
		t.Fatalf("result = %d, want 6", n)
	}
}

func TestNativeWindowing(t *testing.T) {
	// A native sees only its own arguments; caller values below the window
	// survive the call untouched.
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 77}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::sum"), N: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpAdd, A: unit.Top(), B: unit.Top()}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	v, err := runMain(t, u, testContext(t))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n, _ := v.Int(); n != 80 {
		t.Fatalf("result = %d, want 80", n)
	}
}

func TestNativeMutatesVec(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpVec, N: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::push"), N: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	v, err := runMain(t, u, testContext(t))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	ref, err := v.BorrowVecRef()
	if err != nil {
		t.Fatalf("borrow result: %v", err)
	}
	defer ref.Release()
	if len(*ref.Get()) != 2 {
		t.Fatalf("vec len = %d, want 2", len(*ref.Get()))
	}
}

func TestNativeResultConvention(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::leaky"), N: 0}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	_, err := runMain(t, u, testContext(t))
	if err == nil || err.Kind != KindBadNativeResult {
		t.Fatalf("expected bad native result, got %v", err)
	}
}

func TestNativeArityMismatch(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::push"), N: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	_, err := runMain(t, u, testContext(t))
	if err == nil || err.Kind != KindBadArgumentCount {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestDuplicateNativeRejected(t *testing.T) {
	ctx := NewContext()
	m := NewModule("dup")
	noop := func(_ *Vm, stack *Stack, _ int) *VmError {
		stack.Push(MakeUnit())
		return nil
	}
	m.Function("f", 0, noop)
	if err := ctx.Install(m); err != nil {
		t.Fatalf("install: %v", err)
	}
	again := NewModule("dup")
	again.Function("f", 0, noop)
	if err := ctx.Install(again); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNativeBorrowConflict(t *testing.T) {
	// A native that borrows its argument exclusively twice trips the access
	// controller, surfacing a typed error instead of corrupting the payload.
	ctx := NewContext()
	m := NewModule("test")
	m.Function("alias", 1, func(_ *Vm, stack *Stack, _ int) *VmError {
		v, err := stack.Pop()
		if err != nil {
			return err
		}
		first, err := v.BorrowVecMut()
		if err != nil {
			return err
		}
		defer first.Release()
		if _, err := v.BorrowVecMut(); err != nil {
			return err
		}
		stack.Push(MakeUnit())
		return nil
	})
	if err := ctx.Install(m); err != nil {
		t.Fatalf("install: %v", err)
	}
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpVec, N: 0}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("test::alias"), N: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	_, err := runMain(t, u, ctx)
	if err == nil || err.Kind != KindNotAccessibleMut {
		t.Fatalf("expected aliasing error, got %v", err)
	}
}
