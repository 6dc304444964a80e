package vm

import (
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"rill/internal/source"
	"rill/internal/unit"
)

func threeInstUnit(t *testing.T) *unit.Unit {
	t.Helper()
	return mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 2}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 3}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpAdd, A: unit.Top(), B: unit.Top()}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
}

func TestStepCompleteEquivalence(t *testing.T) {
	u := threeInstUnit(t)

	complete, vmErr := Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	want, err := complete.Complete()
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	stepped, vmErr := Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	steps := 0
	var got Value
	for {
		v, done, err := stepped.Step()
		if err != nil {
			t.Fatalf("step %d: %v", steps, err)
		}
		steps++
		if done {
			got = v
			break
		}
	}
	if steps != 4 {
		t.Fatalf("steps = %d, want 4", steps)
	}
	wn, _ := want.Int()
	gn, _ := got.Int()
	if wn != gn {
		t.Fatalf("stepped result %d != completed result %d", gn, wn)
	}
}

func TestStepAfterDone(t *testing.T) {
	u := threeInstUnit(t)
	exec, vmErr := Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	if _, err := exec.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v, done, err := exec.Step()
	if err != nil || !done {
		t.Fatalf("step after done = done=%t err=%v", done, err)
	}
	if n, _ := v.Int(); n != 5 {
		t.Fatalf("terminal value = %d, want 5", n)
	}
}

func TestFuelLimit(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpJump, N: 0}, source.Span{})
	})
	exec, vmErr := Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	_, err := exec.CompleteWithin(100)
	if err == nil {
		t.Fatal("expected limited error")
	}
	if err.Kind != KindLimited {
		t.Fatalf("expected %v, got %v", KindLimited, err.Kind)
	}
	if exec.Done() {
		t.Fatal("budget exhaustion must not be terminal")
	}
	// More fuel resumes where it stopped.
	if _, err := exec.CompleteWithin(10); err == nil || err.Kind != KindLimited {
		t.Fatalf("expected limited again, got %v", err)
	}
}

func TestEntryArityChecked(t *testing.T) {
	u := threeInstUnit(t)
	_, err := Execute(u, nil, "main", []Value{MakeInt(1)})
	if err == nil || err.Kind != KindBadArgumentCount {
		t.Fatalf("expected arity error, got %v", err)
	}
	_, err = Execute(u, nil, "missing", nil)
	if err == nil || err.Kind != KindMissingFunction {
		t.Fatalf("expected missing function, got %v", err)
	}
}

func TestUnwoundOnce(t *testing.T) {
	// Error raised inside a callee carries the callee's ip and a backtrace
	// through the caller, wrapped exactly once.
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpCall, Hash: unitHash("boom"), N: 0}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
		mustAddFn(t, b, "boom", 0)
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 1}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpInt, Int: 0}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpDiv, A: unit.Top(), B: unit.Top()}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturn}, source.Span{})
	})
	_, err := runMain(t, u, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	ip, ok := err.IP()
	if !ok || ip != 4 {
		t.Fatalf("unwound ip = %d (ok=%t), want 4", ip, ok)
	}
	if err.Unit() != u {
		t.Fatal("unwound error must carry the unit")
	}
	frames := err.Frames()
	if len(frames) != 1 || frames[0].IP != 0 {
		t.Fatalf("frames = %+v, want one entry at call site ip=0", frames)
	}
	// Re-unwinding must not overwrite the original site.
	err.Unwind(99, nil, nil)
	if ip, _ := err.IP(); ip != 4 {
		t.Fatalf("re-unwind moved ip to %d", ip)
	}
}

func TestParallelExecutionsShareUnit(t *testing.T) {
	// A built unit is immutable, so many VMs may execute it concurrently.
	u := threeInstUnit(t)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			exec, vmErr := Execute(u, nil, "main", nil)
			if vmErr != nil {
				return vmErr
			}
			v, vmErr := exec.Complete()
			if vmErr != nil {
				return vmErr
			}
			n, err := v.Int()
			if err != nil || n != 5 {
				return fmt.Errorf("result = %d (%v), want 5", n, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("parallel run: %v", err)
	}
}

func TestStepErrorIsTerminal(t *testing.T) {
	u := mustBuild(t, func(b *unit.Builder) {
		mustAddFn(t, b, "main", 0)
		b.Emit(unit.Inst{Op: unit.OpPop}, source.Span{})
		b.Emit(unit.Inst{Op: unit.OpReturnUnit}, source.Span{})
	})
	exec, vmErr := Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	_, _, err := exec.Step()
	if err == nil || err.Kind != KindStackUnderflow {
		t.Fatalf("expected underflow, got %v", err)
	}
	if !exec.Done() {
		t.Fatal("errored execution must be terminal")
	}
	if _, err := exec.Complete(); err == nil || err.Kind != KindStackUnderflow {
		t.Fatalf("terminal error must persist, got %v", err)
	}
}
