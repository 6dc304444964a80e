package vm

import "testing"

func TestBorrowStringRef(t *testing.T) {
	s := "abc"
	v := MakeString(&s)
	r, err := v.BorrowStringRef()
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if *r.Get() != "abc" {
		t.Fatalf("payload = %q", *r.Get())
	}
	if v.Cell().Access().Snapshot() != Snapshot(-1) {
		t.Fatalf("expected shared by 1, got %v", v.Cell().Access().Snapshot())
	}
	r.Release()
	if !v.Cell().Access().IsFree() {
		t.Fatal("expected free after release")
	}
}

func TestBorrowMutExcludes(t *testing.T) {
	items := []Value{MakeInt(1)}
	v := MakeVec(&items)
	m, err := v.BorrowVecMut()
	if err != nil {
		t.Fatalf("borrow mut: %v", err)
	}
	if _, err := v.BorrowVecRef(); err == nil {
		t.Fatal("expected shared borrow to fail under exclusive")
	}
	*m.Get() = append(*m.Get(), MakeInt(2))
	m.Release()
	r, err := v.BorrowVecRef()
	if err != nil {
		t.Fatalf("borrow after release: %v", err)
	}
	defer r.Release()
	if len(*r.Get()) != 2 {
		t.Fatalf("len = %d, want 2", len(*r.Get()))
	}
}

func TestBorrowKindMismatch(t *testing.T) {
	if _, err := MakeInt(1).BorrowStringRef(); err == nil {
		t.Fatal("expected kind mismatch")
	} else if err.Kind != KindExpected {
		t.Fatalf("expected %v, got %v", KindExpected, err.Kind)
	}
}

func TestMapRefPreservesGuard(t *testing.T) {
	items := []Value{MakeInt(7), MakeInt(8)}
	v := MakeVec(&items)
	r, err := v.BorrowVecRef()
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	first := MapRef(r, func(vs *[]Value) *Value { return &(*vs)[0] })
	if n, err := first.Get().Int(); err != nil || n != 7 {
		t.Fatalf("projected = %v, %v", n, err)
	}
	if !v.Cell().Access().IsShared() || v.Cell().Access().IsFree() {
		t.Fatal("borrow must still be held through projection")
	}
	first.Release()
	if !v.Cell().Access().IsFree() {
		t.Fatal("releasing projection must release the original borrow")
	}
}

func TestTryMapRefFailureReturnsOriginal(t *testing.T) {
	items := []Value{MakeInt(1)}
	v := MakeVec(&items)
	r, err := v.BorrowVecRef()
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	proj, orig := TryMapRef(r, func(vs *[]Value) (*Value, bool) {
		if len(*vs) > 5 {
			return &(*vs)[5], true
		}
		return nil, false
	})
	if proj != nil {
		t.Fatal("projection should have failed")
	}
	if orig == nil {
		t.Fatal("original handle must come back on failure")
	}
	if v.Cell().Access().IsFree() {
		t.Fatal("borrow must survive a failed projection")
	}
	orig.Release()
	if !v.Cell().Access().IsFree() {
		t.Fatal("expected free after releasing the returned handle")
	}
}

func TestTryMapMut(t *testing.T) {
	inst := Instance{Type: "Point", Fields: Object{"x": MakeInt(1)}}
	v := MakeInstance(&inst)
	m, err := v.BorrowInstanceMut()
	if err != nil {
		t.Fatalf("borrow mut: %v", err)
	}
	proj, orig := TryMapMut(m, func(i *Instance) (*Object, bool) {
		if i.Fields == nil {
			return nil, false
		}
		return &i.Fields, true
	})
	if orig != nil {
		t.Fatal("projection should have succeeded")
	}
	(*proj.Get())["y"] = MakeInt(2)
	proj.Release()
	if len(inst.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(inst.Fields))
	}
	if !v.Cell().Access().IsFree() {
		t.Fatal("expected free after release")
	}
}

func TestTakeTerminalThroughValue(t *testing.T) {
	s := "gone"
	v := MakeString(&s)
	out, err := v.TakeString()
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if out != "gone" {
		t.Fatalf("taken = %q", out)
	}
	if _, err := v.BorrowStringRef(); err == nil {
		t.Fatal("expected borrow to fail after take")
	}
	if _, err := v.TakeString(); err == nil {
		t.Fatal("expected second take to fail")
	}
}

func TestTakeFailsWhileBorrowed(t *testing.T) {
	items := []Value{MakeInt(1)}
	v := MakeVec(&items)
	r, err := v.BorrowVecRef()
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := v.TakeVec(); err == nil {
		t.Fatal("expected take to fail while shared")
	}
	r.Release()
	if _, err := v.TakeVec(); err != nil {
		t.Fatalf("take after release: %v", err)
	}
}
