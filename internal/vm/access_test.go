package vm

import "testing"

func TestAccessSharedThenShared(t *testing.T) {
	var a Access
	g1, err := a.Shared()
	if err != nil {
		t.Fatalf("first shared: %v", err)
	}
	g2, err := a.Shared()
	if err != nil {
		t.Fatalf("second shared: %v", err)
	}
	if a.Snapshot() != Snapshot(-2) {
		t.Fatalf("expected shared by 2, got %v", a.Snapshot())
	}
	g1.Release()
	g2.Release()
	if !a.IsFree() {
		t.Fatalf("expected free after releases, got %v", a.Snapshot())
	}
}

func TestAccessExclusiveExcludesShared(t *testing.T) {
	var a Access
	g, err := a.Exclusive()
	if err != nil {
		t.Fatalf("exclusive: %v", err)
	}
	if _, err := a.Shared(); err == nil {
		t.Fatal("expected shared to fail while exclusively accessed")
	} else if err.Kind != KindNotAccessibleRef {
		t.Fatalf("expected %v, got %v", KindNotAccessibleRef, err.Kind)
	}
	if _, err := a.Exclusive(); err == nil {
		t.Fatal("expected second exclusive to fail")
	}
	g.Release()
	if _, err := a.Shared(); err != nil {
		t.Fatalf("shared after release: %v", err)
	}
}

func TestAccessSharedExcludesExclusive(t *testing.T) {
	var a Access
	g, err := a.Shared()
	if err != nil {
		t.Fatalf("shared: %v", err)
	}
	if _, err := a.Exclusive(); err == nil {
		t.Fatal("expected exclusive to fail while shared")
	} else if err.Kind != KindNotAccessibleMut {
		t.Fatalf("expected %v, got %v", KindNotAccessibleMut, err.Kind)
	}
	if _, err := a.Take(); err == nil {
		t.Fatal("expected take to fail while shared")
	} else if err.Kind != KindNotAccessibleTake {
		t.Fatalf("expected %v, got %v", KindNotAccessibleTake, err.Kind)
	}
	g.Release()
}

func TestAccessTakeTerminal(t *testing.T) {
	var a Access
	g, err := a.Take()
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	g.Commit()
	g.Release()
	if !a.IsTaken() {
		t.Fatalf("expected taken after commit, got %v", a.Snapshot())
	}
	if _, err := a.Shared(); err == nil {
		t.Fatal("expected shared to fail after take")
	}
	if _, err := a.Take(); err == nil {
		t.Fatal("expected second take to fail")
	}
}

func TestAccessTakeRollback(t *testing.T) {
	var a Access
	g, err := a.Take()
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !a.IsTaken() {
		t.Fatalf("expected taken while guard held, got %v", a.Snapshot())
	}
	g.Release()
	if !a.IsFree() {
		t.Fatalf("expected free after rollback, got %v", a.Snapshot())
	}
	if _, err := a.Exclusive(); err != nil {
		t.Fatalf("exclusive after rollback: %v", err)
	}
}

func TestGuardReleaseIdempotent(t *testing.T) {
	var a Access
	g, err := a.Shared()
	if err != nil {
		t.Fatalf("shared: %v", err)
	}
	g.Release()
	g.Release()
	g.Release()
	if !a.IsFree() {
		t.Fatalf("expected free after repeated release, got %v", a.Snapshot())
	}

	const n = 5
	guards := make([]*SharedGuard, 0, n)
	for i := 0; i < n; i++ {
		g, err := a.Shared()
		if err != nil {
			t.Fatalf("shared %d: %v", i, err)
		}
		guards = append(guards, g)
	}
	if a.Snapshot() != Snapshot(-n) {
		t.Fatalf("expected shared by %d, got %v", n, a.Snapshot())
	}
	for _, g := range guards {
		g.Release()
	}
	if !a.IsFree() {
		t.Fatalf("expected free, got %v", a.Snapshot())
	}

	var nilShared *SharedGuard
	nilShared.Release()
	var nilExcl *ExclusiveGuard
	nilExcl.Release()
	var nilTake *TakeGuard
	nilTake.Release()
}

func TestSnapshotMessages(t *testing.T) {
	cases := []struct {
		snap Snapshot
		want string
	}{
		{0, "fully accessible"},
		{1, "exclusively accessed"},
		{-3, "shared by 3"},
		{accessTaken, "moved"},
		{7, "invalidly marked (7)"},
	}
	for _, c := range cases {
		if got := c.snap.String(); got != c.want {
			t.Errorf("Snapshot(%d).String() = %q, want %q", int64(c.snap), got, c.want)
		}
	}
}
