package vm

import (
	"fmt"
	"math"
)

// Sentinel state marking a payload whose contents have been moved out.
const accessTaken = math.MaxInt64

// Access tracks how a single managed payload is currently borrowed.
//
// The counter has four states:
//   - 0: free, no outstanding borrows
//   - 1: exclusively borrowed
//   - negative n: shared by -n readers
//   - accessTaken: moved out, terminal while the payload lives
//
// The counter is a plain integer: the engine is single-threaded and the
// controller only mediates re-entrant aliasing on one logical thread, e.g.
// a native function borrowing a value while itself called from within a
// borrow. Acquire never blocks; an incompatible request fails with a typed
// error.
type Access struct {
	state int64
}

// Snapshot is the state of an Access at the time of a failed acquire, kept
// for diagnostics.
type Snapshot int64

func (s Snapshot) String() string {
	switch {
	case s == 0:
		return "fully accessible"
	case s == 1:
		return "exclusively accessed"
	case s == accessTaken:
		return "moved"
	case s < 0:
		return fmt.Sprintf("shared by %d", -int64(s))
	default:
		return fmt.Sprintf("invalidly marked (%d)", int64(s))
	}
}

// IsFree reports whether no borrow is outstanding.
func (a *Access) IsFree() bool {
	return a.state == 0
}

// IsShared reports whether the payload can be borrowed shared.
func (a *Access) IsShared() bool {
	return a.state <= 0
}

// IsExclusive reports whether the payload can be borrowed exclusively.
func (a *Access) IsExclusive() bool {
	return a.state == 0
}

// IsTaken reports whether the payload has been moved out.
func (a *Access) IsTaken() bool {
	return a.state == accessTaken
}

// Snapshot returns the current state for diagnostics.
func (a *Access) Snapshot() Snapshot {
	return Snapshot(a.state)
}

// Shared acquires a read-only borrow. It succeeds iff the payload is free
// or already shared.
func (a *Access) Shared() (*SharedGuard, *VmError) {
	if a.state > 0 || a.state == math.MinInt64 {
		return nil, newError(KindNotAccessibleRef, "cannot read, value is %s", a.Snapshot())
	}
	a.state--
	return &SharedGuard{access: a}, nil
}

// Exclusive acquires a read-write borrow. It succeeds iff the payload is
// free.
func (a *Access) Exclusive() (*ExclusiveGuard, *VmError) {
	if a.state != 0 {
		return nil, newError(KindNotAccessibleMut, "cannot write, value is %s", a.Snapshot())
	}
	a.state = 1
	return &ExclusiveGuard{access: a}, nil
}

// Take marks the payload as moved out. It succeeds iff the payload is free.
// The caller must either Commit the guard once the move is final, or
// Release it to roll the state back (e.g. when a downstream conversion
// fails and the value is returned to its owner).
func (a *Access) Take() (*TakeGuard, *VmError) {
	if a.state != 0 {
		return nil, newError(KindNotAccessibleTake, "cannot take, value is %s", a.Snapshot())
	}
	a.state = accessTaken
	return &TakeGuard{access: a}, nil
}

func (a *Access) releaseShared() {
	a.state++
}

func (a *Access) releaseExclusive() {
	a.state = 0
}

func (a *Access) releaseTake() {
	a.state = 0
}

// SharedGuard is a granted shared borrow. Releasing it is the only way the
// borrow is returned; Release is idempotent.
type SharedGuard struct {
	access   *Access
	released bool
}

// Release returns the shared borrow.
func (g *SharedGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.access.releaseShared()
}

// ExclusiveGuard is a granted exclusive borrow.
type ExclusiveGuard struct {
	access   *Access
	released bool
}

// Release returns the exclusive borrow.
func (g *ExclusiveGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.access.releaseExclusive()
}

// TakeGuard is a granted move-out of the payload.
type TakeGuard struct {
	access *Access
	done   bool
}

// Commit makes the take permanent: the payload stays moved for the rest of
// its lifetime and every later acquire fails.
func (g *TakeGuard) Commit() {
	if g == nil {
		return
	}
	g.done = true
}

// Release rolls an uncommitted take back to the free state.
func (g *TakeGuard) Release() {
	if g == nil || g.done {
		return
	}
	g.done = true
	g.access.releaseTake()
}
