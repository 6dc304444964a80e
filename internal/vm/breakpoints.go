package vm

import (
	"fmt"
	"path/filepath"
	"strings"

	"rill/internal/hash"
	"rill/internal/unit"
)

// BreakpointKind distinguishes breakpoint types.
type BreakpointKind uint8

const (
	// BKFileLine represents a file:line breakpoint.
	BKFileLine BreakpointKind = iota
	// BKFuncEntry represents a function entry breakpoint.
	BKFuncEntry
)

// Breakpoint represents a debugger breakpoint.
type Breakpoint struct {
	ID   int
	Kind BreakpointKind

	// BKFileLine:
	File string
	Line int

	// BKFuncEntry:
	FuncName string
}

// Summary returns a string representation of the breakpoint.
func (bp *Breakpoint) Summary() string {
	if bp == nil {
		return "<nil>"
	}
	switch bp.Kind {
	case BKFileLine:
		return fmt.Sprintf("#%d %s:%d", bp.ID, bp.File, bp.Line)
	case BKFuncEntry:
		return fmt.Sprintf("#%d fn:%s", bp.ID, bp.FuncName)
	default:
		return fmt.Sprintf("#%d <unknown>", bp.ID)
	}
}

// Breakpoints manages a collection of breakpoints.
type Breakpoints struct {
	nextID int
	list   []*Breakpoint
}

// NewBreakpoints creates a new Breakpoints collection.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{nextID: 1}
}

// AddFileLine adds a file:line breakpoint.
func (bps *Breakpoints) AddFileLine(file string, line int) (*Breakpoint, error) {
	if line <= 0 {
		return nil, fmt.Errorf("invalid line %d", line)
	}
	file = filepath.Clean(file)
	if file == "." || file == "" {
		return nil, fmt.Errorf("invalid file %q", file)
	}
	bp := &Breakpoint{
		ID:   bps.allocID(),
		Kind: BKFileLine,
		File: file,
		Line: line,
	}
	bps.list = append(bps.list, bp)
	return bp, nil
}

// AddFuncEntry adds a function entry breakpoint.
func (bps *Breakpoints) AddFuncEntry(funcName string) (*Breakpoint, error) {
	funcName = strings.TrimSpace(funcName)
	if funcName == "" {
		return nil, fmt.Errorf("empty function name")
	}
	bp := &Breakpoint{
		ID:       bps.allocID(),
		Kind:     BKFuncEntry,
		FuncName: funcName,
	}
	bps.list = append(bps.list, bp)
	return bp, nil
}

// Delete removes the breakpoint with the given id.
func (bps *Breakpoints) Delete(id int) bool {
	for i, bp := range bps.list {
		if bp.ID == id {
			bps.list = append(bps.list[:i], bps.list[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the breakpoints in creation order.
func (bps *Breakpoints) List() []*Breakpoint {
	return bps.list
}

func (bps *Breakpoints) allocID() int {
	id := bps.nextID
	bps.nextID++
	return id
}

// Match reports the first breakpoint hit at the given stop point.
func (bps *Breakpoints) Match(vm *Vm, sp StopPoint) (*Breakpoint, bool) {
	for _, bp := range bps.list {
		switch bp.Kind {
		case BKFileLine:
			if matchFileLine(vm.Unit(), sp.IP, bp.File, bp.Line) {
				return bp, true
			}
		case BKFuncEntry:
			if fn, ok := vm.Unit().Lookup(hash.Name(bp.FuncName)); ok && fn.Offset == sp.IP {
				return bp, true
			}
		}
	}
	return nil, false
}

func matchFileLine(u *unit.Unit, ip int, file string, line int) bool {
	entry, ok := u.DebugAt(ip)
	if !ok || entry.Span.Empty() || u.Files() == nil {
		return false
	}
	f := u.Files().Get(entry.Span.File)
	if f == nil {
		return false
	}
	if filepath.Clean(f.Path) != file && filepath.Base(f.Path) != file {
		return false
	}
	start, _ := u.Files().Resolve(entry.Span)
	return int(start.Line) == line
}
