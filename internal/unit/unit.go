package unit

import (
	"fmt"
	"sort"

	"rill/internal/hash"
	"rill/internal/source"
)

// FnInfo describes one callable entry in the function table.
type FnInfo struct {
	Name   string // fully-qualified, for diagnostics only
	Offset int    // entry instruction pointer
	Args   int    // arity
}

// DebugEntry is per-instruction debug metadata. It is consulted only for
// diagnostics, never for execution semantics.
type DebugEntry struct {
	Span  source.Span
	Label string
}

// Unit is an immutable compiled program: bytecode plus the metadata needed
// to call into it and to resolve errors back to source positions.
type Unit struct {
	insts         []Inst
	functions     map[hash.Hash]FnInfo
	staticStrings []string
	debug         []DebugEntry
	files         *source.FileSet
}

// Inst returns the instruction at ip.
func (u *Unit) Inst(ip int) (Inst, bool) {
	if ip < 0 || ip >= len(u.insts) {
		return Inst{}, false
	}
	return u.insts[ip], true
}

// Len returns the number of instructions.
func (u *Unit) Len() int {
	return len(u.insts)
}

// Lookup finds a function table entry by item hash.
func (u *Unit) Lookup(h hash.Hash) (FnInfo, bool) {
	fn, ok := u.functions[h]
	return fn, ok
}

// Functions returns the function table entries sorted by entry point.
func (u *Unit) Functions() []FnInfo {
	out := make([]FnInfo, 0, len(u.functions))
	for _, fn := range u.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// StaticString returns the string in the given pool slot.
func (u *Unit) StaticString(slot int) (string, bool) {
	if slot < 0 || slot >= len(u.staticStrings) {
		return "", false
	}
	return u.staticStrings[slot], true
}

// StaticStrings returns the whole pool.
func (u *Unit) StaticStrings() []string {
	return u.staticStrings
}

// DebugAt returns the debug entry recorded for ip.
func (u *Unit) DebugAt(ip int) (DebugEntry, bool) {
	if ip < 0 || ip >= len(u.debug) {
		return DebugEntry{}, false
	}
	return u.debug[ip], true
}

// Files returns the file set the debug spans refer to. May be nil.
func (u *Unit) Files() *source.FileSet {
	return u.files
}

// FormatSpanAt renders the source position recorded for ip, or "<no-span>".
func (u *Unit) FormatSpanAt(ip int) string {
	entry, ok := u.DebugAt(ip)
	if !ok || u.files == nil {
		return "<no-span>"
	}
	return u.files.Format(entry.Span)
}

// Builder assembles a Unit. It is not safe for concurrent use; the built
// Unit is.
type Builder struct {
	insts         []Inst
	functions     map[hash.Hash]FnInfo
	staticStrings []string
	staticRev     map[hash.Hash]int
	debug         []DebugEntry
	files         *source.FileSet
}

// NewBuilder creates an empty unit builder.
func NewBuilder() *Builder {
	return &Builder{
		functions: make(map[hash.Hash]FnInfo),
		staticRev: make(map[hash.Hash]int),
		files:     source.NewFileSet(),
	}
}

// Files exposes the builder's file set so a producer can register sources.
func (b *Builder) Files() *source.FileSet {
	return b.files
}

// AddFn registers a function whose body starts at the current instruction
// pointer. The name is hashed as a "::"-separated item path.
func (b *Builder) AddFn(name string, args int) (hash.Hash, error) {
	if args < 0 {
		return hash.Empty, fmt.Errorf("function %q: negative arity", name)
	}
	h := hash.Name(name)
	if existing, ok := b.functions[h]; ok {
		return hash.Empty, fmt.Errorf("function %q conflicts with %q", name, existing.Name)
	}
	b.functions[h] = FnInfo{Name: name, Offset: len(b.insts), Args: args}
	return h, nil
}

// Emit appends one instruction together with its debug entry.
func (b *Builder) Emit(inst Inst, span source.Span) {
	b.insts = append(b.insts, inst)
	b.debug = append(b.debug, DebugEntry{Span: span})
}

// EmitLabeled appends one instruction with a debug label.
func (b *Builder) EmitLabeled(inst Inst, span source.Span, label string) {
	b.insts = append(b.insts, inst)
	b.debug = append(b.debug, DebugEntry{Span: span, Label: label})
}

// Len returns the current instruction pointer, used to resolve jump targets.
func (b *Builder) Len() int {
	return len(b.insts)
}

// Inst returns an already-emitted instruction, used for backpatching.
func (b *Builder) Inst(ip int) (Inst, bool) {
	if ip < 0 || ip >= len(b.insts) {
		return Inst{}, false
	}
	return b.insts[ip], true
}

// SetInst rewrites an already-emitted instruction, used for backpatching.
func (b *Builder) SetInst(ip int, inst Inst) error {
	if ip < 0 || ip >= len(b.insts) {
		return fmt.Errorf("backpatch out of range: ip=%d", ip)
	}
	b.insts[ip] = inst
	return nil
}

// StaticString interns s in the pool and returns its slot. Identical
// strings share a slot.
func (b *Builder) StaticString(s string) int {
	h := hash.Item(s)
	if slot, ok := b.staticRev[h]; ok && b.staticStrings[slot] == s {
		return slot
	}
	slot := len(b.staticStrings)
	b.staticStrings = append(b.staticStrings, s)
	b.staticRev[h] = slot
	return slot
}

// Build seals the builder into an immutable Unit.
func (b *Builder) Build() (*Unit, error) {
	for _, fn := range b.functions {
		if fn.Offset > len(b.insts) {
			return nil, fmt.Errorf("function %q entry %d past end of bytecode", fn.Name, fn.Offset)
		}
	}
	return &Unit{
		insts:         b.insts,
		functions:     b.functions,
		staticStrings: b.staticStrings,
		debug:         b.debug,
		files:         b.files,
	}, nil
}
