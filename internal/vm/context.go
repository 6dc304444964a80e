package vm

import (
	"fmt"
	"sort"

	"rill/internal/hash"
)

// ArityAny marks a native function accepting any argument count.
const ArityAny = -1

// NativeFn is a host function callable from bytecode. It sees the stack
// windowed to its own arguments and must leave exactly one result above
// the window base before returning.
type NativeFn func(vm *Vm, stack *Stack, args int) *VmError

// NativeInfo describes one registered native function.
type NativeInfo struct {
	Name  string
	Hash  hash.Hash
	Arity int
	Fn    NativeFn
}

// Context is the registry of native functions available to a Vm. A Context
// is built once, then shared read-only by any number of executions.
type Context struct {
	natives map[hash.Hash]NativeInfo
}

// NewContext returns an empty registry.
func NewContext() *Context {
	return &Context{natives: make(map[hash.Hash]NativeInfo)}
}

// Install adds every function of the module, rejecting duplicates.
func (c *Context) Install(m *Module) error {
	for _, info := range m.fns {
		if _, ok := c.natives[info.Hash]; ok {
			return fmt.Errorf("native %q already registered", info.Name)
		}
		c.natives[info.Hash] = info
	}
	return nil
}

// Lookup returns the native registered under h.
func (c *Context) Lookup(h hash.Hash) (NativeInfo, bool) {
	info, ok := c.natives[h]
	return info, ok
}

// Natives returns all registered functions sorted by name.
func (c *Context) Natives() []NativeInfo {
	out := make([]NativeInfo, 0, len(c.natives))
	for _, info := range c.natives {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Module collects native functions under a common name prefix before they
// are installed into a Context.
type Module struct {
	name string
	fns  []NativeInfo
}

// NewModule creates a module named name. Functions register under
// "name::fn".
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Function registers fn with a fixed arity, or ArityAny.
func (m *Module) Function(name string, arity int, fn NativeFn) *Module {
	full := name
	if m.name != "" {
		full = m.name + "::" + name
	}
	m.fns = append(m.fns, NativeInfo{
		Name:  full,
		Hash:  hash.Name(full),
		Arity: arity,
		Fn:    fn,
	})
	return m
}
